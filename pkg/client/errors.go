package client

import (
	"fmt"
)

// APIError is returned for non-2xx responses other than the 401 handled by
// token refresh. Such responses are not retried.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Endpoint   string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("FreshBooks %s error (status %d) on %s: %s",
			e.ErrorClass, e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("FreshBooks %s error (status %d) on %s",
		e.ErrorClass, e.StatusCode, e.Endpoint)
}
