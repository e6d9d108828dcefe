package cli

import (
	"errors"

	"github.com/Sternrassler/freshbooks-report/internal/config"
	"github.com/Sternrassler/freshbooks-report/pkg/apperr"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitAuth     = 3
	ExitProtocol = 4
)

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, config.ErrInvalid) {
		return ExitConfig
	}

	switch apperr.KindOf(err) {
	case apperr.ErrAuth:
		return ExitAuth
	case apperr.ErrProtocol, apperr.ErrFormat:
		return ExitProtocol
	default:
		return ExitFailure
	}
}
