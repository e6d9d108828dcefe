package tokenstore

import (
	"context"
	"os"

	"github.com/Sternrassler/freshbooks-report/pkg/apperr"
)

// DefaultPath is the token file used when none is configured.
const DefaultPath = "freshbooks_api_token.json"

// FileStore keeps the token in a JSON file. Save rewrites the file in place;
// a crash mid-write can leave it truncated.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{path: path}
}

// Path returns the token file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the token file.
func (s *FileStore) Load(ctx context.Context) (*Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, apperr.New(apperr.ErrIO, "load token file", err)
	}
	return decode("load token file", data)
}

// Save overwrites the token file.
func (s *FileStore) Save(ctx context.Context, token *Token) error {
	data, err := encode("save token file", token)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return apperr.New(apperr.ErrIO, "save token file", err)
	}
	return nil
}
