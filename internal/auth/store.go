package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"hirelens/internal/fileutil"
)

// Credentials is the persisted login state.
type Credentials struct {
	Token    string    `json:"token"`
	Provider string    `json:"provider,omitempty"`
	SavedAt  time.Time `json:"saved_at"`
}

// TokenStore abstracts persistence for the session token.
type TokenStore interface {
	Load() (Credentials, error)
	Save(Credentials) error
	Clear() error
}

// FileTokenStore writes credentials to a JSON file on disk.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore builds a FileTokenStore at the provided path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Path returns the backing file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load reads credentials from disk. A missing file resolves to empty credentials.
func (s *FileTokenStore) Load() (Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("read token file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("decode token file: %w", err)
	}
	return creds, nil
}

// Save persists credentials to disk with restricted permissions.
func (s *FileTokenStore) Save(creds Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}

	if err := fileutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// Clear removes the token file. A missing file is not an error.
func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
