package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	domain "github.com/rustgreen/backend/internal/domain/sessions"
)

// sourceFileName is the fixed name the uploaded code is stored under inside a
// session's repo directory.
const sourceFileName = "uploaded_code.rs"

// LocalStore keeps uploaded source on the local filesystem, one directory per
// session: <base>/<session-id>/repo/uploaded_code.rs.
type LocalStore struct {
	base string
}

func NewLocalStore(base string) (*LocalStore, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{base: base}, nil
}

func (s *LocalStore) sourcePath(id domain.SessionID) string {
	return filepath.Join(s.base, string(id), "repo", sourceFileName)
}

func (s *LocalStore) SaveSource(ctx context.Context, id domain.SessionID, code string) error {
	dir := filepath.Dir(s.sourcePath(id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.sourcePath(id), []byte(code), 0o644)
}

func (s *LocalStore) HasSource(ctx context.Context, id domain.SessionID) (bool, error) {
	_, err := os.Stat(s.sourcePath(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *LocalStore) ReadSource(ctx context.Context, id domain.SessionID) (string, error) {
	b, err := os.ReadFile(s.sourcePath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.ErrNoSource
		}
		return "", err
	}
	return string(b), nil
}

// DeleteSource removes the whole session directory.
func (s *LocalStore) DeleteSource(ctx context.Context, id domain.SessionID) error {
	return os.RemoveAll(filepath.Join(s.base, string(id)))
}
