package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrUnsupportedType rejects uploads that are not jpg, jpeg or png.
var ErrUnsupportedType = errors.New("unsupported image type")

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Store persists uploaded images under a key unique to the session and upload.
type Store interface {
	Put(ctx context.Context, sessionID, filename string, data []byte) (string, error)
}

// Extension returns the lower-cased extension of filename if it is an accepted image type.
func Extension(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("%w: %q (accepted: jpg, jpeg, png)", ErrUnsupportedType, filename)
	}
	return ext, nil
}

// ObjectKey builds "<sessionID>/<uuid><ext>" so no two uploads share a key.
func ObjectKey(sessionID, filename string) (string, error) {
	ext, err := Extension(filename)
	if err != nil {
		return "", err
	}
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || sessionID == "." || sessionID == ".." {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return path.Join(sessionID, uuid.NewString()+ext), nil
}

// LocalStore writes uploads below a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore returns a LocalStore rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir}
}

// Put writes data to <root>/<sessionID>/<uuid><ext> and returns the relative key.
func (s *LocalStore) Put(_ context.Context, sessionID, filename string, data []byte) (string, error) {
	key, err := ObjectKey(sessionID, filename)
	if err != nil {
		return "", err
	}

	target := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return key, nil
}
