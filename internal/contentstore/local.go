package contentstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/verustcode/stagereport/pkg/errors"
)

// BackendLocal is the Backend() name of LocalStore
const BackendLocal = "local"

// LocalStore keeps artifacts as files under a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "local storage directory is empty")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "resolve storage directory", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageWrite, "create storage directory", err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the absolute root directory
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Backend() string {
	return BackendLocal
}

// resolve maps name to a path inside root, rejecting anything that escapes it.
func (s *LocalStore) resolve(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", errors.ErrValidation(fmt.Sprintf("invalid artifact name %q", name))
	}
	p := filepath.Join(s.root, filepath.FromSlash(name))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.ErrValidation(fmt.Sprintf("invalid artifact name %q", name))
	}
	return p, nil
}

// Write stores data atomically: readers never observe a partial file.
func (s *LocalStore) Write(_ context.Context, name string, data []byte) error {
	p, err := s.resolve(name)
	if err != nil {
		return err
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "create artifact directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(p)+"-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeStorageWrite, "write artifact", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeStorageWrite, "sync artifact", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "close artifact", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "chmod artifact", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "rename artifact", err)
	}
	return nil
}

func (s *LocalStore) Read(_ context.Context, name string) ([]byte, error) {
	p, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errNotFound(name)
		}
		return nil, errors.Wrap(errors.ErrCodeStorageRead, "read artifact", err)
	}
	return data, nil
}

func (s *LocalStore) Exists(_ context.Context, name string) (bool, error) {
	p, err := s.resolve(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(errors.ErrCodeStorageRead, "stat artifact", err)
	}
	return !info.IsDir(), nil
}
