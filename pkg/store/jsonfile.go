package store

import (
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// File persists one JSON document, rewritten atomically on every Save.
// Losing a write must never take down a live trading decision, so callers
// are expected to log Save errors rather than propagate them.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// Save marshals v and replaces the file via tmp+rename so readers never see
// a half-written document.
func (f *File) Save(v any) error {
	data, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "store marshal %s", f.path)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return errors.Wrapf(err, "store mkdir %s", f.path)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "store write %s", tmp)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return errors.Wrapf(err, "store rename %s", f.path)
	}
	return nil
}

// Load unmarshals the file into v. A missing file is not an error; the
// caller starts from an empty state.
func (f *File) Load(v any) (bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "store read %s", f.path)
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return false, errors.Wrapf(err, "store decode %s", f.path)
	}
	return true, nil
}
