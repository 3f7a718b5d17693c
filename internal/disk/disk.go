// Package disk reads and publishes cache entries. Publication goes through a
// sibling temp file and a rename so readers only ever open complete entries.
package disk

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/unkn0wn-root/diskmemo/internal/util"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Op names the step of a publish that failed.
type Op string

const (
	OpMkdir  Op = "mkdir"
	OpWrite  Op = "write"
	OpSync   Op = "sync"
	OpRename Op = "rename"
)

// PublishError reports which publish step failed.
type PublishError struct {
	Op   Op
	Path string
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Read returns the full contents of the entry at path.
func Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Publish writes data to <path>.tmp, syncs it and renames it over path.
// The temp file is removed on any failure.
func Publish(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return &PublishError{Op: OpMkdir, Path: path, Err: err}
	}

	tmp := util.TempPath(path)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return &PublishError{Op: OpWrite, Path: tmp, Err: err}
	}

	_, err = f.Write(data)
	if err == nil {
		if serr := f.Sync(); serr != nil {
			err = &PublishError{Op: OpSync, Path: tmp, Err: serr}
		}
	} else {
		err = &PublishError{Op: OpWrite, Path: tmp, Err: err}
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = &PublishError{Op: OpWrite, Path: tmp, Err: cerr}
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &PublishError{Op: OpRename, Path: path, Err: err}
	}
	return nil
}

// Remove deletes the entry at path. A missing entry is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
