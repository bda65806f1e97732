package fsx

import (
	"bytes"
	"os"

	"github.com/natefinch/atomic"
)

// Real implements [FS] using the real filesystem.
//
// All methods are pure passthroughs to the [os] package, except
// [Real.WriteFileAtomic] which uses [atomic.WriteFile] (temp file + rename)
// so a crash mid-write never leaves a half-initialized hash file behind.
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

// OpenFile is a passthrough wrapper for [os.OpenFile].
func (r *Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

// Stat is a passthrough wrapper for [os.Stat].
func (r *Real) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// Remove is a passthrough wrapper for [os.Remove]; removing a missing file
// is treated as success.
func (r *Real) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

// WriteFileAtomic writes data to path via [atomic.WriteFile]: it stages the
// content in a sibling temp file, fsyncs it, then renames it over path.
// Readers of path never observe a partial write.
func (r *Real) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	err := atomic.WriteFile(path, bytes.NewReader(data))
	if err != nil {
		return err
	}

	return os.Chmod(path, perm)
}
