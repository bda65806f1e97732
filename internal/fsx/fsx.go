// Package fsx provides the narrow filesystem surface the hashfile engine
// needs, behind an interface so tests can inject I/O failures without
// touching a real disk.
//
// The production path ([Real]) is a thin passthrough to [os]. Tests use
// [Chaos] to simulate the read/write/sync failures spec.md §7 classifies as
// [hashfile.ErrIO], and to confirm that an Add whose first write fails
// surfaces ErrIO and leaves the file passing Verify.
package fsx

import (
	"io"
	"os"
)

// File is the subset of [os.File] the engine relies on: positioned I/O
// (no shared seek cursor, since every hashfile operation addresses nodes by
// absolute offset), truncation, and durability control. The engine grows the
// file by writing past EOF with WriteAt, not by Truncate.
//
// Implementations must behave like [os.File] for these methods.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer

	// Truncate extends or shrinks the file to exactly size bytes. See
	// [os.File.Truncate].
	Truncate(size int64) error

	// Stat returns file metadata, in particular Size(). See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to stable storage. See [os.File.Sync].
	Sync() error
}

// FS is the narrow set of filesystem operations the engine performs:
// opening the hash file, creating it atomically, and removing it for
// [hashfile.ModeRebuild].
//
// Implementations must be safe for concurrent use by multiple goroutines
// (the engine itself does not call FS concurrently, but tests may share one
// [Chaos] across parallel subtests).
type FS interface {
	// OpenFile opens path with the given flags and permissions. See
	// [os.OpenFile]. Used for opening an existing hash file for read/write.
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// Stat returns metadata for path without opening it. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Remove deletes path. See [os.Remove]. Used by [hashfile.ModeRebuild].
	// Removing a file that does not exist is not an error.
	Remove(path string) error

	// WriteFileAtomic writes data to path such that other processes / a
	// crash never observe a partially-written file: either the old contents
	// (if any) or the complete new contents are visible, never a torn mix.
	//
	// Used once, by Init, to materialize the initial header + slot directory
	// + header data + anchor nodes image in a single atomic step.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error
}
