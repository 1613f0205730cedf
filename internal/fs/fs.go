// Package fs provides the filesystem operations the commands perform, behind
// an interface so tests can inject failures.
//
// The main types are:
//   - [FS]: interface for filesystem operations
//   - [Real]: production implementation using [os]
//   - [Faulty]: testing implementation failing chosen operations
package fs

import (
	"io"
	"os"
)

// File is an open file created by [FS.CreateTemp]. Satisfied by [os.File].
type File interface {
	io.ReadWriteCloser

	// Name returns the path the file was created at.
	Name() string
}

// FS defines the filesystem operations used by the commands.
//
// All methods mirror their [os] package equivalents except
// [FS.WriteFileAtomic] and [FS.Exists].
type FS interface {
	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if needed. See [os.WriteFile].
	WriteFile(path string, data []byte, perm os.FileMode) error

	// WriteFileAtomic writes data to a file atomically.
	// Uses a temp file + rename so readers never see a partial file.
	WriteFileAtomic(path string, data []byte) error

	// CreateTemp creates a new temporary file. See [os.CreateTemp].
	CreateTemp(dir, pattern string) (File, error)

	// MkdirTemp creates a new temporary directory. See [os.MkdirTemp].
	MkdirTemp(dir, pattern string) (string, error)

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether path exists.
	// Returns (false, nil) if it does not, (false, err) for other errors.
	Exists(path string) (bool, error)

	// Remove removes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// RemoveAll removes path and any children. See [os.RemoveAll].
	RemoveAll(path string) error
}
