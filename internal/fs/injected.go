package fs

import (
	"errors"
	iofs "io/fs"
	"os"
)

// Op names an [FS] operation for [Faulty].
type Op string

// Operations that can be made to fail.
const (
	OpReadFile        Op = "ReadFile"
	OpWriteFile       Op = "WriteFile"
	OpWriteFileAtomic Op = "WriteFileAtomic"
	OpCreateTemp      Op = "CreateTemp"
	OpMkdirTemp       Op = "MkdirTemp"
	OpStat            Op = "Stat"
	OpRemove          Op = "Remove"
)

// ErrInjected is the default error returned by a failing [Faulty] operation.
var ErrInjected = errors.New("injected failure")

// InjectedError marks an error as intentionally injected by [Faulty].
//
// It wraps the underlying error so errors.Is/As continue to work.
type InjectedError struct {
	Op  Op
	Err error
}

func (e *InjectedError) Error() string {
	return string(e.Op) + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *InjectedError) Unwrap() error {
	return e.Err
}

// IsInjected reports whether err (or any wrapped error) was injected by
// [Faulty]. Returns false if err is nil.
func IsInjected(err error) bool {
	var injected *InjectedError

	return errors.As(err, &injected)
}

// Faulty wraps an [FS] and fails the operations listed in Fail. A nil error
// in Fail means [ErrInjected]. Every other call goes to FS.
//
// Fail must not be modified while the Faulty is in use.
type Faulty struct {
	FS   FS
	Fail map[Op]error
}

// NewFaulty returns a Faulty over the real filesystem failing ops.
func NewFaulty(ops ...Op) *Faulty {
	fail := make(map[Op]error, len(ops))
	for _, op := range ops {
		fail[op] = nil
	}

	return &Faulty{FS: NewReal(), Fail: fail}
}

func (f *Faulty) check(op Op, path string) error {
	err, ok := f.Fail[op]
	if !ok {
		return nil
	}

	if err == nil {
		err = ErrInjected
	}

	return &iofs.PathError{Op: string(op), Path: path, Err: &InjectedError{Op: op, Err: err}}
}

func (f *Faulty) ReadFile(path string) ([]byte, error) {
	if err := f.check(OpReadFile, path); err != nil {
		return nil, err
	}

	return f.FS.ReadFile(path)
}

func (f *Faulty) WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := f.check(OpWriteFile, path); err != nil {
		return err
	}

	return f.FS.WriteFile(path, data, perm)
}

func (f *Faulty) WriteFileAtomic(path string, data []byte) error {
	if err := f.check(OpWriteFileAtomic, path); err != nil {
		return err
	}

	return f.FS.WriteFileAtomic(path, data)
}

func (f *Faulty) CreateTemp(dir, pattern string) (File, error) {
	if err := f.check(OpCreateTemp, pattern); err != nil {
		return nil, err
	}

	return f.FS.CreateTemp(dir, pattern)
}

func (f *Faulty) MkdirTemp(dir, pattern string) (string, error) {
	if err := f.check(OpMkdirTemp, pattern); err != nil {
		return "", err
	}

	return f.FS.MkdirTemp(dir, pattern)
}

func (f *Faulty) Stat(path string) (os.FileInfo, error) {
	if err := f.check(OpStat, path); err != nil {
		return nil, err
	}

	return f.FS.Stat(path)
}

func (f *Faulty) Exists(path string) (bool, error) {
	if err := f.check(OpStat, path); err != nil {
		return false, err
	}

	return f.FS.Exists(path)
}

func (f *Faulty) Remove(path string) error {
	if err := f.check(OpRemove, path); err != nil {
		return err
	}

	return f.FS.Remove(path)
}

func (f *Faulty) RemoveAll(path string) error {
	if err := f.check(OpRemove, path); err != nil {
		return err
	}

	return f.FS.RemoveAll(path)
}

// Compile-time interface check.
var _ FS = (*Faulty)(nil)
