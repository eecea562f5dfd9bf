// Package types defines error types for the simulated operating system.
package types

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotFound         = errors.New("no such file or directory")
	ErrNotADirectory    = errors.New("not a directory")
	ErrNotAFile         = errors.New("is a directory")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNameCollision    = errors.New("file exists")
	ErrInvalidMode      = errors.New("invalid mode")
	ErrCyclicMove       = errors.New("cannot move a directory into itself")
	ErrCommandNotFound  = errors.New("command not found")
	ErrBrokenBinary     = errors.New("broken binary reference")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotEmpty         = errors.New("directory not empty")
	ErrReadOnly         = errors.New("read-only file system")
	ErrUserNotFound     = errors.New("no such user")
	ErrGroupNotFound    = errors.New("no such group")
	ErrUserExists       = errors.New("user already exists")
	ErrGroupExists      = errors.New("group already exists")
	ErrAuthFailed       = errors.New("authentication failure")
)

// PathError records a failed filesystem operation and the path it touched.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// PermissionError represents a permission denial with context. Sticky is set
// when the denial came from the sticky bit of the parent directory rather
// than from the rwx bits.
type PermissionError struct {
	Op          string
	Path        string
	Username    string
	Permissions string
	Sticky      bool
}

func (e *PermissionError) Error() string {
	if e.Sticky {
		return fmt.Sprintf(
			"permission denied: %s on '%s' by %s: sticky bit set on parent directory",
			e.Op, e.Path, e.Username,
		)
	}
	return fmt.Sprintf(
		"permission denied: %s on '%s' by %s (mode %s)",
		e.Op, e.Path, e.Username, e.Permissions,
	)
}

func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

// CommandError represents a failed command resolution in the terminal.
type CommandError struct {
	Name string
	Err  error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsPermission reports whether err is a permission or sticky-bit denial.
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
