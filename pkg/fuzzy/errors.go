/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: errors.go
Description: Error values shared by the fuzzy package. Sentinel errors classify the
failure and Error adds the operation and object name for context.
*/

package fuzzy

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("duplicate name")
	ErrInvalidParams   = errors.New("invalid membership params")
	ErrInvalidRule     = errors.New("invalid rule")
	ErrInvalidModel    = errors.New("invalid model")
	ErrUnknownFunction = errors.New("unknown membership function")
	ErrCycle           = errors.New("dependency cycle")
)

// Error describes a failed operation on a named fuzzy object
type Error struct {
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, name string, err error) error {
	return &Error{Op: op, Name: name, Err: err}
}

// reason attaches a human readable detail to a sentinel error
func reason(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
