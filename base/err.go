package base

import (
  "fmt"

  "github.com/pkg/errors"
)

type Error struct {
  Kind Kind

  // Op names the operation that failed, e.g. "decode string pool"
  Op string

  Err error
}

func (e *Error) Error() string {
  if e.Op == "" {
    return e.Kind.String() + ": " + e.Err.Error()
  }
  return e.Kind.String() + ": " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
  return e.Err
}

func newError(kind Kind, op string, format string, args ...interface{}) *Error {
  return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func Structuralf(op string, format string, args ...interface{}) error {
  return newError(KindStructural, op, format, args...)
}

func MissingEntryf(op string, format string, args ...interface{}) error {
  return newError(KindMissingEntry, op, format, args...)
}

func PolicyConfigf(op string, format string, args ...interface{}) error {
  return newError(KindPolicyConfig, op, format, args...)
}

// Structural wraps err (typically a short read) as a structural decode error.
func Structural(op string, err error) error {
  if err == nil {
    return nil
  }
  if IsKind(err, KindStructural) {
    return err
  }
  return &Error{Kind: KindStructural, Op: op, Err: err}
}

// Warning is a non-fatal finding collected while decoding.
type Warning struct {
  Kind Kind
  Msg  string
}

func (w Warning) String() string {
  return w.Kind.String() + ": " + w.Msg
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
  var e *Error
  if errors.As(err, &e) {
    return e.Kind == kind
  }
  return false
}
