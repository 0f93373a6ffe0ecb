package base

import (
  "github.com/pkg/errors"
)

var (
  ErrNilPointer      = errors.New("nil pointer")
  ErrInvalidArgument = errors.New("invalid argument")
)

// Kind classifies a failure so callers can decide whether it is fatal.
type Kind int

const (
  // KindStructural is a malformed or truncated chunk, always fatal for the current decode.
  KindStructural Kind = iota + 1

  // KindMissingEntry is an absent container entry the calling stage required.
  KindMissingEntry

  // KindPolicyConfig is a malformed rules or mapping document, reported before any write.
  KindPolicyConfig

  // KindReferenceUnresolved is a resource reference that could not be resolved,
  // it is recorded as a warning and never stops decoding.
  KindReferenceUnresolved
)

func (k Kind) String() string {
  switch k {
  case KindStructural:
    return "structural decode error"
  case KindMissingEntry:
    return "missing entry"
  case KindPolicyConfig:
    return "policy config error"
  case KindReferenceUnresolved:
    return "reference unresolved"
  }
  return "unknown error"
}
