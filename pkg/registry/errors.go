package registry

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a ResolutionError.
type ErrorKind int

const (
	ErrDuplicate ErrorKind = iota
	ErrMissingSuper
	ErrMissingInterface
	ErrMissingMember
	ErrCycle
	ErrHashCollision
)

func (k ErrorKind) String() string {
	switch k {
	case ErrDuplicate:
		return "duplicate class"
	case ErrMissingSuper:
		return "missing superclass"
	case ErrMissingInterface:
		return "missing interface"
	case ErrMissingMember:
		return "missing member"
	case ErrCycle:
		return "inheritance cycle"
	case ErrHashCollision:
		return "signature hash collision"
	default:
		return fmt.Sprintf("resolution error %d", int(k))
	}
}

// ResolutionError reports a cross-reference that could not be linked. The
// run continues with the affected class in a degraded state.
type ResolutionError struct {
	Kind   ErrorKind
	Class  string // class being linked
	Target string // name it failed to reach, if any
	Detail string
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Class)
	if e.Target != "" {
		msg += " -> " + e.Target
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// IsKind reports whether err wraps a ResolutionError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var re *ResolutionError
	return errors.As(err, &re) && re.Kind == kind
}
