package classfile

import (
	"errors"
	"fmt"
)

// FormatError reports bytes or linked state that cannot be read or written
// faithfully: a declared attribute length that disagrees with its payload,
// an unresolved constant reaching the writer, or a bytecode operand that no
// longer names a live pool slot.
type FormatError struct {
	Class string // class name when known
	Op    string // "read", "write", "relocate", ...
	Msg   string
	Err   error
}

func (e *FormatError) Error() string {
	prefix := e.Op
	if e.Class != "" {
		prefix = fmt.Sprintf("%s %s", e.Op, e.Class)
	}
	if e.Err != nil {
		if e.Msg == "" {
			return fmt.Sprintf("%s: %v", prefix, e.Err)
		}
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErrorf(op, format string, args ...any) *FormatError {
	return &FormatError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// IsFormatError reports whether err wraps a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// withClass stamps the class name onto a FormatError found in err's chain.
func withClass(err error, name string) error {
	var fe *FormatError
	if errors.As(err, &fe) && fe.Class == "" {
		fe.Class = name
	}
	return err
}
