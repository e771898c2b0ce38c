package somfy

import (
	"errors"
	"fmt"
)

// Kind classifies why a capture was rejected.
type Kind int

const (
	// SanityFail means the capture does not look like a Somfy RTS frame at all.
	SanityFail Kind = iota + 1
	// IntegrityFail means the frame structure was found but its content is corrupt.
	IntegrityFail
)

var (
	ErrSanity    = errors.New("somfy: sanity check failed")
	ErrIntegrity = errors.New("somfy: integrity check failed")
)

func (k Kind) String() string {
	switch k {
	case SanityFail:
		return "sanity"
	case IntegrityFail:
		return "integrity"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DecodeError is returned for every rejected capture.
type DecodeError struct {
	Kind   Kind
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("somfy: %s fail: %s", e.Kind, e.Reason)
}

// Is lets callers match on ErrSanity / ErrIntegrity.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrSanity:
		return e.Kind == SanityFail
	case ErrIntegrity:
		return e.Kind == IntegrityFail
	}
	return false
}

func sanityErr(reason string) error {
	return &DecodeError{Kind: SanityFail, Reason: reason}
}

func integrityErr(reason string) error {
	return &DecodeError{Kind: IntegrityFail, Reason: reason}
}

// KindOf returns the rejection kind of err, or 0 when err is not a DecodeError.
func KindOf(err error) Kind {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
