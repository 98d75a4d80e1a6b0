package rankingengine

import (
	"errors"
	"fmt"
)

// Kind discriminates the error categories of spec §7 so a caller can
// branch on failure mode without string matching.
type Kind int

const (
	// KindInternal marks a bug or invariant violation; the offending
	// record is skipped and the caller's query proceeds where possible.
	KindInternal Kind = iota
	// KindInvalidInput marks caller-supplied input that fails validation
	// (empty query, out-of-range limit, unknown enum value). No side effects.
	KindInvalidInput
	// KindUnavailable marks a repository or embedding backend that
	// cannot be reached. Callers should degrade rather than fail hard.
	KindUnavailable
	// KindNotFound marks a product, session, or search-log id that
	// does not exist.
	KindNotFound
	// KindConflict marks an upsert that violates a uniqueness invariant.
	KindConflict
	// KindCancelled marks a task cut short by caller cancellation.
	KindCancelled
	// KindTimeout marks a task that exceeded its hard deadline.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnavailable:
		return "unavailable"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindCancelled:
		return "cancelled"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Error wraps an underlying error with a stable Kind tag and the
// operation that produced it, generalizing the teacher's
// StoreError{Op, Err} to carry the discriminator spec §7 requires.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("rankingengine: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("rankingengine: %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind
	}
	return errors.Is(e.Err, target)
}

// Wrap tags err with op and kind. Returns nil if err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind of err, defaulting to KindInternal when err
// was not produced by Wrap.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is* helpers mirror the common discrimination a caller performs.
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }
func IsUnavailable(err error) bool  { return KindOf(err) == KindUnavailable }
func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsCancelled(err error) bool    { return KindOf(err) == KindCancelled }
func IsTimeout(err error) bool      { return KindOf(err) == KindTimeout }
