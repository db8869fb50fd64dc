package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/baiirun/worklog/internal/storage"
)

// Error kinds. Every error returned by the Service wraps exactly one of them,
// so callers can branch with errors.Is.
var (
	// ErrAuthorization means the actor lacks permission. Never retried.
	ErrAuthorization = errors.New("authorization denied")
	// ErrPrecondition means a domain rule rejected the request.
	ErrPrecondition = errors.New("precondition failed")
	// ErrNotFound means a referenced project, item, issue or attachment is missing.
	ErrNotFound = errors.New("not found")
	// ErrDependency means a backing store or the attachment store failed.
	// The engine never retries; callers may, with backoff.
	ErrDependency = errors.New("dependency failed")
	// ErrConflict means a compare-and-set lost a race with another writer.
	ErrConflict = errors.New("concurrent modification")
)

// Reason qualifies an authorization denial.
type Reason string

const (
	ReasonNotOwner       Reason = "not owner"
	ReasonNotAssigned    Reason = "not assigned"
	ReasonForbiddenField Reason = "forbidden field for role"
)

// Error is the engine's error type.
type Error struct {
	Kind   error
	Reason Reason // authorization denials only
	Op     string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Reason != "" {
		b.WriteString(" (")
		b.WriteString(string(e.Reason))
		b.WriteString(")")
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ReasonOf returns the denial reason carried by err, if any.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

func deny(reason Reason, format string, args ...any) error {
	return &Error{Kind: ErrAuthorization, Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

func precondition(format string, args ...any) error {
	return &Error{Kind: ErrPrecondition, Msg: fmt.Sprintf(format, args...)}
}

// fromStore classifies a collaborator failure. Engine errors pass through
// with Op filled in.
func fromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Op == "" {
			e.Op = op
		}
		return e
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return &Error{Kind: ErrNotFound, Op: op, Err: err}
	case errors.Is(err, storage.ErrConflict):
		return &Error{Kind: ErrConflict, Op: op, Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Error{Kind: ErrDependency, Op: op, Msg: "deadline exceeded", Err: err}
	}
	return &Error{Kind: ErrDependency, Op: op, Err: err}
}

// withOp stamps op on an engine error that does not carry one yet.
func withOp(op string, err error) error {
	var e *Error
	if errors.As(err, &e) && e.Op == "" {
		e.Op = op
	}
	return err
}

// CascadeWarning records a best-effort side effect that failed after the
// primary action committed.
type CascadeWarning struct {
	Op     string
	ItemID string
	Err    error
}

func (w CascadeWarning) String() string {
	return fmt.Sprintf("%s on %s: %v", w.Op, w.ItemID, w.Err)
}
