package migration

import (
	"fmt"

	"github.com/tphakala/flagmigrate/internal/errors"
)

// ErrorKind classifies a fatal migration failure.
type ErrorKind int

const (
	// KindBackendFault is a storage, lookup or transport failure.
	KindBackendFault ErrorKind = iota + 1
	// KindMalformedNoteHistory means notes exist but the history has no usable notes entry.
	KindMalformedNoteHistory
	// KindDomainValidation is a rejection from the flags service other than already-flagged.
	KindDomainValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindBackendFault:
		return "backend fault"
	case KindMalformedNoteHistory:
		return "malformed note history"
	case KindDomainValidation:
		return "domain validation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels matching ItemError kinds through errors.Is.
var (
	ErrBackendFault         = errors.NewStd("backend fault")
	ErrMalformedNoteHistory = errors.NewStd("malformed note history")
	ErrDomainValidation     = errors.NewStd("domain validation")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindBackendFault:
		return ErrBackendFault
	case KindMalformedNoteHistory:
		return ErrMalformedNoteHistory
	case KindDomainValidation:
		return ErrDomainValidation
	default:
		return nil
	}
}

// ItemError is a fatal failure tied to one post. PID is empty for page-level
// failures such as a failed bundle lookup.
type ItemError struct {
	PID  string
	Kind ErrorKind
	Err  error
}

func (e *ItemError) Error() string {
	if e.PID == "" {
		return fmt.Sprintf("migrate page: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("migrate post %s: %s: %v", e.PID, e.Kind, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *ItemError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func itemError(pid string, kind ErrorKind, err error) *ItemError {
	return &ItemError{PID: pid, Kind: kind, Err: err}
}

// FailedItem returns the pid attached to err, or "" when there is none.
func FailedItem(err error) string {
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie.PID
	}
	return ""
}

// KindOf returns the kind of an ItemError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie.Kind, true
	}
	return 0, false
}
