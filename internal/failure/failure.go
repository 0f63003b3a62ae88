// Package failure classifies errors at consumer and HTTP boundaries.
package failure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
)

type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindTransient
	KindBusiness
	KindDuplicate
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindBusiness:
		return "business"
	case KindDuplicate:
		return "duplicate"
	}
	return "unknown"
}

var (
	ErrValidation = eris.New("validation failed")
	ErrTransient  = eris.New("transient failure")
	ErrBusiness   = eris.New("business rule failure")
	ErrDuplicate  = eris.New("duplicate delivery")
)

func Validation(format string, args ...any) error {
	return eris.Wrapf(ErrValidation, format, args...)
}

// Transient marks err as retryable. A nil err yields a bare transient failure.
func Transient(err error, format string, args ...any) error {
	if err == nil {
		return eris.Wrapf(ErrTransient, format, args...)
	}
	return &tagged{kind: ErrTransient, msg: fmt.Sprintf(format, args...), err: err}
}

func Business(format string, args ...any) error {
	return eris.Wrapf(ErrBusiness, format, args...)
}

func Duplicate(format string, args ...any) error {
	return eris.Wrapf(ErrDuplicate, format, args...)
}

// tagged attaches a kind to an underlying cause without hiding it.
type tagged struct {
	kind error
	msg  string
	err  error
}

func (t *tagged) Error() string { return t.msg + ": " + t.err.Error() }
func (t *tagged) Unwrap() error { return t.err }

func (t *tagged) Is(target error) bool {
	return target == t.kind
}

// Classify maps err onto the taxonomy. Anything unrecognised, including store
// contention and context deadlines, is transient so the message is retried
// rather than dropped.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrDuplicate):
		return KindDuplicate
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrBusiness):
		return KindBusiness
	}
	return KindTransient
}

// IsSuccess reports whether a handler outcome should be acknowledged as done.
func IsSuccess(err error) bool {
	k := Classify(err)
	return k == KindNone || k == KindDuplicate
}

// IsBusy reports whether err is sqlite lock contention.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code == sqlite3.ErrBusy || sqlErr.Code == sqlite3.ErrLocked
	}
	return strings.Contains(err.Error(), "database is locked")
}

// IsConstraint reports whether err is a sqlite constraint violation.
func IsConstraint(err error) bool {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code == sqlite3.ErrConstraint
	}
	return false
}
