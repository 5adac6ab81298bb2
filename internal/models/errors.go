package models

import (
	"errors"
	"fmt"
)

// Failure kinds shared by every engine. Callers match them with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrArchiveUnavailable = errors.New("archive unavailable")
	ErrInternal           = errors.New("internal error")
)

// Kind names a failure class on the wire.
type Kind string

const (
	KindNone               Kind = ""
	KindNotFound           Kind = "not_found"
	KindInvalidInput       Kind = "invalid_input"
	KindArchiveUnavailable Kind = "archive_unavailable"
	KindInternal           Kind = "internal"
)

// Error is a typed failure with the offending ids attached.
type Error struct {
	Kind     Kind
	TargetID string
	BackupID int
	Field    string
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.TargetID != "" {
		msg += fmt.Sprintf(" target=%s", e.TargetID)
	}
	if e.BackupID > 0 {
		msg += fmt.Sprintf(" backup=%d", e.BackupID)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" field=%s", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind, so errors.Is(err, ErrNotFound) works
// without every constructor having to wrap the sentinel.
func (e *Error) Is(target error) bool {
	return sentinelFor(e.Kind) == target
}

func sentinelFor(k Kind) error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindInvalidInput:
		return ErrInvalidInput
	case KindArchiveUnavailable:
		return ErrArchiveUnavailable
	case KindInternal:
		return ErrInternal
	}
	return nil
}

// KindOf classifies err. Errors that carry no kind are reported as internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrArchiveUnavailable):
		return KindArchiveUnavailable
	default:
		return KindInternal
	}
}

// IsTyped reports whether err already carries one of the failure kinds.
func IsTyped(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrArchiveUnavailable) || errors.Is(err, ErrInternal)
}

func TargetNotFound(targetID string) error {
	return &Error{Kind: KindNotFound, TargetID: targetID}
}

func BackupNotFound(targetID string, backupID int) error {
	return &Error{Kind: KindNotFound, TargetID: targetID, BackupID: backupID}
}

func InvalidInput(field string) error {
	return &Error{Kind: KindInvalidInput, Field: field}
}

func ArchiveUnavailable(targetID string, backupID int, err error) error {
	return &Error{Kind: KindArchiveUnavailable, TargetID: targetID, BackupID: backupID, Err: err}
}

func Internal(targetID string, err error) error {
	return &Error{Kind: KindInternal, TargetID: targetID, Err: err}
}
