package errors

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrFutureDate        = errors.New("date is in the future")
	ErrSyncTransport     = errors.New("sync transport failure")
	ErrStorageCorruption = errors.New("storage corrupted")
)

// ValidationError reports bad caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a lookup by id that matched nothing.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// FutureDateError is returned when a completion targets a day after today.
type FutureDateError struct {
	DayKey string
	Today  string
}

func (e *FutureDateError) Error() string {
	if e.Today == "" {
		return fmt.Sprintf("cannot complete a habit on a future date (%s)", e.DayKey)
	}
	return fmt.Sprintf("cannot complete a habit on a future date (%s is after %s)", e.DayKey, e.Today)
}

func (e *FutureDateError) Is(target error) bool { return target == ErrFutureDate }

// SyncTransportError wraps a remote failure during a sync step. Nothing is
// rolled back remotely; a retry converges because every step is idempotent.
type SyncTransportError struct {
	Step string
	Err  error
}

func (e *SyncTransportError) Error() string {
	return fmt.Sprintf("sync failed during %s: %v", e.Step, e.Err)
}

func (e *SyncTransportError) Unwrap() error { return e.Err }

func (e *SyncTransportError) Is(target error) bool { return target == ErrSyncTransport }

// StorageCorruptionError reports an unreadable persisted blob. Callers log
// it and continue with empty state.
type StorageCorruptionError struct {
	Key string
	Err error
}

func (e *StorageCorruptionError) Error() string {
	return fmt.Sprintf("stored %s could not be decoded: %v", e.Key, e.Err)
}

func (e *StorageCorruptionError) Unwrap() error { return e.Err }

func (e *StorageCorruptionError) Is(target error) bool { return target == ErrStorageCorruption }

// Validation is shorthand for building a ValidationError.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFound is shorthand for building a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}
