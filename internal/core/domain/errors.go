package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound marks a fetch that the API answered with 404.
	ErrNotFound = errors.New("domain: entity not found")
	// ErrUnavailable marks any entity that could not be fetched. Callers skip it.
	ErrUnavailable = errors.New("domain: entity unavailable")

	ErrSchemaNotReady = errors.New("domain: schema not created")
	ErrStoreClosed    = errors.New("domain: store closed")
	ErrUnknownTable   = errors.New("domain: unknown table")
)

// AuthError means no bearer token could be obtained. Nothing downstream can
// succeed without one, so a run aborts on it.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth: %s", e.Reason)
	}
	return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// FetchError reports a single entity that could not be fetched after retries.
// It is recoverable: the entity is dropped from its batch.
type FetchError struct {
	Kind   Kind
	ID     string
	Status int // 0 when no HTTP response was received
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s %s", e.Kind, e.ID)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return true
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// PersistenceError reports a batch that was rolled back for one table.
type PersistenceError struct {
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
