package reach

import (
	"errors"
	"fmt"
)

var (
	// ErrProvider is a transient or permanent failure reaching the provider.
	ErrProvider = errors.New("provider error")
	// ErrAuth means the provider session was rejected. It also matches ErrProvider.
	ErrAuth = errors.New("provider authentication failed")
	// ErrNotFound means the account does not exist. Not retried.
	ErrNotFound = errors.New("account not found")
	// ErrStore is a job store or cache I/O failure.
	ErrStore = errors.New("store error")
	// ErrCancelled is recorded on jobs that were cancelled while running.
	ErrCancelled = errors.New("job cancelled")

	ErrJobNotFound    = errors.New("job not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrQueueFull      = errors.New("job queue full")
)

// ProviderError describes a failed provider call. Kind is one of ErrProvider,
// ErrAuth or ErrNotFound.
type ProviderError struct {
	Op     string
	Handle string
	Kind   error
	Err    error
}

func (e *ProviderError) Error() string {
	kind := e.Kind
	if kind == nil {
		kind = ErrProvider
	}
	msg := e.Op
	if e.Handle != "" {
		msg += " " + e.Handle
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", msg, kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, kind)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is makes an auth failure match both ErrAuth and ErrProvider.
func (e *ProviderError) Is(target error) bool {
	kind := e.Kind
	if kind == nil {
		kind = ErrProvider
	}
	if target == kind {
		return true
	}
	return target == ErrProvider && kind == ErrAuth
}

// NewProviderError builds a ProviderError of the given kind.
func NewProviderError(op, handle string, kind, err error) *ProviderError {
	return &ProviderError{Op: op, Handle: handle, Kind: kind, Err: err}
}

// StoreError describes a failed store operation.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Key, ErrStore, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }
