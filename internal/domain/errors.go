package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSource is returned when a source is registered without an id or adapter.
	ErrInvalidSource = errors.New("invalid source")
	// ErrDuplicateSource is returned when a source id is registered twice.
	ErrDuplicateSource = errors.New("duplicate source id")
	// ErrUserNotFound is returned for operations on an unknown user.
	ErrUserNotFound = errors.New("user not found")
	// ErrSubscriptionNotFound is returned when unsubscribing from a source the user does not follow.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// FetchError wraps a network, timeout, status or parse failure at a source.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NoMatchError means the source responded but no item passed the selection heuristic.
type NoMatchError struct {
	Source string
	Reason string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.Source, e.Reason)
}

// SummarizeError means the AI collaborator failed or returned a malformed structure.
type SummarizeError struct {
	Err error
}

func (e *SummarizeError) Error() string {
	return fmt.Sprintf("summarize: %v", e.Err)
}

func (e *SummarizeError) Unwrap() error { return e.Err }

// DeliveryError is a failed send to a single recipient over a single channel.
type DeliveryError struct {
	Channel   string
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s to %s: %v", e.Channel, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// ConfigError reports a missing credential or setting needed by an operation.
type ConfigError struct {
	Key     string
	Feature string
}

func (e *ConfigError) Error() string {
	if e.Feature == "" {
		return fmt.Sprintf("configuration: %s is not set", e.Key)
	}
	return fmt.Sprintf("configuration: %s is required for %s", e.Key, e.Feature)
}

// SourceNotFoundError is returned by registry lookups for an unknown id.
type SourceNotFoundError struct {
	ID    string
	Valid []string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("source %q not found (available: %s)", e.ID, strings.Join(e.Valid, ", "))
}
