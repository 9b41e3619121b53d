package clobengine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrQueueFull is returned when adding to a batch queue at capacity
	ErrQueueFull = errors.New("batch queue is full")

	// ErrUserRejected is returned when the wallet owner declines a signature
	// or network-switch prompt. It is a benign abort, not a system failure.
	ErrUserRejected = errors.New("user rejected the request")

	// ErrWrongChain is returned when the wallet is on the wrong network and
	// the switch did not complete
	ErrWrongChain = errors.New("wallet is on the wrong chain")

	// ErrCredentialsUnavailable is returned when API credentials could not be
	// derived or created
	ErrCredentialsUnavailable = errors.New("api credentials unavailable")

	// ErrNotReady is returned when the signing client has not finished
	// (re)initializing within the caller's deadline
	ErrNotReady = errors.New("signing client not ready")
)

// ValidationError blocks submission of an order that fails pre-flight checks.
// It is user-correctable and never involves the network.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "order validation failed: " + strings.Join(e.Reasons, "; ")
}

// SubmissionError is a retryable failure from the CLOB or the transport
// during order submission. No partial order state survives it.
type SubmissionError struct {
	Op  string
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// InvalidParamError reports a malformed parameter before any work is done
type InvalidParamError struct {
	Message string
}

func (e *InvalidParamError) Error() string {
	return e.Message
}

// BatchError aggregates a totally failed batch submission; the queue is
// preserved when it is returned.
type BatchError struct {
	Failed int
	First  error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("all %d batch orders failed: %v", e.Failed, e.First)
}

func (e *BatchError) Unwrap() error {
	return e.First
}
