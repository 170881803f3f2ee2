// Package transport defines the contract for calling named procedures on a
// remote TTS serving endpoint.
//
// The harness never cares how a call travels. It only needs to invoke a
// procedure by name with keyword arguments and read back the ordered outputs.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrConnection means the endpoint could not be reached or described.
// It is fatal for a run.
var ErrConnection = errors.New("connection failed")

// Client invokes remote procedures.
type Client interface {
	// Predict calls procedure with named parameters and returns its outputs
	// in declaration order. Parameters left out take server-side defaults.
	// File outputs are returned as local filesystem paths.
	Predict(ctx context.Context, procedure string, params map[string]any) ([]any, error)

	// Close releases resources held by the client, including downloaded files.
	Close() error
}

// CallError is a single failed procedure invocation. It is recoverable:
// the caller records it and moves on.
type CallError struct {
	Procedure string
	Err       error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Procedure, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Message returns the underlying failure without the procedure prefix,
// which is what operators want to read next to an engine name.
func Message(err error) string {
	var ce *CallError
	if errors.As(err, &ce) && ce.Err != nil {
		return ce.Err.Error()
	}
	return err.Error()
}
