// Package store abstracts the remote document store the attempt engine
// persists into. Paths are slash-separated keys; values are JSON documents.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Read when no document exists at the path.
var ErrNotFound = errors.New("store: not found")

// Store is the minimal async persistence contract the session engine writes
// through. Implementations must treat each call as a single atomic operation;
// ordering across calls is the caller's concern (the outbox serializes them).
type Store interface {
	// Read returns the document at path, or ErrNotFound.
	Read(ctx context.Context, path string) (json.RawMessage, error)

	// Create stores data under an auto-generated child key of path and
	// returns the generated key.
	Create(ctx context.Context, path string, data any) (string, error)

	// Update shallow-merges partial into the document at path, creating it
	// if absent.
	Update(ctx context.Context, path string, partial map[string]any) error

	// Set overwrites the document at path.
	Set(ctx context.Context, path string, data any) error

	// Delete removes the document at path. Deleting a missing path is not
	// an error.
	Delete(ctx context.Context, path string) error

	// Subscribe invokes fn with the current document (if any) and then on
	// every subsequent change to path, until the returned cancel func is
	// called or ctx is done.
	Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (func(), error)
}

// merge applies a shallow merge of partial onto the JSON object in raw.
// A nil/absent document merges into just the partial fields.
func merge(raw json.RawMessage, partial map[string]any) (json.RawMessage, error) {
	base := make(map[string]any)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &base); err != nil {
			return nil, err
		}
	}
	for k, v := range partial {
		base[k] = v
	}
	return json.Marshal(base)
}
