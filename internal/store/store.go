package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
)

// Document is a single schemaless record, as stored in a collection.
type Document map[string]any

// Filter is a field equality filter used by Query.
type Filter struct {
	Field string
	Value any
}

// Tx is the set of operations available inside a transaction.
// All calls within one Transaction fn are atomic.
type Tx interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, doc Document, merge bool) error
	Update(ctx context.Context, collection, id string, fields Document) error
}

// Client is the document store contract used by all repos.
type Client interface {
	Tx
	// Insert creates a new document, failing with ErrAlreadyExists when
	// the (collection, id) pair is already taken.
	Insert(ctx context.Context, collection, id string, doc Document) error
	// Query returns all documents of a collection matching the given
	// equality filters; no filters means a full collection scan.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// ToDocument converts a typed value to a Document through its JSON form.
func ToDocument(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

// FromDocument converts a Document back into a typed value.
func FromDocument(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	return nil
}
