// Package store defines the Record Store: a keyed document store organised
// in collections. Backends live in internal/repository (SQLite, MongoDB);
// Memory here is used in tests and for throwaway dev servers.
//
// DOCUMENT MODEL:
//
//	collection  → "users", "projects", "donations", "volunteers"
//	key         → unique within a collection (caller-chosen or generated)
//	fields      → a JSON object
//
// Fields always round-trip through JSON, so every backend hands back the same
// shapes: numbers come back as float64, times as RFC 3339 strings. Use Encode
// and Decode to move between typed structs and Fields.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sakif/ngo-hub/internal/apperror"
)

// Collections used by the portal.
const (
	CollectionUsers      = "users"
	CollectionProjects   = "projects"
	CollectionDonations  = "donations"
	CollectionVolunteers = "volunteers"
)

// Fields is the body of a document.
type Fields map[string]any

// Document is a stored record.
type Document struct {
	Collection string
	Key        string
	Fields     Fields
}

// RecordStore is the storage contract every backend implements.
//
// Errors are classified with apperror: a missing document is ErrNotFound,
// Create on an existing key is ErrConflict, and an unreachable backend is
// ErrNetwork.
type RecordStore interface {
	// Get returns the document or an ErrNotFound error.
	Get(ctx context.Context, collection, key string) (*Document, error)
	// Set writes fields under key, replacing any existing document.
	Set(ctx context.Context, collection, key string, fields Fields) error
	// Add stores fields under a generated key and returns it.
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	// Create stores fields under key only if the key is free; otherwise it
	// returns an ErrConflict error and leaves the existing document untouched.
	Create(ctx context.Context, collection, key string, fields Fields) error
	// Update merges fields into an existing document (top-level keys only).
	Update(ctx context.Context, collection, key string, fields Fields) error
	// Increment adds delta to a numeric field, treating a missing field as 0.
	Increment(ctx context.Context, collection, key, field string, delta float64) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, key string) error
	// List returns every document in the collection ordered by key.
	List(ctx context.Context, collection string) ([]Document, error)
}

// Encode converts a JSON-tagged struct (or map) to Fields.
func Encode(v any) (Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encoding fields: %w", err)
	}
	var f Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("store: encoding fields: %w", err)
	}
	return f, nil
}

// Decode fills the JSON-tagged struct pointed to by v from the document's fields.
func Decode(doc *Document, v any) error {
	raw, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("store: decoding %s/%s: %w", doc.Collection, doc.Key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("store: decoding %s/%s: %w", doc.Collection, doc.Key, err)
	}
	return nil
}

// CheckKey validates the collection/key pair shared by every operation.
func CheckKey(collection, key string) error {
	if collection == "" {
		return apperror.ValidationFailed("collection", "collection is required")
	}
	if key == "" {
		return apperror.ValidationFailed("key", "key is required")
	}
	return nil
}
