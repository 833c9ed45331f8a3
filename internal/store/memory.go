package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/xid"

	"github.com/sakif/ngo-hub/internal/apperror"
)

// compile-time check that *Memory implements RecordStore
var _ RecordStore = (*Memory)(nil)

// Memory is an in-process RecordStore. Documents are kept as encoded JSON so
// callers never share maps with the store and reads return the same shapes
// the persistent backends do.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, collection, key string) (*Document, error) {
	if err := CheckKey(collection, key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	raw, ok := m.docs[collection][key]
	m.mu.RUnlock()
	if !ok {
		return nil, apperror.NotFound(collection, key)
	}
	return decodeDoc(collection, key, raw)
}

func (m *Memory) Set(_ context.Context, collection, key string, fields Fields) error {
	if err := CheckKey(collection, key); err != nil {
		return err
	}
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(collection, key, raw)
	return nil
}

func (m *Memory) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	key := xid.New().String()
	if err := m.Create(ctx, collection, key, fields); err != nil {
		return "", err
	}
	return key, nil
}

func (m *Memory) Create(_ context.Context, collection, key string, fields Fields) error {
	if err := CheckKey(collection, key); err != nil {
		return err
	}
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[collection][key]; exists {
		return apperror.Conflict(collection, key)
	}
	m.put(collection, key, raw)
	return nil
}

func (m *Memory) Update(_ context.Context, collection, key string, fields Fields) error {
	if err := CheckKey(collection, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modify(collection, key, func(current Fields) error {
		for k, v := range fields {
			current[k] = v
		}
		return nil
	})
}

func (m *Memory) Increment(_ context.Context, collection, key, field string, delta float64) error {
	if err := CheckKey(collection, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modify(collection, key, func(current Fields) error {
		switch n := current[field].(type) {
		case nil:
			current[field] = delta
		case float64:
			current[field] = n + delta
		default:
			return apperror.ValidationFailed(field, fmt.Sprintf("%s is not numeric", field))
		}
		return nil
	})
}

func (m *Memory) Delete(_ context.Context, collection, key string) error {
	if err := CheckKey(collection, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[collection], key)
	return nil
}

func (m *Memory) List(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	keys := make([]string, 0, len(m.docs[collection]))
	for k := range m.docs[collection] {
		keys = append(keys, k)
	}
	snapshot := make(map[string][]byte, len(keys))
	for _, k := range keys {
		snapshot[k] = m.docs[collection][k]
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	docs := make([]Document, 0, len(keys))
	for _, k := range keys {
		doc, err := decodeDoc(collection, k, snapshot[k])
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// put must be called with mu held.
func (m *Memory) put(collection, key string, raw []byte) {
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string][]byte)
	}
	m.docs[collection][key] = raw
}

// modify applies fn to a decoded copy of the document and stores the result.
// Must be called with mu held.
func (m *Memory) modify(collection, key string, fn func(Fields) error) error {
	raw, ok := m.docs[collection][key]
	if !ok {
		return apperror.NotFound(collection, key)
	}
	doc, err := decodeDoc(collection, key, raw)
	if err != nil {
		return err
	}
	if err := fn(doc.Fields); err != nil {
		return err
	}
	updated, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}
	m.docs[collection][key] = updated
	return nil
}

func encodeFields(fields Fields) ([]byte, error) {
	if fields == nil {
		fields = Fields{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("store: encoding fields: %w", err)
	}
	return raw, nil
}

func decodeDoc(collection, key string, raw []byte) (*Document, error) {
	var f Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("store: decoding %s/%s: %w", collection, key, err)
	}
	return &Document{Collection: collection, Key: key, Fields: f}, nil
}
