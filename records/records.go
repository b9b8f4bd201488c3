// Package records is an in-memory record store for hosts that have no
// persistence of their own. It keeps payloads per entity alias and serves
// them back to upload coordinators through upload.RecordReader.
package records

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/code19m/errx"
	"github.com/google/uuid"

	"github.com/rise-and-shine/fileupload/upload"
)

// CodeRecordNotFound is returned when no record exists for an alias and id.
const CodeRecordNotFound = "RECORD_NOT_FOUND"

var _ upload.RecordReader = (*Memory)(nil)

// Memory is a concurrency-safe record store keyed by alias and id.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]any
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]map[string]any)}
}

// Insert stores a copy of payload under a new id and returns the id.
func (m *Memory) Insert(alias string, payload map[string]any) string {
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data[alias] == nil {
		m.data[alias] = make(map[string]map[string]any)
	}
	m.data[alias][id] = maps.Clone(payload)
	return id
}

// Replace overwrites the payload of an existing record.
func (m *Memory) Replace(alias, id string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[alias][id]; !ok {
		return notFound(alias, id)
	}
	m.data[alias][id] = maps.Clone(payload)
	return nil
}

// Get returns a copy of the record payload.
func (m *Memory) Get(alias, id string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	payload, ok := m.data[alias][id]
	if !ok {
		return nil, notFound(alias, id)
	}
	return maps.Clone(payload), nil
}

// ReadRecord implements upload.RecordReader.
func (m *Memory) ReadRecord(_ context.Context, alias, id string) (map[string]any, error) {
	return m.Get(alias, id)
}

// Delete removes a record. Deleting a missing record is an error.
func (m *Memory) Delete(alias, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[alias][id]; !ok {
		return notFound(alias, id)
	}
	delete(m.data[alias], id)
	return nil
}

// Entry is a stored record as returned by List.
type Entry struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// List returns copies of every record stored for alias, ordered by id.
func (m *Memory) List(alias string) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(m.data[alias]))
	for _, id := range slices.Sorted(maps.Keys(m.data[alias])) {
		entries = append(entries, Entry{ID: id, Data: maps.Clone(m.data[alias][id])})
	}
	return entries
}

// Len returns the number of records stored for alias.
func (m *Memory) Len(alias string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[alias])
}

func notFound(alias, id string) error {
	return errx.New(
		"record not found",
		errx.WithCode(CodeRecordNotFound),
		errx.WithType(errx.T_NotFound),
		errx.WithDetails(errx.D{"alias": alias, "id": id}),
	)
}
