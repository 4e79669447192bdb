// Package storage contains the in-memory evidence store used by the
// standalone server and the test suites.
package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/omni-inspector/photoproof/internal/forensic"
	"github.com/omni-inspector/photoproof/internal/model"
)

// ErrNotFound is returned for lookups of unknown evidence IDs.
var ErrNotFound = errors.New("evidence not found")

// MemoryStore keeps evidence records in a map guarded by an RWMutex. Reads
// dominate once a batch is running, so readers share the lock.
type MemoryStore struct {
	mu       sync.RWMutex
	evidence map[string]*model.EvidenceRecord
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		evidence: make(map[string]*model.EvidenceRecord),
	}
}

// Save inserts or replaces a record.
func (m *MemoryStore) Save(record *model.EvidenceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	m.evidence[record.ID] = record
}

// UpdateStatus updates status and message for an existing record.
func (m *MemoryStore) UpdateStatus(id string, status model.EvidenceStatus, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.evidence[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	rec.Message = msg
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// SetResult attaches a finished forensic result and moves the record to its
// terminal status based on the verdict.
func (m *MemoryStore) SetResult(id string, result *forensic.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.evidence[id]
	if !ok {
		return ErrNotFound
	}
	rec.Result = result
	if result.Authentic {
		rec.Status = model.StatusComplete
		rec.Message = "analysis complete"
	} else {
		rec.Status = model.StatusRejected
		if result.RejectionReason != nil {
			rec.Message = *result.RejectionReason
		}
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// Get returns a shallow copy so callers cannot mutate stored state.
func (m *MemoryStore) Get(id string) (*model.EvidenceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.evidence[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}
