package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grantthrive/pulse/model"
)

// MemoryProgressStore is an in-memory ProgressStore. Suitable for testing
// and single-instance deployments; durability is the host's concern.
type MemoryProgressStore struct {
	mu      sync.RWMutex
	records map[string]model.ProgressRecord // key: application ID
}

// NewMemoryProgressStore creates a new in-memory progress store.
func NewMemoryProgressStore() *MemoryProgressStore {
	return &MemoryProgressStore{
		records: make(map[string]model.ProgressRecord),
	}
}

// Create persists a new progress record.
func (s *MemoryProgressStore) Create(_ context.Context, record model.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ApplicationID]; exists {
		return model.NewAlreadyInitializedError(record.ApplicationID)
	}

	s.records[record.ApplicationID] = record.Clone()
	return nil
}

// Get retrieves the progress record for an application.
func (s *MemoryProgressStore) Get(_ context.Context, applicationID string) (model.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[applicationID]
	if !exists {
		return model.ProgressRecord{}, model.NewNotFoundError(
			fmt.Sprintf("progress for application %q not found", applicationID),
		)
	}
	return record.Clone(), nil
}

// Update persists an updated record with optimistic locking.
func (s *MemoryProgressStore) Update(_ context.Context, record model.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.records[record.ApplicationID]
	if !exists {
		return model.NewNotFoundError(
			fmt.Sprintf("progress for application %q not found", record.ApplicationID),
		)
	}

	if existing.Version != record.Version {
		return model.NewConflictError(
			fmt.Sprintf("progress for application %q version conflict (expected %d, got %d)",
				record.ApplicationID, record.Version, existing.Version),
		)
	}

	updated := record.Clone()
	updated.Version++
	updated.UpdatedAt = time.Now().UTC()
	s.records[record.ApplicationID] = updated
	return nil
}

// Delete removes the progress record for an application.
func (s *MemoryProgressStore) Delete(_ context.Context, applicationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[applicationID]; !exists {
		return model.NewNotFoundError(
			fmt.Sprintf("progress for application %q not found", applicationID),
		)
	}

	delete(s.records, applicationID)
	return nil
}

// Len returns the number of stored records. For testing.
func (s *MemoryProgressStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
