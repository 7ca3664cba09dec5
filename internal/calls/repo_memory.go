package calls

import (
	"context"
	"errors"
	"sync"
)

// MemoryRepo keeps records in process memory. Used when no database is
// configured, and in tests.
type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{records: map[string]Record{}} }

func (r *MemoryRepo) Save(ctx context.Context, rec Record) error {
	if rec.RoomName == "" {
		return errors.New("calls: room_name required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.records[rec.RoomName]; ok && !prev.CreatedAt.IsZero() {
		rec.CreatedAt = prev.CreatedAt
	}
	r.records[rec.RoomName] = rec
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, roomName string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[roomName]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
