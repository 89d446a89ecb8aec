package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"autoservice/internal/models"
)

// MemoryStateRepository keeps sessions in process. Used as the fallback when Redis is down.
type MemoryStateRepository struct {
	mu         sync.Mutex
	sessions   map[int64]memoryEntry
	rateLimits map[int64]*rateLimitEntry
	marks      map[string]time.Time
	ttl        time.Duration
	now        func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	return &MemoryStateRepository{
		sessions:   make(map[int64]memoryEntry),
		rateLimits: make(map[int64]*rateLimitEntry),
		marks:      make(map[string]time.Time),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemoryStateRepository) GetSession(_ context.Context, chatID int64) (*models.Session, error) {
	r.mu.Lock()
	entry, ok := r.sessions[chatID]
	if ok && r.ttl > 0 && r.now().After(entry.expiresAt) {
		delete(r.sessions, chatID)
		ok = false
	}
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}

	// stored as JSON so callers never share a mutable session
	var session models.Session
	if err := json.Unmarshal(entry.data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *MemoryStateRepository) SaveSession(_ context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ChatID] = memoryEntry{data: data, expiresAt: r.now().Add(r.ttl)}
	return nil
}

func (r *MemoryStateRepository) ClearSession(_ context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, chatID)
	return nil
}

func (r *MemoryStateRepository) CheckRateLimit(_ context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[chatID]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[chatID] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}

func (r *MemoryStateRepository) MarkOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if expiresAt, ok := r.marks[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	r.marks[key] = now.Add(ttl)
	return true, nil
}

func (r *MemoryStateRepository) Unmark(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.marks, key)
	return nil
}
