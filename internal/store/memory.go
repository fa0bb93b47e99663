package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/calconnect/internal/integration"
)

type memKey struct {
	userID  string
	appType integration.AppType
}

// MemoryStore keeps integrations in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   map[memKey]*integration.Integration
	logger *slog.Logger
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		rows:   make(map[memKey]*integration.Integration),
		logger: o.logger,
		now:    o.now,
	}
}

// Find implements Store.
func (s *MemoryStore) Find(ctx context.Context, userID string, appType integration.AppType) (*integration.Integration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[memKey{userID, appType}].Clone(), nil
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, in *integration.Integration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := memKey{in.UserID, in.AppType}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[k]; exists {
		return integration.Duplicate(in.AppType)
	}
	prepareCreate(in, s.now())
	s.rows[k] = in.Clone()
	s.logger.Debug("Created integration", "app_type", in.AppType)
	return nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, in *integration.Integration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := memKey{in.UserID, in.AppType}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.rows[k]
	if !ok {
		return integration.NotFound(in.AppType)
	}
	if cur.Version != in.Version {
		return ErrConcurrentModification
	}
	in.Version++
	in.UpdatedAt = s.now().UTC()
	s.rows[k] = in.Clone()
	return nil
}

// ListByUser implements Store. Results are ordered by creation time.
func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*integration.Integration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*integration.Integration
	for k, row := range s.rows {
		if k.userID == userID {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].AppType < out[j].AppType
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, userID string, appType integration.AppType) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := memKey{userID, appType}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[k]; !ok {
		return integration.NotFound(appType)
	}
	delete(s.rows, k)
	return nil
}

// Stats returns the number of stored integrations.
func (s *MemoryStore) Stats() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func prepareCreate(in *integration.Integration, now time.Time) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Metadata == nil {
		in.Metadata = integration.Metadata{}
	}
	now = now.UTC()
	in.CreatedAt = now
	in.UpdatedAt = now
	in.Version = 1
}
