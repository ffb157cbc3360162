// Package cache wraps a carcheck.Repository with a per-instance LRU of file
// records. Entries expire after a TTL and are dropped on every write to the
// same record.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carcheck_file_cache_hits_total",
		Help: "File record cache hits.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carcheck_file_cache_misses_total",
		Help: "File record cache misses.",
	})
)

// Repository is a read-through cache in front of another repository.
// List always goes to the underlying store.
type Repository struct {
	next  carcheck.Repository
	cache *expirable.LRU[uuid.UUID, *carcheck.FileRecord]

	// generation is bumped before and after every write. A read miss only
	// populates the cache when no write started or finished while it was
	// reading from next.
	mu         sync.Mutex
	generation uint64
}

// New wraps next with an LRU holding up to size records for ttl.
func New(next carcheck.Repository, size int, ttl time.Duration) *Repository {
	return &Repository{
		next:  next,
		cache: expirable.NewLRU[uuid.UUID, *carcheck.FileRecord](size, nil, ttl),
	}
}

func (r *Repository) Create(ctx context.Context, file *carcheck.FileRecord) error {
	if err := r.next.Create(ctx, file); err != nil {
		return err
	}
	r.mu.Lock()
	r.cache.Add(file.ID, file.Clone())
	r.mu.Unlock()
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*carcheck.FileRecord, error) {
	if file, ok := r.cache.Get(id); ok {
		cacheHitsTotal.Inc()
		return file.Clone(), nil
	}
	cacheMissesTotal.Inc()

	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()

	file, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.generation == gen {
		r.cache.Add(id, file.Clone())
	}
	r.mu.Unlock()
	return file, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]*carcheck.FileRecord, int64, error) {
	return r.next.List(ctx, limit, offset)
}

func (r *Repository) UpdateClassification(ctx context.Context, id uuid.UUID, classification json.RawMessage) (*carcheck.FileRecord, error) {
	r.invalidate(id)
	file, err := r.next.UpdateClassification(ctx, id, classification)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	if err != nil {
		r.cache.Remove(id)
		return nil, err
	}
	r.cache.Add(id, file.Clone())
	return file, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	r.invalidate(id)
	err := r.next.Delete(ctx, id)
	r.invalidate(id)
	return err
}

func (r *Repository) invalidate(id uuid.UUID) {
	r.mu.Lock()
	r.generation++
	r.cache.Remove(id)
	r.mu.Unlock()
}

// Len returns the number of cached records
func (r *Repository) Len() int {
	return r.cache.Len()
}
