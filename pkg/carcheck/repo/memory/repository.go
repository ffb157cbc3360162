package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
)

// Repository implements carcheck.Repository using in-memory storage
type Repository struct {
	mu    sync.RWMutex
	files map[uuid.UUID]*carcheck.FileRecord
	now   func() time.Time
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		files: make(map[uuid.UUID]*carcheck.FileRecord),
		now:   time.Now,
	}
}

func (r *Repository) Create(ctx context.Context, file *carcheck.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to avoid external modifications
	r.files[file.ID] = file.Clone()
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*carcheck.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	file, exists := r.files[id]
	if !exists {
		return nil, carcheck.ErrFileNotFound
	}
	return file.Clone(), nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]*carcheck.FileRecord, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*carcheck.FileRecord, 0, len(r.files))
	for _, file := range r.files {
		all = append(all, file)
	}

	// Newest first; ID breaks ties so pages are stable
	sort.Slice(all, func(i, j int) bool {
		if all[i].UploadedAt.Equal(all[j].UploadedAt) {
			return all[i].ID.String() > all[j].ID.String()
		}
		return all[i].UploadedAt.After(all[j].UploadedAt)
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []*carcheck.FileRecord{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	result := make([]*carcheck.FileRecord, 0, end-offset)
	for _, file := range all[offset:end] {
		result = append(result, file.Clone())
	}
	return result, total, nil
}

func (r *Repository) UpdateClassification(ctx context.Context, id uuid.UUID, classification json.RawMessage) (*carcheck.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, exists := r.files[id]
	if !exists {
		return nil, carcheck.ErrFileNotFound
	}

	file.Classification = carcheck.CloneClassification(classification)
	file.IsAnalyzed = true
	file.UpdatedAt = r.now().UTC()
	return file.Clone(), nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.files[id]; !exists {
		return carcheck.ErrFileNotFound
	}
	delete(r.files, id)
	return nil
}
