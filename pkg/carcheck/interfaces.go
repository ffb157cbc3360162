package carcheck

import (
	"context"
	"encoding/json"
	"io"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Upload writes the blob under key
	Upload(ctx context.Context, key string, reader io.Reader, mimeType string) error

	// Download opens the blob stored under key
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob stored under key
	Delete(ctx context.Context, key string) error
}

// URLResolver is implemented by blob stores that hand out their own
// publicly reachable URLs, such as presigned S3 links.
type URLResolver interface {
	PublicURL(ctx context.Context, key string) (string, error)
}

// Repository defines the interface for file record persistence
type Repository interface {
	Create(ctx context.Context, file *FileRecord) error
	Get(ctx context.Context, id uuid.UUID) (*FileRecord, error)

	// List returns records ordered by upload time, newest first, and the total count
	List(ctx context.Context, limit, offset int) ([]*FileRecord, int64, error)

	// UpdateClassification stores classification and marks the record analyzed in one step
	UpdateClassification(ctx context.Context, id uuid.UUID, classification json.RawMessage) (*FileRecord, error)

	Delete(ctx context.Context, id uuid.UUID) error
}

// Classifier sends an image to an external classification service.
type Classifier interface {
	// Name identifies the backend in logs and metrics
	Name() string

	// Analyze returns annotated image bytes and, when the backend provides
	// one, a structured classification
	Analyze(ctx context.Context, imageURL string) (*AnalysisResult, error)
}

// Predictor returns raw detection output for an image.
type Predictor interface {
	Predict(ctx context.Context, imageURL string) (*PredictionResult, error)
}
