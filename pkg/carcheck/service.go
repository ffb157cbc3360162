package carcheck

import (
	"context"
	"encoding/json"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface for the carcheck library
type Service interface {
	// Upload stores an image, records it, runs the classifier and returns
	// the bytes to send back to the client
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)

	// File record operations
	CreateFile(ctx context.Context, req CreateFileRequest) (*FileRecord, error)
	GetFile(ctx context.Context, id uuid.UUID) (*FileRecord, error)
	ListFiles(ctx context.Context, req ListFilesRequest) (*FilePage, error)
	DeleteFile(ctx context.Context, id uuid.UUID) error

	// Classification operations
	UpdateClassification(ctx context.Context, id uuid.UUID, classification json.RawMessage) (*FileRecord, error)
	GetClassification(ctx context.Context, id uuid.UUID) (json.RawMessage, error)
	GetPredictions(ctx context.Context, id uuid.UUID) (*PredictionResult, error)

	// OpenBlob streams a stored image by its stored name
	OpenBlob(ctx context.Context, name string) (io.ReadCloser, error)
}
