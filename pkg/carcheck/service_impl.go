package carcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/madeyra2980/backend-form/pkg/carcheck/objectkey"
)

// AnnotatedPrefix is prepended to the stored name of classifier output.
const AnnotatedPrefix = "analyzed_"

// UploadsPath is where stored blobs are served from.
const UploadsPath = "/uploads/"

// service implements the Service interface
type service struct {
	repository    Repository
	blobStore     BlobStore
	blobStoreName string
	classifier    Classifier
	predictor     Predictor
	keyGenerator  objectkey.Generator
	publicBaseURL string
	logger        *slog.Logger
	now           func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob storage backend
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.blobStoreName = name
		s.blobStore = store
	}
}

// WithClassifier sets the classifier used during upload
func WithClassifier(classifier Classifier) Option {
	return func(s *service) {
		s.classifier = classifier
	}
}

// WithPredictor sets the backend used for raw prediction lookups
func WithPredictor(predictor Predictor) Option {
	return func(s *service) {
		s.predictor = predictor
	}
}

// WithKeyGenerator sets the stored-name generator
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *service) {
		s.keyGenerator = gen
	}
}

// WithPublicBaseURL fixes the scheme and host used in file URLs instead of
// deriving them from each request
func WithPublicBaseURL(baseURL string) Option {
	return func(s *service) {
		s.publicBaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the service logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		keyGenerator: objectkey.NewTimestampGenerator(),
		now:          time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.blobStoreName == "" {
		s.blobStoreName = "default"
	}

	return s, nil
}

// Upload workflow

func (s *service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.Reader == nil {
		return nil, &ValidationError{Field: "file", Reason: "no file provided"}
	}
	if strings.TrimSpace(req.OriginalName) == "" {
		return nil, &ValidationError{Field: "originalName", Reason: "is required"}
	}
	mimeType := NormalizeMimeType(req.MimeType)
	if !IsAllowedMimeType(mimeType) {
		return nil, &ValidationError{Field: "mimetype", Reason: fmt.Sprintf("%q is not an accepted image type", req.MimeType)}
	}

	key := s.keyGenerator.GenerateKey(req.OriginalName)
	counter := &countingReader{r: req.Reader}
	if err := s.blobStore.Upload(ctx, key, counter, mimeType); err != nil {
		return nil, &StorageError{Backend: s.blobStoreName, Key: key, Op: "upload", Err: err}
	}
	if counter.n == 0 {
		s.deleteBlob(ctx, key)
		return nil, &ValidationError{Field: "file", Reason: "is empty"}
	}

	fileURL, err := s.resolveURL(ctx, key, req.BaseURL)
	if err != nil {
		s.deleteBlob(ctx, key)
		return nil, err
	}

	// A failure past this point leaves the stored blob without a record.
	file, err := s.CreateFile(ctx, CreateFileRequest{
		FileName:     key,
		URL:          fileURL,
		OriginalName: req.OriginalName,
		Size:         counter.n,
		MimeType:     mimeType,
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "file stored", "file_id", file.ID, "filename", key, "size", file.Size)

	result, err := s.analyze(ctx, file)
	if err != nil {
		s.logger.WarnContext(ctx, "analysis unavailable, returning original image",
			"file_id", file.ID, "error", err)
		return s.originalImage(ctx, file)
	}
	return result, nil
}

// analyze runs the classifier and merges any classification into the record.
// Every error it returns is absorbed by Upload.
func (s *service) analyze(ctx context.Context, file *FileRecord) (*UploadResult, error) {
	if s.classifier == nil {
		analysisTotal.WithLabelValues("none", OutcomeUnconfigured).Inc()
		return nil, ErrClassifierNotConfigured
	}
	backend := s.classifier.Name()

	start := time.Now()
	analysis, err := s.classifier.Analyze(ctx, file.URL)
	analysisDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, ErrClassifierNotConfigured) {
			analysisTotal.WithLabelValues(backend, OutcomeUnconfigured).Inc()
		} else {
			analysisTotal.WithLabelValues(backend, OutcomeFallback).Inc()
		}
		return nil, err
	}

	contentType := analysis.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	result := &UploadResult{
		File:        file,
		Image:       analysis.Image,
		ContentType: contentType,
		FileName:    AnnotatedPrefix + file.FileName,
	}

	if !HasClassification(analysis.Classification) {
		analysisTotal.WithLabelValues(backend, OutcomeAnnotated).Inc()
		return result, nil
	}

	updated, err := s.repository.UpdateClassification(ctx, file.ID, analysis.Classification)
	if err != nil {
		analysisTotal.WithLabelValues(backend, OutcomeFallback).Inc()
		return nil, &FileError{FileID: file.ID, Op: "update classification", Err: err}
	}
	analysisTotal.WithLabelValues(backend, OutcomeAnalyzed).Inc()
	s.logger.InfoContext(ctx, "classification stored", "file_id", file.ID, "backend", backend)

	result.File = updated
	result.Analyzed = true
	return result, nil
}

func (s *service) originalImage(ctx context.Context, file *FileRecord) (*UploadResult, error) {
	data, err := s.readBlob(ctx, file.FileName)
	if err != nil {
		return nil, err
	}
	return &UploadResult{
		File:        file,
		Image:       data,
		ContentType: file.MimeType,
		FileName:    file.FileName,
		Fallback:    true,
	}, nil
}

func (s *service) resolveURL(ctx context.Context, key, requestBaseURL string) (string, error) {
	if resolver, ok := s.blobStore.(URLResolver); ok {
		u, err := resolver.PublicURL(ctx, key)
		if err != nil {
			return "", &StorageError{Backend: s.blobStoreName, Key: key, Op: "public url", Err: err}
		}
		return u, nil
	}

	base := s.publicBaseURL
	if base == "" {
		base = strings.TrimRight(requestBaseURL, "/")
	}
	if base == "" {
		return "", &ValidationError{Field: "url", Reason: "no base URL to build the file URL from"}
	}
	return base + UploadsPath + url.PathEscape(key), nil
}

// File record operations

func (s *service) CreateFile(ctx context.Context, req CreateFileRequest) (*FileRecord, error) {
	if err := validateCreateFile(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	file := &FileRecord{
		ID:           uuid.New(),
		FileName:     req.FileName,
		OriginalName: req.OriginalName,
		URL:          req.URL,
		Size:         req.Size,
		MimeType:     NormalizeMimeType(req.MimeType),
		UploadedAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repository.Create(ctx, file); err != nil {
		return nil, &FileError{FileID: file.ID, Op: "create", Err: err}
	}
	return file, nil
}

func validateCreateFile(req CreateFileRequest) error {
	if req.FileName == "" {
		return &ValidationError{Field: "filename", Reason: "is required"}
	}
	if strings.ContainsAny(req.FileName, `/\`) {
		return &ValidationError{Field: "filename", Reason: "must not contain path separators"}
	}
	if req.OriginalName == "" {
		return &ValidationError{Field: "originalName", Reason: "is required"}
	}
	if req.Size <= 0 {
		return &ValidationError{Field: "size", Reason: "must be positive"}
	}
	if !IsAllowedMimeType(NormalizeMimeType(req.MimeType)) {
		return &ValidationError{Field: "mimetype", Reason: fmt.Sprintf("%q is not an accepted image type", req.MimeType)}
	}
	u, err := url.Parse(req.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "url", Reason: "must be an absolute URL"}
	}
	return nil
}

func (s *service) GetFile(ctx context.Context, id uuid.UUID) (*FileRecord, error) {
	file, err := s.repository.Get(ctx, id)
	if err != nil {
		return nil, &FileError{FileID: id, Op: "get", Err: err}
	}
	return file, nil
}

func (s *service) ListFiles(ctx context.Context, req ListFilesRequest) (*FilePage, error) {
	if req.Limit < 0 {
		return nil, &ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	if req.Offset < 0 {
		return nil, &ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}

	files, total, err := s.repository.List(ctx, limit, req.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	if files == nil {
		files = []*FileRecord{}
	}
	return &FilePage{Files: files, Total: total, Limit: limit, Offset: req.Offset}, nil
}

func (s *service) DeleteFile(ctx context.Context, id uuid.UUID) error {
	file, err := s.repository.Get(ctx, id)
	if err != nil {
		return &FileError{FileID: id, Op: "delete", Err: err}
	}

	s.deleteBlob(ctx, file.FileName)

	if err := s.repository.Delete(ctx, id); err != nil {
		return &FileError{FileID: id, Op: "delete", Err: err}
	}
	s.logger.InfoContext(ctx, "file deleted", "file_id", id, "filename", file.FileName)
	return nil
}

// Classification operations

func (s *service) UpdateClassification(ctx context.Context, id uuid.UUID, classification json.RawMessage) (*FileRecord, error) {
	if !HasClassification(classification) {
		return nil, &ValidationError{Field: "classification", Reason: "is required"}
	}
	if !json.Valid(classification) {
		return nil, &ValidationError{Field: "classification", Reason: "is not valid JSON"}
	}
	file, err := s.repository.UpdateClassification(ctx, id, classification)
	if err != nil {
		return nil, &FileError{FileID: id, Op: "update classification", Err: err}
	}
	return file, nil
}

func (s *service) GetClassification(ctx context.Context, id uuid.UUID) (json.RawMessage, error) {
	file, err := s.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if !file.IsAnalyzed || !HasClassification(file.Classification) {
		return nil, &FileError{FileID: id, Op: "get classification", Err: ErrNotAnalyzed}
	}
	return file.Classification, nil
}

func (s *service) GetPredictions(ctx context.Context, id uuid.UUID) (*PredictionResult, error) {
	file, err := s.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.predictor == nil {
		return nil, &FileError{FileID: id, Op: "predict", Err: ErrClassifierNotConfigured}
	}
	predictions, err := s.predictor.Predict(ctx, file.URL)
	if err != nil {
		return nil, &FileError{FileID: id, Op: "predict", Err: err}
	}
	return predictions, nil
}

// Blob access

func (s *service) OpenBlob(ctx context.Context, name string) (io.ReadCloser, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, &ValidationError{Field: "name", Reason: "invalid stored file name"}
	}
	rc, err := s.blobStore.Download(ctx, name)
	if err != nil {
		return nil, &StorageError{Backend: s.blobStoreName, Key: name, Op: "download", Err: err}
	}
	return rc, nil
}

func (s *service) readBlob(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.blobStore.Download(ctx, key)
	if err != nil {
		return nil, &StorageError{Backend: s.blobStoreName, Key: key, Op: "download", Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &StorageError{Backend: s.blobStoreName, Key: key, Op: "read", Err: err}
	}
	return data, nil
}

// deleteBlob removes a blob and only logs failures.
func (s *service) deleteBlob(ctx context.Context, key string) {
	if err := s.blobStore.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to delete blob", "filename", key, "backend", s.blobStoreName, "error", err)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
