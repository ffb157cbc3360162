package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
)

const (
	// DefaultMaxFileSize is the largest accepted upload.
	DefaultMaxFileSize = 5 << 20

	// FileField is the multipart field carrying the image.
	FileField = "file"

	defaultPage  = 1
	defaultLimit = carcheck.DefaultListLimit
	maxLimit     = 100

	// room for multipart boundaries and part headers on top of the file itself
	multipartOverhead = 1 << 20
)

// FilesHandler serves the upload and file metadata endpoints.
type FilesHandler struct {
	service     carcheck.Service
	maxFileSize int64
	logger      *slog.Logger
}

// HandlerOption configures a FilesHandler
type HandlerOption func(*FilesHandler)

// WithMaxFileSize sets the upload size limit in bytes
func WithMaxFileSize(n int64) HandlerOption {
	return func(h *FilesHandler) {
		if n > 0 {
			h.maxFileSize = n
		}
	}
}

// WithHandlerLogger sets the logger used for request failures
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *FilesHandler) {
		h.logger = logger
	}
}

func NewFilesHandler(service carcheck.Service, opts ...HandlerOption) *FilesHandler {
	h := &FilesHandler{
		service:     service,
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for the upload and files endpoints
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/uploads", h.Upload)
	r.Get("/files", h.ListFiles)
	r.Get("/files/{id}", h.GetFile)
	r.Delete("/files/{id}", h.DeleteFile)
	r.Get("/files/{id}/analysis", h.GetAnalysis)
	r.Get("/files/{id}/classification", h.GetClassification)
	return r
}

// Upload accepts one image, stores it, runs the classifier and answers with
// the annotated image, or the original one when analysis was not possible.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, r, http.StatusBadRequest, h.tooLargeMessage(), nil)
			return
		}
		h.logger.Warn("Failed to parse upload", "error", err)
		Error(w, r, http.StatusBadRequest, "No file uploaded", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	fh, errMsg := singleFile(r.MultipartForm)
	if errMsg != "" {
		Error(w, r, http.StatusBadRequest, errMsg, nil)
		return
	}
	if fh.Size > h.maxFileSize {
		Error(w, r, http.StatusBadRequest, h.tooLargeMessage(), nil)
		return
	}

	file, err := fh.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", "filename", fh.Filename, "error", err)
		Error(w, r, http.StatusInternalServerError, "Image analysis failed", err.Error())
		return
	}
	defer file.Close()

	mimeType, err := detectMimeType(fh, file)
	if err != nil {
		h.logger.Error("Failed to read uploaded file", "filename", fh.Filename, "error", err)
		Error(w, r, http.StatusInternalServerError, "Image analysis failed", err.Error())
		return
	}
	if !carcheck.IsAllowedMimeType(mimeType) || !carcheck.IsAllowedExtension(carcheck.FileExt(fh.Filename)) {
		Error(w, r, http.StatusBadRequest, "Unsupported file type. Allowed: JPEG, JPG, PNG, WEBP", nil)
		return
	}

	result, err := h.service.Upload(r.Context(), carcheck.UploadRequest{
		Reader:       file,
		OriginalName: fh.Filename,
		MimeType:     mimeType,
		BaseURL:      requestBaseURL(r),
	})
	if err != nil {
		var verr *carcheck.ValidationError
		if errors.As(err, &verr) {
			Error(w, r, http.StatusBadRequest, "Validation failed", verr.Error())
			return
		}
		// storage and database failures, including a missing blob on fallback
		h.logger.Error("Upload failed", "filename", fh.Filename, "error", err)
		Error(w, r, http.StatusInternalServerError, "Image analysis failed", err.Error())
		return
	}

	h.logger.Info("Upload processed",
		"file_id", result.File.ID,
		"analyzed", result.Analyzed,
		"fallback", result.Fallback)
	Image(w, r, result.Image, result.ContentType, result.FileName)
}

// ListFiles returns one page of file records, newest first.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", defaultPage)
	if err != nil || page < 1 {
		Error(w, r, http.StatusBadRequest, "Invalid page parameter", "page must be a positive integer")
		return
	}
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil || limit < 1 || limit > maxLimit {
		Error(w, r, http.StatusBadRequest, "Invalid limit parameter", fmt.Sprintf("limit must be between 1 and %d", maxLimit))
		return
	}

	result, err := h.service.ListFiles(r.Context(), carcheck.ListFilesRequest{
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to list files")
		return
	}

	Paginated(w, r, "Files retrieved", result.Files, page, limit, result.Total)
}

func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	file, err := h.service.GetFile(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get file")
		return
	}
	Success(w, r, http.StatusOK, "File found", file)
}

func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteFile(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err, "Failed to delete file")
		return
	}
	h.logger.Info("File deleted", "file_id", id)
	Success(w, r, http.StatusOK, "File deleted", nil)
}

// GetAnalysis re-runs detection on a stored image and returns the raw predictions.
func (h *FilesHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	predictions, err := h.service.GetPredictions(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get analysis results")
		return
	}
	Success(w, r, http.StatusOK, "Analysis results retrieved", predictions)
}

func (h *FilesHandler) GetClassification(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	classification, err := h.service.GetClassification(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get classification")
		return
	}
	Success(w, r, http.StatusOK, "Classification retrieved", classification)
}

func (h *FilesHandler) tooLargeMessage() string {
	if h.maxFileSize < 1<<20 {
		return fmt.Sprintf("File too large. Maximum size: %d bytes", h.maxFileSize)
	}
	return fmt.Sprintf("File too large. Maximum size: %dMB", h.maxFileSize>>20)
}

// writeServiceError maps service errors onto status codes. fallback is the
// message used for anything that is not a client error.
func (h *FilesHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *carcheck.ValidationError
	switch {
	case errors.As(err, &verr):
		Error(w, r, http.StatusBadRequest, "Validation failed", verr.Error())
	case errors.Is(err, carcheck.ErrNotAnalyzed):
		Error(w, r, http.StatusNotFound, "Classification data not found", "file has not been analyzed")
	case errors.Is(err, carcheck.ErrFileNotFound), errors.Is(err, carcheck.ErrBlobNotFound):
		Error(w, r, http.StatusNotFound, "File not found", err.Error())
	default:
		h.logger.Error(fallback, "method", r.Method, "path", r.URL.Path, "error", err)
		Error(w, r, http.StatusInternalServerError, fallback, err.Error())
	}
}

// singleFile returns the one uploaded image, or a client-facing reason why
// the form is not acceptable.
func singleFile(form *multipart.Form) (*multipart.FileHeader, string) {
	for field := range form.File {
		if field != FileField {
			return nil, "Unexpected file field"
		}
	}
	files := form.File[FileField]
	switch {
	case len(files) == 0:
		return nil, "No file uploaded"
	case len(files) > 1:
		return nil, "Too many files. Maximum: 1 file"
	}
	return files[0], ""
}

// detectMimeType trusts the declared part type unless it is missing or
// generic, in which case the content is sniffed.
func detectMimeType(fh *multipart.FileHeader, file multipart.File) (string, error) {
	declared := carcheck.NormalizeMimeType(fh.Header.Get("Content-Type"))
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return carcheck.NormalizeMimeType(mtype.String()), nil
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		Error(w, r, http.StatusBadRequest, "Invalid ID format", idStr)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// requestBaseURL is the scheme and host the client used, honouring a
// reverse proxy's forwarded headers.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = proto
	}

	host := r.Host
	if fwd := firstHeaderValue(r.Header.Get("X-Forwarded-Host")); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host
}

func firstHeaderValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
