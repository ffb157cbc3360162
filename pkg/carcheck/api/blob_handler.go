package api

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
)

// sniffLen is how much of a blob is inspected to pick its Content-Type.
const sniffLen = 3072

// BlobHandler serves stored images under /uploads/{name} so that the
// classifier can fetch them back by URL.
type BlobHandler struct {
	service carcheck.Service
	logger  *slog.Logger
}

func NewBlobHandler(service carcheck.Service, logger *slog.Logger) *BlobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BlobHandler{service: service, logger: logger}
}

// Routes returns the router for stored blobs
func (h *BlobHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{name}", h.ServeBlob)
	return r
}

func (h *BlobHandler) ServeBlob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	rc, err := h.service.OpenBlob(r.Context(), name)
	if err != nil {
		var verr *carcheck.ValidationError
		switch {
		case errors.As(err, &verr), errors.Is(err, carcheck.ErrBlobNotFound):
			http.NotFound(w, r)
		default:
			h.logger.Error("Failed to open blob", "name", name, "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		h.logger.Error("Failed to read blob", "name", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", mimetype.Detect(head).String())
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := io.Copy(w, br); err != nil {
		h.logger.Warn("Failed to stream blob", "name", name, "error", err)
	}
}
