package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
)

// SuccessEnvelope is the JSON body of a successful non-image response.
// Data is always present, null when there is nothing to return.
type SuccessEnvelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// ErrorEnvelope is the JSON body of every error response.
type ErrorEnvelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Details   any       `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
	HasNext      bool  `json:"hasNext"`
	HasPrev      bool  `json:"hasPrev"`
}

// NewPagination computes page metadata. A non-positive limit yields zero pages.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 && total > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   total,
		ItemsPerPage: limit,
		HasNext:      page < totalPages,
		HasPrev:      page > 1,
	}
}

// Success writes {success:true, message, data, timestamp}.
func Success(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	render.Status(r, status)
	render.JSON(w, r, SuccessEnvelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// Error writes {success:false, message, details, timestamp}.
func Error(w http.ResponseWriter, r *http.Request, status int, message string, details any) {
	render.Status(r, status)
	render.JSON(w, r, ErrorEnvelope{
		Success:   false,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	})
}

// Paginated writes a success envelope with pagination metadata.
func Paginated(w http.ResponseWriter, r *http.Request, message string, data any, page, limit int, total int64) {
	p := NewPagination(page, limit, total)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessEnvelope{
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: &p,
		Timestamp:  time.Now().UTC(),
	})
}

// Image writes raw image bytes for inline display.
func Image(w http.ResponseWriter, r *http.Request, data []byte, contentType, filename string) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	if filename == "" {
		filename = "result.jpg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
