package carcheck

import "io"

// Request/Response DTOs

// UploadRequest contains an inbound image and what the client said about it.
// BaseURL is the scheme and host the request arrived on; it is used to build
// the public URL when the blob store cannot resolve one itself.
type UploadRequest struct {
	Reader       io.Reader
	OriginalName string
	MimeType     string
	BaseURL      string
}

// CreateFileRequest contains parameters for creating a file record
type CreateFileRequest struct {
	FileName     string
	URL          string
	OriginalName string
	Size         int64
	MimeType     string
}

// ListFilesRequest contains parameters for listing file records.
// A zero Limit selects DefaultListLimit.
type ListFilesRequest struct {
	Limit  int
	Offset int
}

// DefaultListLimit is the page size used when none is given.
const DefaultListLimit = 10
