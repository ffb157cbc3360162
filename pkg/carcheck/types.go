package carcheck

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FileRecord is the metadata kept for every uploaded image.
//
// IsAnalyzed is true only once a classification has been stored, so a record
// with IsAnalyzed set always carries a non-empty Classification.
type FileRecord struct {
	ID             uuid.UUID       `json:"id"`
	FileName       string          `json:"filename"`
	OriginalName   string          `json:"originalName"`
	URL            string          `json:"url"`
	Size           int64           `json:"size"`
	MimeType       string          `json:"mimetype"`
	UploadedAt     time.Time       `json:"uploadedAt"`
	IsAnalyzed     bool            `json:"isAnalyzed"`
	Classification json.RawMessage `json:"classification,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy of the record.
func (f *FileRecord) Clone() *FileRecord {
	if f == nil {
		return nil
	}
	c := *f
	c.Classification = CloneClassification(f.Classification)
	return &c
}

// CloneClassification copies a raw classification payload.
func CloneClassification(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

// HasClassification reports whether raw holds an actual payload. A literal
// JSON null counts as absent.
func HasClassification(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	return string(raw) != "null"
}

// AnalysisResult is what a Classifier returns for one image.
type AnalysisResult struct {
	Image          []byte
	ContentType    string
	Classification json.RawMessage
}

// PredictionResult is the detection output of the hosted classifier in JSON mode.
type PredictionResult struct {
	Predictions []Prediction `json:"predictions"`
	Image       ImageInfo    `json:"image"`
}

// Prediction is a single detected defect.
type Prediction struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Confidence  float64 `json:"confidence"`
	Class       string  `json:"class"`
	ClassID     int     `json:"class_id"`
	DetectionID string  `json:"detection_id,omitempty"`
}

// ImageInfo describes the image the predictions refer to.
type ImageInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// UploadResult is the outcome of Service.Upload. Image holds the annotated
// bytes when Analyzed is true or the classifier answered without a
// classification, and the original bytes after a classifier failure.
type UploadResult struct {
	File        *FileRecord
	Image       []byte
	ContentType string
	FileName    string
	Analyzed    bool
	Fallback    bool
}

// FilePage is one page of file records, newest first.
type FilePage struct {
	Files  []*FileRecord
	Total  int64
	Limit  int
	Offset int
}

// Accepted image types.
var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// IsAllowedMimeType reports whether mimeType is an accepted image type.
func IsAllowedMimeType(mimeType string) bool {
	return allowedMimeTypes[mimeType]
}

// IsAllowedExtension reports whether ext (with leading dot, any case) is accepted.
func IsAllowedExtension(ext string) bool {
	return allowedExtensions[normalizeExt(ext)]
}
