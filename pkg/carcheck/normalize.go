package carcheck

import (
	"path/filepath"
	"strings"
)

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// NormalizeMimeType lowercases a MIME type and strips parameters such as charset.
func NormalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// FileExt returns the lower-cased extension of a client file name.
func FileExt(name string) string {
	return normalizeExt(filepath.Ext(name))
}
