package objectkey

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator defines the interface for stored-name generation strategies.
// Keys are flat (no path separators) so they can be served from a single
// /uploads/{name} route.
type Generator interface {
	// GenerateKey creates a stored name for a file uploaded as originalName
	GenerateKey(originalName string) string
}

// TimestampGenerator produces names of the form file-<unix-ms>-<random><ext>.
type TimestampGenerator struct {
	Prefix string
	Now    func() time.Time
	Rand   func() int64
}

func NewTimestampGenerator() *TimestampGenerator {
	return &TimestampGenerator{
		Prefix: "file",
		Now:    time.Now,
		Rand:   func() int64 { return rand.Int63n(1e9) },
	}
}

func (g *TimestampGenerator) GenerateKey(originalName string) string {
	return fmt.Sprintf("%s-%d-%d%s", g.Prefix, g.Now().UnixMilli(), g.Rand(), Ext(originalName))
}

// UUIDGenerator names files by a random UUID, keeping the extension.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) GenerateKey(originalName string) string {
	return uuid.NewString() + Ext(originalName)
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(originalName string) string
}

func NewCustomFuncGenerator(fn func(originalName string) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(originalName string) string {
	return g.GenerateFunc(originalName)
}

// Ext returns the sanitized, lower-cased extension of name, or "" if it has none.
func Ext(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "." {
		return ""
	}
	return sanitizeFilename(ext)
}

func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}
