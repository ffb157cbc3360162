package objectkey

import (
	"strings"
	"testing"
	"time"
)

func TestTimestampGenerator(t *testing.T) {
	gen := NewTimestampGenerator()
	gen.Now = func() time.Time { return time.UnixMilli(1700000000123) }
	gen.Rand = func() int64 { return 42 }

	tests := []struct {
		name     string
		original string
		expected string
	}{
		{"jpeg", "car.jpg", "file-1700000000123-42.jpg"},
		{"upper case extension", "CAR.PNG", "file-1700000000123-42.png"},
		{"no extension", "car", "file-1700000000123-42"},
		{"dotted name", "my.car.photo.webp", "file-1700000000123-42.webp"},
		{"trailing dot", "car.", "file-1700000000123-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := gen.GenerateKey(tt.original)
			if result != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestTimestampGenerator_DefaultsAreFlat(t *testing.T) {
	gen := NewTimestampGenerator()
	key := gen.GenerateKey("some/dir/car.jpeg")
	if !strings.HasPrefix(key, "file-") || !strings.HasSuffix(key, ".jpeg") {
		t.Errorf("unexpected key %s", key)
	}
	if strings.Contains(key, "/") {
		t.Errorf("key must not contain path separators: %s", key)
	}
}

func TestUUIDGenerator(t *testing.T) {
	gen := NewUUIDGenerator()
	a := gen.GenerateKey("a.png")
	b := gen.GenerateKey("a.png")
	if a == b {
		t.Errorf("expected unique keys, got %s twice", a)
	}
	if !strings.HasSuffix(a, ".png") || len(a) != 36+len(".png") {
		t.Errorf("unexpected key %s", a)
	}
}

func TestCustomFuncGenerator(t *testing.T) {
	gen := NewCustomFuncGenerator(func(name string) string { return "fixed" + Ext(name) })
	if got := gen.GenerateKey("x.JPG"); got != "fixed.jpg" {
		t.Errorf("expected fixed.jpg, got %s", got)
	}
}
