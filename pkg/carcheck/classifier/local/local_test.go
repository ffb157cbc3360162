package local

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
)

// newServers starts an image host and a detection service. detect handles
// POST /detect on the AI service.
func newServers(t *testing.T, detect http.HandlerFunc) (imageURL string, aiURL string) {
	t.Helper()

	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("original"))
	}))
	t.Cleanup(images.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /detect", detect)
	ai := httptest.NewServer(mux)
	t.Cleanup(ai.Close)

	return images.URL + "/uploads/file-1.jpg", ai.URL
}

func TestClient_Analyze_WithDetectionHeader(t *testing.T) {
	imageURL, aiURL := newServers(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "original", string(data))
		assert.Equal(t, "image.jpg", header.Filename)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set(DetectionHeader, `{"overallScore":0.82,"damages":[]}`)
		_, _ = w.Write([]byte("annotated"))
	})

	client := New(Config{BaseURL: aiURL})
	result, err := client.Analyze(context.Background(), imageURL)
	require.NoError(t, err)

	assert.Equal(t, []byte("annotated"), result.Image)
	assert.Equal(t, "image/png", result.ContentType)
	assert.JSONEq(t, `{"overallScore":0.82,"damages":[]}`, string(result.Classification))
}

func TestClient_Analyze_WithoutDetectionHeader(t *testing.T) {
	imageURL, aiURL := newServers(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("annotated"))
	})

	client := New(Config{BaseURL: aiURL})
	result, err := client.Analyze(context.Background(), imageURL)
	require.NoError(t, err)

	assert.Nil(t, result.Classification)
	assert.Equal(t, "image/jpeg", result.ContentType)
}

func TestClient_Analyze_NonImageContentType(t *testing.T) {
	imageURL, aiURL := newServers(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("annotated"))
	})

	client := New(Config{BaseURL: aiURL})
	result, err := client.Analyze(context.Background(), imageURL)
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", result.ContentType)
}

func TestAnnotatedType(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{header: "", want: "image/jpeg"},
		{header: "image/png", want: "image/png"},
		{header: "IMAGE/WEBP; q=1", want: "image/webp"},
		{header: "application/octet-stream", want: "image/jpeg"},
		{header: "text/plain; charset=utf-8", want: "image/jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, annotatedType(tt.header))
		})
	}
}

func TestClient_Analyze_MalformedDetectionHeader(t *testing.T) {
	imageURL, aiURL := newServers(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(DetectionHeader, `{not json`)
		_, _ = w.Write([]byte("annotated"))
	})

	client := New(Config{BaseURL: aiURL})
	result, err := client.Analyze(context.Background(), imageURL)
	require.NoError(t, err)

	assert.Equal(t, []byte("annotated"), result.Image)
	assert.Nil(t, result.Classification)
}

func TestClient_Analyze_ServiceError(t *testing.T) {
	imageURL, aiURL := newServers(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	client := New(Config{BaseURL: aiURL})
	_, err := client.Analyze(context.Background(), imageURL)

	require.Error(t, err)
	assert.ErrorIs(t, err, carcheck.ErrClassifierRemote)
}

func TestClient_Analyze_ImageFetchFails(t *testing.T) {
	called := false
	_, aiURL := newServers(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()

	client := New(Config{BaseURL: aiURL})
	_, err := client.Analyze(context.Background(), missing.URL+"/uploads/gone.jpg")

	require.Error(t, err)
	assert.ErrorIs(t, err, carcheck.ErrClassifierRemote)
	assert.Contains(t, err.Error(), "fetch image")
	assert.False(t, called)
}

func TestClient_Analyze_ServiceDown(t *testing.T) {
	imageURL, _ := newServers(t, func(w http.ResponseWriter, r *http.Request) {})

	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	client := New(Config{BaseURL: downURL})
	_, err := client.Analyze(context.Background(), imageURL)

	require.Error(t, err)
	assert.ErrorIs(t, err, carcheck.ErrClassifierUnavailable)
}

func TestParseDetectionHeader(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "empty", value: "", want: ""},
		{name: "null", value: "null", want: ""},
		{name: "malformed", value: "{", want: ""},
		{name: "object", value: `{"a":1}`, want: `{"a":1}`},
		{name: "array", value: `[1,2]`, want: `[1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDetectionHeader(tt.value, nil)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestNew_DefaultBaseURL(t *testing.T) {
	client := New(Config{})
	assert.Equal(t, DefaultBaseURL, client.config.BaseURL)

	u, err := client.detectURL()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/detect", u)
}
