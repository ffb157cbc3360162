// Package local talks to a self-hosted AI service. The service cannot fetch
// URLs, so the image is downloaded here and re-uploaded as multipart. The
// annotated image comes back in the body and the classification in the
// X-Detection-Data response header.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
	"github.com/madeyra2980/backend-form/pkg/carcheck/classifier"
)

// Backend name used in errors, logs and metrics.
const Backend = "local"

const (
	DefaultBaseURL = "http://localhost:8000"

	// DetectionHeader carries the classification JSON.
	DetectionHeader = "X-Detection-Data"
)

// Config for the local AI service
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements carcheck.Classifier
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
}

// Option is a functional option for configuring a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger used for malformed detection headers
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(config Config, opts ...Option) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	c := &Client{
		httpClient: classifier.NewHTTPClient(config.Timeout),
		config:     config,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return Backend
}

func (c *Client) Analyze(ctx context.Context, imageURL string) (*carcheck.AnalysisResult, error) {
	detectURL, err := c.detectURL()
	if err != nil {
		return nil, classifier.NotConfigured(Backend, err.Error())
	}

	image, err := c.fetchImage(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	body, contentType, err := multipartBody(image)
	if err != nil {
		return nil, classifier.InvalidResponse(Backend, "encode", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, detectURL, body)
	if err != nil {
		return nil, classifier.NotConfigured(Backend, err.Error())
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifier.TransportError(Backend, "detect", err)
	}
	defer resp.Body.Close()

	annotated, err := classifier.ReadBody(Backend, "detect", resp)
	if err != nil {
		return nil, err
	}

	return &carcheck.AnalysisResult{
		Image:          annotated,
		ContentType:    annotatedType(resp.Header.Get("Content-Type")),
		Classification: ParseDetectionHeader(resp.Header.Get(DetectionHeader), c.logger),
	}, nil
}

// annotatedType keeps the service's content type only when it names an
// image; anything else is reported as JPEG, which is what the service renders.
func annotatedType(header string) string {
	if mt := carcheck.NormalizeMimeType(header); strings.HasPrefix(mt, "image/") {
		return mt
	}
	return "image/jpeg"
}

func (c *Client) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, &carcheck.ClassifierError{Backend: Backend, Op: "fetch image", Kind: carcheck.ErrClassifierUnavailable, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifier.TransportError(Backend, "fetch image", err)
	}
	defer resp.Body.Close()

	return classifier.ReadBody(Backend, "fetch image", resp)
}

func (c *Client) detectURL() (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base URL %q must be absolute", c.config.BaseURL)
	}
	u.Path = path.Join("/", u.Path, "detect")
	return u.String(), nil
}

func multipartBody(image []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// ParseDetectionHeader decodes the classification header. A missing, null
// or malformed value yields nil; malformed values are logged.
func ParseDetectionHeader(value string, logger *slog.Logger) json.RawMessage {
	if value == "" {
		return nil
	}
	raw := json.RawMessage(value)
	if !json.Valid(raw) {
		if logger != nil {
			logger.Warn("could not parse detection header", "header", DetectionHeader, "length", len(value))
		}
		return nil
	}
	if !carcheck.HasClassification(raw) {
		return nil
	}
	return raw
}
