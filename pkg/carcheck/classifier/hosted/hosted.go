// Package hosted talks to a hosted object-detection API that fetches the
// image itself from a public URL.
package hosted

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
	"github.com/madeyra2980/backend-form/pkg/carcheck/classifier"
)

// Backend name used in errors, logs and metrics.
const Backend = "hosted"

const (
	DefaultBaseURL   = "https://detect.roboflow.com"
	DefaultProjectID = "rust-and-scrach-cbhdg"
	DefaultVersion   = "1"
)

// Config for the hosted detection API
type Config struct {
	BaseURL   string
	APIKey    string
	ProjectID string
	Version   string
	Timeout   time.Duration
}

// Client implements carcheck.Classifier and carcheck.Predictor
type Client struct {
	httpClient *http.Client
	config     Config
}

// Option is a functional option for configuring a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// New creates a hosted API client. A missing API key is not an error here;
// every call fails with carcheck.ErrClassifierNotConfigured instead.
func New(config Config, opts ...Option) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.ProjectID == "" {
		config.ProjectID = DefaultProjectID
	}
	if config.Version == "" {
		config.Version = DefaultVersion
	}

	c := &Client{
		httpClient: classifier.NewHTTPClient(config.Timeout),
		config:     config,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return Backend
}

// Analyze asks the API to draw its detections onto the image.
func (c *Client) Analyze(ctx context.Context, imageURL string) (*carcheck.AnalysisResult, error) {
	resp, err := c.detect(ctx, "analyze", imageURL, "image")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := classifier.ReadBody(Backend, "analyze", resp)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &carcheck.AnalysisResult{Image: body, ContentType: contentType}, nil
}

// Predict returns the raw detections for the image.
func (c *Client) Predict(ctx context.Context, imageURL string) (*carcheck.PredictionResult, error) {
	resp, err := c.detect(ctx, "predict", imageURL, "json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := classifier.ReadBody(Backend, "predict", resp)
	if err != nil {
		return nil, err
	}

	var result carcheck.PredictionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, classifier.InvalidResponse(Backend, "predict", err)
	}
	if result.Predictions == nil {
		result.Predictions = []carcheck.Prediction{}
	}
	return &result, nil
}

func (c *Client) detect(ctx context.Context, op, imageURL, format string) (*http.Response, error) {
	if c.config.APIKey == "" {
		return nil, classifier.NotConfigured(Backend, "API key is not set")
	}

	endpoint, err := c.endpoint(imageURL, format)
	if err != nil {
		return nil, classifier.NotConfigured(Backend, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, classifier.NotConfigured(Backend, err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifier.TransportError(Backend, op, redactKey(err))
	}
	return resp, nil
}

func (c *Client) endpoint(imageURL, format string) (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("base URL must be absolute")
	}
	u.Path = path.Join("/", u.Path, c.config.ProjectID, c.config.Version)

	q := u.Query()
	q.Set("api_key", c.config.APIKey)
	q.Set("image", imageURL)
	q.Set("format", format)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redactKey strips the API key from the URL that net/http puts in its errors.
func redactKey(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	u, perr := url.Parse(urlErr.URL)
	if perr != nil {
		urlErr.URL = "[redacted]"
		return err
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	urlErr.URL = u.String()
	return err
}
