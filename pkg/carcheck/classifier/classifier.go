// Package classifier holds what the classifier backends share: timeouts and
// the mapping from HTTP failures to carcheck.ClassifierError kinds.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
)

// DefaultTimeout bounds a whole classifier call.
const DefaultTimeout = 30 * time.Second

// MaxResponseSize caps how much of a classifier response is read.
const MaxResponseSize = 32 << 20

// NewHTTPClient returns a client with the given timeout, or DefaultTimeout when zero.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NotConfigured reports a backend that is missing credentials or an endpoint.
func NotConfigured(backend, reason string) error {
	return &carcheck.ClassifierError{
		Backend: backend,
		Op:      "configure",
		Kind:    carcheck.ErrClassifierNotConfigured,
		Err:     errors.New(reason),
	}
}

// TransportError classifies a failed round trip as a timeout or a connection error.
func TransportError(backend, op string, err error) error {
	kind := carcheck.ErrClassifierUnavailable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = carcheck.ErrClassifierTimeout
	}
	return &carcheck.ClassifierError{Backend: backend, Op: op, Kind: kind, Err: err}
}

// StatusError reports a non-2xx answer, keeping a short excerpt of the body.
func StatusError(backend, op string, resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := resp.Status
	if s := strings.TrimSpace(string(excerpt)); s != "" {
		msg += ": " + s
	}
	return &carcheck.ClassifierError{
		Backend:    backend,
		Op:         op,
		Kind:       carcheck.ErrClassifierRemote,
		StatusCode: resp.StatusCode,
		Err:        errors.New(msg),
	}
}

// InvalidResponse reports a 2xx answer whose body could not be used.
func InvalidResponse(backend, op string, err error) error {
	return &carcheck.ClassifierError{
		Backend: backend,
		Op:      op,
		Kind:    carcheck.ErrClassifierRemote,
		Err:     fmt.Errorf("invalid response: %w", err),
	}
}

// ReadBody checks the status and reads the body of resp.
func ReadBody(backend, op string, resp *http.Response) ([]byte, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, StatusError(backend, op, resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, TransportError(backend, op, err)
	}
	return body, nil
}
