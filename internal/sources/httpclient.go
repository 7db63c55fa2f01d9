package sources

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"hids-dashboard-go/internal/metrics"
	"hids-dashboard-go/internal/models"
)

const maxResponseBody = 10 << 20

// StatusError is returned when an upstream answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// IsNotFound reports whether err carries an upstream 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// NewHTTPClient returns a traced client. Certificate verification is skipped
// when insecure is set, since Wazuh and OpenSearch ship self-signed certs.
func NewHTTPClient(timeout time.Duration, insecure bool) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(tr),
	}
}

type requestOption func(*http.Request)

func withBasicAuth(user, password string) requestOption {
	return func(r *http.Request) { r.SetBasicAuth(user, password) }
}

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

// jsonClient issues JSON requests against one upstream base URL and records
// logs and metrics for every call.
type jsonClient struct {
	source  models.Source
	baseURL string
	http    *http.Client
	logger  *zap.SugaredLogger
	opts    []requestOption
}

func (c *jsonClient) do(ctx context.Context, operation, method, path string, body, out any, opts ...requestOption) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case IsNotFound(err):
			outcome = "not_found"
		case err != nil:
			outcome = "error"
		}
		metrics.UpstreamRequests.WithLabelValues(string(c.source), operation, outcome).Inc()
		metrics.UpstreamDuration.WithLabelValues(string(c.source), operation).Observe(time.Since(start).Seconds())

		switch outcome {
		case "not_found":
			c.logger.Debugw("Upstream resource not found", "source", c.source, "operation", operation, "path", path)
		case "error":
			c.logger.Errorw("Upstream request failed",
				"source", c.source, "operation", operation, "method", method, "path", path, "error", err)
		}
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "%s: encode request", operation)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrapf(err, "%s: build request", operation)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range c.opts {
		opt(req)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s: %s %s", operation, method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return errors.Wrapf(err, "%s: read response", operation)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.WithStack(&StatusError{
			Method:     method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       truncate(string(data), 512),
		})
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "%s: decode response", operation)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
