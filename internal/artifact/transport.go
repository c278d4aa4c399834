package artifact

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultAttempts is how many times a transfer is tried before failing.
const DefaultAttempts = 3

// StatusError is a non-2xx response from the artifact store.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithHTTPClient sets the HTTP client used for transfers.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *Transport) {
		t.client = c
	}
}

// WithAttempts sets the number of tries per transfer (minimum 1).
func WithAttempts(n int) TransportOption {
	return func(t *Transport) {
		if n < 1 {
			n = 1
		}
		t.attempts = n
	}
}

// WithInitialInterval sets the first retry delay.
func WithInitialInterval(d time.Duration) TransportOption {
	return func(t *Transport) {
		t.interval = d
	}
}

// WithTransportLogger sets the transport's logger.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// Transport moves package bytes to and from pre-signed URLs. Transient
// failures (network errors, 5xx, 429) retry with exponential backoff;
// other 4xx responses fail at once.
type Transport struct {
	client   *http.Client
	attempts int
	interval time.Duration
	logger   *slog.Logger
}

// NewTransport creates a Transport with DefaultAttempts tries.
func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{
		client:   http.DefaultClient,
		attempts: DefaultAttempts,
		interval: 200 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Put uploads the file at path to url.
func (t *Transport) Put(ctx context.Context, url, path string) error {
	return t.retry(ctx, "PUT", url, func() error {
		f, err := os.Open(path)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, f)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.ContentLength = info.Size()
		req.Header.Set("Content-Type", "application/zip")

		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return classify(http.MethodPut, url, resp.StatusCode)
	})
}

// Get downloads url into the file at path, replacing it.
func (t *Transport) Get(ctx context.Context, url, path string) error {
	return t.retry(ctx, "GET", url, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := classify(http.MethodGet, url, resp.StatusCode); err != nil {
			return err
		}

		f, err := os.Create(path)
		if err != nil {
			return backoff.Permanent(err)
		}
		if _, err := io.Copy(f, resp.Body); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}

func (t *Transport) retry(ctx context.Context, method, url string, op func() error) error {
	b := backoff.NewExponentialBackOff(backoff.WithInitialInterval(t.interval))
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.attempts-1)), ctx)

	return backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		t.logger.Debug("artifact transfer retry",
			"method", method,
			"url", redact(url),
			"error", err,
			"backoff", next.String(),
		)
	})
}

func classify(method, url string, status int) error {
	if status >= 200 && status < 300 {
		return nil
	}
	err := &StatusError{Method: method, URL: redact(url), StatusCode: status}
	if status >= 500 || status == http.StatusTooManyRequests {
		return err
	}
	return backoff.Permanent(err)
}

// redact drops the query string, which carries the signature of a
// pre-signed URL.
func redact(url string) string {
	base, _, _ := strings.Cut(url, "?")
	return base
}
