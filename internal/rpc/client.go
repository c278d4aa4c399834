package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/components/internal/ir"
	"github.com/roach88/components/internal/store"
)

// Engine functions exposed under /engine/.
const (
	FnRunComponent        = "runComponent"
	FnSaveComponentState  = "saveComponentState"
	FnGetComponentState   = "getComponentState"
	FnSendToConnection    = "sendToConnection"
	FnGetPackageURLs      = "getPackageUrls"
	headerOrg             = "serverless-org-name"
	headerProtocolVersion = "serverless-protocol-version"
)

// DefaultAttempts is how often idempotent engine calls are tried.
const DefaultAttempts = 3

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client. Defaults to http.DefaultClient.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithClientLogger sets the logger. Defaults to slog.Default().
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTimeout bounds each runComponent call. Zero means no bound beyond
// the caller's context.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithAttempts sets how often state, telemetry and package URL calls are
// tried before giving up.
func WithAttempts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithDispatchAttempts sets how often runComponent is tried. Defaults to 1
// because component methods are not assumed idempotent.
func WithDispatchAttempts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.dispatchAttempts = n
		}
	}
}

// WithRetryInterval sets the first backoff interval.
func WithRetryInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.interval = d
	}
}

// Client talks to the engine backend over HTTP.
//
// Every call is a POST of a JSON body to {base}/engine/{fn}. The access key
// travels as a bearer token and the org in the serverless-org-name header.
// Failures come back as a non-2xx status with an error payload body.
type Client struct {
	base             string
	http             *http.Client
	logger           *slog.Logger
	timeout          time.Duration
	attempts         int
	dispatchAttempts int
	interval         time.Duration
}

// NewClient returns a client for the engine at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base:             strings.TrimRight(baseURL, "/"),
		http:             http.DefaultClient,
		logger:           slog.Default(),
		attempts:         DefaultAttempts,
		dispatchAttempts: 1,
		interval:         200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dispatch runs inv on the engine and returns the method's outputs.
func (c *Client) Dispatch(ctx context.Context, inv ir.Invocation) (ir.IRObject, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var outputs ir.IRObject
	if err := c.call(ctx, FnRunComponent, inv.AccessKey, inv.Org, inv, &outputs, c.dispatchAttempts); err != nil {
		return nil, err
	}
	if outputs == nil {
		outputs = ir.IRObject{}
	}
	return outputs, nil
}

// SaveComponentState persists one instance's state.
func (c *Client) SaveComponentState(ctx context.Context, rec ir.StateRecord) error {
	if rec.State == nil {
		rec.State = ir.IRObject{}
	}
	return c.call(ctx, FnSaveComponentState, rec.AccessKey, rec.Org, rec, nil, c.attempts)
}

// GetComponentState reads one instance's state. An instance that never
// saved reads as an empty object.
func (c *Client) GetComponentState(ctx context.Context, id ir.Identity, accessKey string) (ir.IRObject, error) {
	var rec ir.StateRecord
	req := ir.StateRecord{Identity: id, AccessKey: accessKey}
	if err := c.call(ctx, FnGetComponentState, accessKey, id.Org, req, &rec, c.attempts); err != nil {
		return nil, err
	}
	if rec.State == nil {
		return ir.IRObject{}, nil
	}
	return rec.State, nil
}

// Send forwards one telemetry event to its observer. It satisfies
// telemetry.Sender.
func (c *Client) Send(ctx context.Context, ev ir.Event) error {
	return c.call(ctx, FnSendToConnection, ev.AccessKey, ev.Org, ev, nil, c.attempts)
}

type packageURLRequest struct {
	Org       string `json:"org,omitempty"`
	AccessKey string `json:"accessKey,omitempty"`
}

// PackageURLs requests a pre-signed upload/download pair.
func (c *Client) PackageURLs(ctx context.Context, org, accessKey string) (ir.PackageURLs, error) {
	var urls ir.PackageURLs
	req := packageURLRequest{Org: org, AccessKey: accessKey}
	if err := c.call(ctx, FnGetPackageURLs, accessKey, org, req, &urls, c.attempts); err != nil {
		return ir.PackageURLs{}, err
	}
	if urls.Upload == "" || urls.Download == "" {
		return ir.PackageURLs{}, fmt.Errorf("%s: engine returned incomplete package urls", FnGetPackageURLs)
	}
	return urls, nil
}

// StateStore returns a store.StateStore backed by the engine, authorised
// with accessKey.
func (c *Client) StateStore(accessKey string) store.StateStore {
	return &remoteState{client: c, accessKey: accessKey}
}

type remoteState struct {
	client    *Client
	accessKey string
}

func (r *remoteState) SaveState(ctx context.Context, id ir.Identity, state ir.IRObject) error {
	return r.client.SaveComponentState(ctx, ir.StateRecord{Identity: id, AccessKey: r.accessKey, State: state})
}

func (r *remoteState) ReadState(ctx context.Context, id ir.Identity) (ir.IRObject, error) {
	return r.client.GetComponentState(ctx, id, r.accessKey)
}

// call posts in to fn and decodes the response into out when out is non-nil.
// Transport failures and gateway statuses are retried up to attempts times;
// an error payload from the engine is returned at once.
func (c *Client) call(ctx context.Context, fn, accessKey, org string, in, out any, attempts int) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", fn, err)
	}
	url := c.base + "/engine/" + fn

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%s: %w", fn, err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(headerProtocolVersion, ir.ProtocolVersion)
		if accessKey != "" {
			req.Header.Set("Authorization", "Bearer "+accessKey)
		}
		if org != "" {
			req.Header.Set(headerOrg, org)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%s: %w", fn, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			berr := decodeBackendError(resp)
			if retryable(resp.StatusCode) {
				return berr
			}
			return backoff.Permanent(berr)
		}

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return backoff.Permanent(fmt.Errorf("%s: decode response: %w", fn, err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.interval
	var policy backoff.BackOff = backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(attempts, 1)-1)), ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("engine call failed, retrying",
			"fn", fn,
			"error", err,
			"wait", wait,
		)
	}
	return backoff.RetryNotify(op, policy, notify)
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func decodeBackendError(resp *http.Response) *BackendError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var p ir.ErrorPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Message == "" {
		p.Message = strings.TrimSpace(string(raw))
		if p.Message == "" {
			p.Message = http.StatusText(resp.StatusCode)
		}
	}
	return NewBackendError(&p, resp.StatusCode)
}
