package license

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/splax/installer/internal/domain"
)

const (
	// DefaultEndpoint is the licensing API used when none is configured.
	DefaultEndpoint = "https://license.devjamv.com/api/verify"

	defaultTimeout  = 15 * time.Second
	maxResponseSize = 64 << 10
)

// Messages surfaced to the installer user.
const (
	MessageUnreachable = "Unable to connect to the license server. Please try again later."
	MessageRejected    = "Failed to validate purchase code."
)

// Client verifies purchase codes against the remote licensing API.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. The client is copied, so
// later options never modify the caller's value.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			clone := *h
			c.httpClient = &clone
		}
	}
}

// WithTimeout bounds every verification request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for operator diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a Client posting to endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		trimmed = DefaultEndpoint
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid license endpoint: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return nil, fmt.Errorf("unsupported license endpoint scheme: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("license endpoint must include host")
	}
	cli := &Client{
		endpoint:   parsed.String(),
		httpClient: newHTTPClient(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cli)
	}
	if cli.httpClient.Timeout <= 0 {
		cli.httpClient.Timeout = defaultTimeout
	}
	return cli, nil
}

func newHTTPClient() *http.Client {
	transport, ok := http.DefaultTransport.(*http.Transport)
	var t *http.Transport
	if ok {
		t = transport.Clone()
	} else {
		t = &http.Transport{}
	}
	t.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	return &http.Client{Timeout: defaultTimeout, Transport: t}
}

// Endpoint exposes the configured licensing endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type verifyRequest struct {
	PurchaseCode string `json:"purchase_code"`
	URL          string `json:"url"`
}

type verifyResponse struct {
	SiteKey string `json:"SITE_KEY"`
	Error   string `json:"error"`
}

// Verify submits code and the installation URL to the licensing API. It makes a
// single attempt and never returns an error: every failure is classified into
// the returned verification.
func (c *Client) Verify(ctx context.Context, code domain.PurchaseCode, installationURL string) domain.LicenseVerification {
	if ctx == nil {
		ctx = context.Background()
	}
	body, err := json.Marshal(verifyRequest{PurchaseCode: code, URL: installationURL})
	if err != nil {
		c.logger.Error("encode license request", "error", err)
		return domain.LicenseVerification{Message: MessageUnreachable}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("build license request", "error", err)
		return domain.LicenseVerification{Message: MessageUnreachable}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("license server unreachable", "endpoint", c.endpoint, "error", err)
		return domain.LicenseVerification{Message: MessageUnreachable}
	}
	defer resp.Body.Close()

	payload := decodeResponse(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := strings.TrimSpace(payload.Error)
		if msg == "" {
			msg = MessageRejected
		}
		c.logger.Info("purchase code rejected", "status", resp.StatusCode)
		return domain.LicenseVerification{Message: msg}
	}
	return domain.LicenseVerification{Success: true, SiteKey: payload.SiteKey}
}

// decodeResponse tolerates empty or malformed bodies by returning zero fields.
func decodeResponse(body io.Reader) verifyResponse {
	var payload verifyResponse
	data, err := io.ReadAll(io.LimitReader(body, maxResponseSize))
	if err != nil || len(data) == 0 {
		return verifyResponse{}
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return verifyResponse{}
	}
	return payload
}
