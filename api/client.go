package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	pathRequestOTP        = "/auth/request-otp"
	pathVerifyOTP         = "/auth/verify-otp"
	pathGenerateItinerary = "/api/generate-itinerary"
	pathHealth            = "/health"

	// RequestIDHeader carries a per-request correlation id.
	RequestIDHeader = "X-Request-ID"

	defaultUserAgent = "tripauth/1"
	maxErrorBody     = 4 << 10
)

// TokenSource yields the bearer token to attach, or "" for none.
type TokenSource interface {
	BearerToken() string
}

// Config describes how to reach the backend.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	tokens    TokenSource
	userAgent string
	logger    *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient validates cfg.BaseURL and returns a Client. tokens may be nil.
func NewClient(cfg Config, tokens TokenSource, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("api base url required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api base url must be http or https, got %q", base.Scheme)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: timeout},
		tokens:    tokens,
		userAgent: ua,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("api")
	return c, nil
}

// RequestOTP asks the backend to email a 6-digit code to email.
// An empty response body is accepted.
func (c *Client) RequestOTP(ctx context.Context, email string) (*RequestOTPResponse, error) {
	var out RequestOTPResponse
	if err := c.do(ctx, http.MethodPost, pathRequestOTP, otpRequest{Email: email}, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyOTP exchanges email and code for a bearer token.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (*VerifyOTPResponse, error) {
	var out VerifyOTPResponse
	if err := c.do(ctx, http.MethodPost, pathVerifyOTP, otpVerification{Email: email, OTP: otp}, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateItinerary posts req and decodes the returned itinerary.
// The current bearer token is attached when one is available.
func (c *Client) GenerateItinerary(ctx context.Context, req *TripRequest) (*Itinerary, error) {
	if req == nil {
		return nil, errors.New("trip request required")
	}
	body := *req
	if body.TripTags == nil {
		body.TripTags = []string{}
	}
	var out Itinerary
	if err := c.do(ctx, http.MethodPost, pathGenerateItinerary, &body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns nil when the backend answers 2xx on /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, pathHealth, nil, nil, false)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, authorize bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorize && c.tokens != nil {
		if token := c.tokens.BearerToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// errorMessage extracts a human-readable message from an error body. FastAPI
// style {"detail": "..."} and {"message": "..."} are recognized; anything else
// is returned trimmed.
func errorMessage(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		var detail string
		if len(envelope.Detail) > 0 && json.Unmarshal(envelope.Detail, &detail) == nil && detail != "" {
			return detail
		}
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return string(raw)
}
