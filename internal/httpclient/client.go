package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/domain"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/observability"
	"github.com/bdevz/ultravox-twilio-integration-sub000/pkg/logger"
)

const bodySnippetLimit = 2048

// Request describes one logical outbound request. JSON and Form are mutually
// exclusive; the concrete body is re-encoded on every attempt so retries
// never reuse a drained reader.
type Request struct {
	Method    string
	URL       string
	Header    http.Header
	Query     url.Values
	JSON      any
	Form      url.Values
	BasicAuth *BasicAuth
}

// BasicAuth carries credentials attached via the Authorization header.
type BasicAuth struct {
	Username string
	Password string
}

// Client issues outbound requests for a single vendor with bounded retries.
// The retry policy is fixed at construction and never mutated.
type Client struct {
	service  string
	http     *http.Client
	policy   domain.RetryPolicy
	recorder observability.Recorder
	logger   *logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New validates the policy and builds a client. timeout bounds each attempt's
// wall clock, not the whole retry budget.
func New(service string, policy domain.RetryPolicy, timeout time.Duration, recorder observability.Recorder, lg *logger.Logger) (*Client, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = observability.NopRecorder{}
	}
	return &Client{
		service:  service,
		http:     &http.Client{Timeout: timeout},
		policy:   policy,
		recorder: recorder,
		logger:   lg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Execute runs one logical request, decoding a 2xx JSON body into out when
// out is non-nil. Failures come back as *Error; retryable kinds are retried
// up to MaxRetries times with exponential backoff, then the last error is
// returned. Exactly one outcome metric is emitted per call.
func (c *Client) Execute(ctx context.Context, req Request, out any) error {
	start := time.Now()
	attempts := c.policy.MaxRetries + 1

	var last *Error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := c.backoffDelay(attempt - 1)
			c.warn("retrying vendor request",
				zap.String("service", c.service),
				zap.String("kind", string(last.Kind)),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			if err := sleep(ctx, delay); err != nil {
				last = &Error{
					Kind:     KindConnectionFailure,
					Detail:   "request abandoned during backoff",
					Attempts: attempt - 1,
					Err:      err,
				}
				break
			}
		}

		status, attemptErr := c.attempt(ctx, req, out)
		if attemptErr == nil {
			c.recorder.ObserveVendorRequest(c.service, time.Since(start), status, true)
			return nil
		}

		attemptErr.Attempts = attempt
		last = attemptErr
		if !attemptErr.Kind.Retryable() {
			break
		}
	}

	c.recorder.ObserveVendorRequest(c.service, time.Since(start), last.Status, false)
	return last
}

func (c *Client) attempt(ctx context.Context, req Request, out any) (int, *Error) {
	httpReq, err := req.build(ctx)
	if err != nil {
		return 0, &Error{Kind: KindClientError, Detail: "build request: " + err.Error(), Err: err}
	}
	if id := observability.RequestID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, &Error{Kind: classifyTransport(err), Detail: "dispatch: " + err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return resp.StatusCode, &Error{
			Kind:   classifyTransport(readErr),
			Status: resp.StatusCode,
			Detail: "read body: " + readErr.Error(),
			Err:    readErr,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return resp.StatusCode, &Error{
					Kind:   KindMalformedResponse,
					Status: resp.StatusCode,
					Detail: "decode body: " + err.Error(),
					Body:   snippet(body),
					Err:    err,
				}
			}
		}
		return resp.StatusCode, nil
	}

	e := &Error{
		Kind:   classifyStatus(resp.StatusCode),
		Status: resp.StatusCode,
		Detail: http.StatusText(resp.StatusCode),
		Body:   snippet(body),
	}
	if e.Kind == KindRateLimited {
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return resp.StatusCode, e
}

func (r Request) build(ctx context.Context) (*http.Request, error) {
	target := r.URL
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case r.JSON != nil:
		payload, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, err
	}
	for key, values := range r.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.BasicAuth != nil {
		req.SetBasicAuth(r.BasicAuth.Username, r.BasicAuth.Password)
	}
	return req, nil
}

// backoffDelay computes the pause before retry n (1-based):
// min(base*multiplier^(n-1), max), optionally scaled by a uniform factor in
// [0.5, 1.0] to spread synchronized retries.
func (c *Client) backoffDelay(retry int) time.Duration {
	exponent := math.Pow(c.policy.BackoffMultiplier, float64(retry-1))
	delay := time.Duration(float64(c.policy.BaseDelay) * exponent)
	if delay <= 0 || delay > c.policy.MaxDelay {
		delay = c.policy.MaxDelay
	}
	if c.policy.Jitter {
		c.mu.Lock()
		factor := 0.5 + 0.5*c.rng.Float64()
		c.mu.Unlock()
		delay = time.Duration(float64(delay) * factor)
	}
	return delay
}

func (c *Client) warn(msg string, fields ...zap.Field) {
	if c.logger != nil {
		c.logger.Warn(msg, fields...)
	}
}

func classifyTransport(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindConnectionFailure
}

func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthenticationFailure
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServerError
	default:
		return KindClientError
	}
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(body []byte) string {
	if len(body) > bodySnippetLimit {
		body = body[:bodySnippetLimit]
	}
	return string(body)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
