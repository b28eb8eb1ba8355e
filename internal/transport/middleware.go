package transport

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	obserrors "github.com/kubeadapt/kueue-observer/internal/errors"
	"github.com/kubeadapt/kueue-observer/internal/observability"
)

// userAgentTransport sets the User-Agent header on every request.
type userAgentTransport struct {
	agent string
	next  http.RoundTripper
}

// WithUserAgent wraps a RoundTripper with a fixed User-Agent.
func WithUserAgent(agent string, next http.RoundTripper) http.RoundTripper {
	return &userAgentTransport{agent: agent, next: next}
}

func (u *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", u.agent)
	return u.next.RoundTrip(req)
}

// loggingTransport logs request method/URL and response status.
type loggingTransport struct {
	logger *slog.Logger
	next   http.RoundTripper
}

// WithLogging wraps a RoundTripper with request/response logging.
// Polls run every second, so completed requests log at debug level.
func WithLogging(logger *slog.Logger, next http.RoundTripper) http.RoundTripper {
	return &loggingTransport{logger: logger, next: next}
}

func (l *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := l.next.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		l.logger.Debug("HTTP request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return resp, err
	}

	l.logger.Debug("HTTP request completed",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", elapsed.Milliseconds(),
	)
	return resp, nil
}

// retryBaseDelay is the first backoff step. Polls repeat every second, so
// retries stay well below that.
var retryBaseDelay = 50 * time.Millisecond

// maxRetryAfter caps a server-provided Retry-After.
const maxRetryAfter = 2 * time.Second

// retryTransport retries on network errors, 5xx, and 429 with exponential backoff.
// It does NOT retry on 4xx client errors such as 401/403/404.
type retryTransport struct {
	maxRetries int
	metrics    *observability.Metrics
	next       http.RoundTripper
}

// WithRetry wraps a RoundTripper with retry logic for transient errors.
// Only requests without a body are retried. metrics may be nil.
func WithRetry(maxRetries int, metrics *observability.Metrics, next http.RoundTripper) http.RoundTripper {
	return &retryTransport{maxRetries: maxRetries, metrics: metrics, next: next}
}

func (r *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 && r.metrics != nil {
			r.metrics.TransportRetries.Inc()
		}

		resp, err = r.next.RoundTrip(req)
		last := attempt == r.maxRetries || req.Body != nil

		if err != nil {
			// Network error: retry unless the caller gave up.
			if last || req.Context().Err() != nil {
				return nil, err
			}
			if !sleepCtx(req, backoff(attempt)) {
				return nil, err
			}
			continue
		}

		// Success or client error that shouldn't be retried.
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		if last {
			return resp, nil
		}

		delay := backoff(attempt)
		if resp.StatusCode == http.StatusTooManyRequests {
			delay = retryAfterDelay(resp)
		}
		drainAndClose(resp.Body)
		if !sleepCtx(req, delay) {
			return nil, req.Context().Err()
		}
	}

	return resp, err
}

// backoff returns retryBaseDelay * 2^attempt.
func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * retryBaseDelay
}

// sleepCtx sleeps for d or until the request context is done. It reports
// whether the full delay elapsed.
func sleepCtx(req *http.Request, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-req.Context().Done():
		return false
	}
}

// retryAfterDelay extracts the delay from a 429 response's Retry-After
// header, capped at maxRetryAfter.
func retryAfterDelay(resp *http.Response) time.Duration {
	const defaultDelay = 500 * time.Millisecond

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return min(time.Duration(secs)*time.Second, maxRetryAfter)
		}
	}
	return defaultDelay
}

// drainAndClose reads remaining body bytes and closes, preventing connection leaks.
func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	body.Close()
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Path       string
	// Message is the Kubernetes Status message when the body carried one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("transport: GET %s: HTTP %d: %s", e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transport: GET %s: HTTP %d", e.Path, e.StatusCode)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// maxErrorBody bounds how much of an error body is read for its Status message.
const maxErrorBody = 64 << 10

// ParseResponse decodes a 2xx JSON body into out, or converts the response
// into an error. The body is always drained and closed.
func ParseResponse(resp *http.Response, path string, out any) error {
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode, Path: path}
		var status metav1.Status
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&status); err == nil {
			se.Message = status.Message
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &obserrors.ObserverError{
			Code:      obserrors.ErrDecodeFailed,
			Message:   fmt.Sprintf("transport: failed to decode %s: %v", path, err),
			Component: "transport",
			Timestamp: time.Now().UnixMilli(),
			Err:       err,
		}
	}
	return nil
}
