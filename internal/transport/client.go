package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzhttp"

	"github.com/kubeadapt/kueue-observer/internal/observability"
)

// json decodes list responses on the poll path. It is a drop-in for
// encoding/json so Kubernetes types keep their tag semantics.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configures a Client.
type Options struct {
	// BaseURL is the API server (or proxy) root, without trailing slash.
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
	UserAgent      string
	// Logger, when set, logs every request at debug level.
	Logger *slog.Logger
}

// Client issues read-only GET requests against the observed API and decodes
// JSON responses. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Client with middleware applied on top of base.
// base carries authentication (e.g. from client-go rest.TransportFor);
// nil uses a dedicated http.Transport.
func NewClient(base http.RoundTripper, opts Options, metrics *observability.Metrics) *Client {
	if base == nil {
		// Use an explicit transport instead of http.DefaultTransport to avoid
		// sharing mutable state with other code in the process.
		base = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		}
	}

	// Order, outermost first: user agent, logging, retry, gzip.
	rt := gzhttp.Transport(base)
	rt = WithRetry(opts.MaxRetries, metrics, rt)
	if opts.Logger != nil {
		rt = WithLogging(opts.Logger, rt)
	}
	if opts.UserAgent != "" {
		rt = WithUserAgent(opts.UserAgent, rt)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.RequestTimeout,
			Transport: rt,
		},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// Get issues GET baseURL+path and decodes a 2xx JSON body into out.
// Non-2xx responses return a *StatusError; undecodable bodies return an
// ObserverError with ErrDecodeFailed.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("transport: invalid path %q: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("transport: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transport: GET %s: %w", path, err)
	}

	return ParseResponse(resp, path, out)
}
