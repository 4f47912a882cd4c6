// Package storeclient builds the HTTP client used to talk to a FHIR store.
package storeclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/flarebyte/timewarp/internal/buildinfo"
	"github.com/flarebyte/timewarp/internal/failure"
)

const (
	// RequestTimeout bounds one API call. Bulk file downloads are not
	// bounded by it, only by ResponseHeaderTimeout and the caller's context.
	RequestTimeout        = 60 * time.Second
	DialTimeout           = 30 * time.Second
	IdleConnTimeout       = 30 * time.Second
	TLSHandshakeTimeout   = 10 * time.Second
	ResponseHeaderTimeout = 60 * time.Second
	KeepAlive             = 20 * time.Second
	MaxIdleConns          = 16
	RetryWaitTime         = 200 * time.Millisecond
	RetryWaitTimeMax      = 3 * time.Second
)

// Options configures New.
type Options struct {
	AuthToken string
	Retries   int
	// HeaderTimeout limits the wait for response headers on the default
	// transport. The body of a response is never time-limited here.
	HeaderTimeout time.Duration
	Logger    *zap.SugaredLogger
	// Transport replaces the default transport, mainly for tests.
	Transport http.RoundTripper
}

// New returns a resty client with store defaults: bearer auth when a token is
// set, retries on network errors and transient statuses, debug logging of
// every response.
func New(opts Options) *resty.Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c := resty.New()
	c.SetLogger(logger)
	c.SetHeader("User-Agent", buildinfo.UserAgent())
	c.SetRetryCount(opts.Retries)
	c.SetRetryWaitTime(RetryWaitTime)
	c.SetRetryMaxWaitTime(RetryWaitTimeMax)
	c.AddRetryCondition(retryCondition)
	if opts.Transport != nil {
		c.SetTransport(opts.Transport)
	} else {
		c.SetTransport(defaultTransport(opts.HeaderTimeout))
	}
	if opts.AuthToken != "" {
		c.SetAuthToken(opts.AuthToken)
	}
	c.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		logger.Debugf("HTTP %s %s | %d | %s", res.Request.Method, res.Request.URL, res.StatusCode(), res.Time())
		return nil
	})
	return c
}

// retryCondition retries network errors, except unknown hosts, and
// transient HTTP statuses.
func retryCondition(res *resty.Response, err error) bool {
	if err != nil && (res == nil || res.StatusCode() == 0) {
		var dnsErr *net.DNSError
		return !(errors.As(err, &dnsErr) && dnsErr.IsNotFound)
	}
	if res == nil {
		return false
	}
	switch res.StatusCode() {
	case
		http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func defaultTransport(headerTimeout time.Duration) *http.Transport {
	if headerTimeout <= 0 {
		headerTimeout = ResponseHeaderTimeout
	}
	dialer := &net.Dialer{
		Timeout:   DialTimeout,
		KeepAlive: KeepAlive,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          MaxIdleConns,
		MaxIdleConnsPerHost:   MaxIdleConns,
		IdleConnTimeout:       IdleConnTimeout,
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: headerTimeout,
	}
}

// NormalizeBaseURL validates an http(s) base URL and gives it exactly one
// trailing slash, so that "{base}{type}/{id}" addresses a resource.
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", failure.New(failure.Usage, "base url", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", failure.New(failure.Usage, "base url", fmt.Errorf("expected an http(s) URL, got %q", raw))
	}
	return strings.TrimRight(raw, "/") + "/", nil
}

// CallContext derives the context for a single short API call.
func CallContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, RequestTimeout)
}

// Probe checks that the store answers an OPTIONS request with a 2xx status.
func Probe(ctx context.Context, c *resty.Client, baseURL string) error {
	ctx, cancel := CallContext(ctx)
	defer cancel()
	res, err := c.R().SetContext(ctx).Options(baseURL)
	if err != nil {
		return failure.New(failure.Usage, "probe", fmt.Errorf("unable to access %s: %w", baseURL, err))
	}
	if !res.IsSuccess() {
		return failure.New(failure.Usage, "probe", fmt.Errorf("unable to access %s: status %d: %s", baseURL, res.StatusCode(), Excerpt(res.Body())))
	}
	return nil
}

const maxExcerpt = 512

// Excerpt shortens a response body for error messages.
func Excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxExcerpt {
		return s[:maxExcerpt] + "..."
	}
	return s
}
