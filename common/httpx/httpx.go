package httpx

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
)

// Client wraps http.Client with retries, a host allowlist, a consecutive
// failure circuit breaker and an optional rate limit.
type Client struct {
	hc        *http.Client
	opt       Options
	limiter   *rate.Limiter
	fail      atomic.Int32 // consecutive failures
	openUntil atomic.Int64 // unix nanos for circuit open deadline
}

type Options struct {
	Timeout            time.Duration
	Retry              int
	BackoffMin         time.Duration
	BackoffMax         time.Duration
	HostAllowlist      []string
	MaxConsecutiveFail int
	CircuitOpen        time.Duration
	// RPS of 0 disables rate limiting.
	RPS float64
}

var (
	ErrCircuitOpen    = errors.New("circuit open")
	ErrHostNotAllowed = errors.New("host not allowed")
)

// StatusError reports a 5xx response after retries are exhausted.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpx: %s returned status %d", e.URL, e.Code)
}

func NewFromConfig(cfg *config.HTTPClientConfig) *Client {
	opt := Options{
		Timeout:            1200 * time.Millisecond,
		Retry:              1,
		BackoffMin:         100 * time.Millisecond,
		BackoffMax:         800 * time.Millisecond,
		MaxConsecutiveFail: 5,
		CircuitOpen:        5 * time.Second,
	}
	if cfg != nil {
		opt.Timeout = config.Duration(cfg.TimeoutMs, opt.Timeout)
		if cfg.Retry > 0 {
			opt.Retry = cfg.Retry
		}
		opt.BackoffMin = config.Duration(cfg.BackoffMinMs, opt.BackoffMin)
		opt.BackoffMax = config.Duration(cfg.BackoffMaxMs, opt.BackoffMax)
		if cfg.MaxConsecutiveFailures > 0 {
			opt.MaxConsecutiveFail = cfg.MaxConsecutiveFailures
		}
		if cfg.CircuitOpenSeconds > 0 {
			opt.CircuitOpen = time.Duration(cfg.CircuitOpenSeconds) * time.Second
		}
		opt.HostAllowlist = cfg.HostAllowlist
	}
	return New(opt)
}

func New(opt Options) *Client {
	transport := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: opt.Timeout}).DialContext,
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:    100,
		IdleConnTimeout: 30 * time.Second,
	}
	c := &Client{
		hc:  &http.Client{Timeout: opt.Timeout, Transport: transport},
		opt: opt,
	}
	if opt.RPS > 0 {
		burst := int(opt.RPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opt.RPS), burst)
	}
	return c
}

// WithRPS returns c after installing a rate limit of rps requests per second.
func (c *Client) WithRPS(rps float64) *Client {
	if rps > 0 {
		c.opt.RPS = rps
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
	return c
}

func (c *Client) allowed(u *url.URL) bool {
	if len(c.opt.HostAllowlist) == 0 {
		return true
	}
	host := u.Hostname()
	for _, h := range c.opt.HostAllowlist {
		if matchHost(h, host) {
			return true
		}
	}
	return false
}

func matchHost(pattern, host string) bool {
	if pattern == "*" {
		return true
	}
	if strings.EqualFold(pattern, host) {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		suf := strings.TrimPrefix(pattern, "*.")
		return strings.HasSuffix(host, "."+suf) || host == suf
	}
	return false
}

// Do sends req, retrying transport errors and 5xx responses. Responses below
// 500 are returned to the caller as-is.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if !c.allowed(req.URL) {
		logger.Warnf("httpx: blocked outbound host: %s", req.URL.Host)
		return nil, ErrHostNotAllowed
	}
	if c.openUntil.Load() > time.Now().UnixNano() {
		return nil, ErrCircuitOpen
	}
	ctx := req.Context()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	jitter := c.opt.BackoffMax - c.opt.BackoffMin
	if jitter <= 0 {
		jitter = time.Millisecond
	}
	var resp *http.Response
	attempt := 0
	err := retry.Do(
		func() error {
			r := req
			if attempt > 0 && req.GetBody != nil {
				body, gerr := req.GetBody()
				if gerr != nil {
					return retry.Unrecoverable(gerr)
				}
				r = req.Clone(ctx)
				r.Body = body
			}
			attempt++
			out, derr := c.hc.Do(r)
			if derr != nil {
				return derr
			}
			if out.StatusCode >= 500 {
				_ = out.Body.Close()
				return &StatusError{Code: out.StatusCode, URL: req.URL.Redacted()}
			}
			resp = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.opt.Retry+1)),
		retry.Delay(c.opt.BackoffMin),
		retry.MaxDelay(c.opt.BackoffMax),
		retry.MaxJitter(jitter),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warnf("httpx: request failed (try %d/%d) to %s: %v", n+1, c.opt.Retry+1, req.URL.Redacted(), err)
		}),
	)
	if err == nil {
		c.fail.Store(0)
		return resp, nil
	}
	if c.fail.Inc() >= int32(c.opt.MaxConsecutiveFail) {
		c.openUntil.Store(time.Now().Add(c.opt.CircuitOpen).UnixNano())
		c.fail.Store(0)
		logger.Warnf("httpx: circuit opened for %v", c.opt.CircuitOpen)
	}
	return nil, err
}
