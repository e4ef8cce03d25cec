// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package httpclient builds the pooled, retrying HTTP clients shared by the
// provider clients. Each provider owns one client, so connections are pooled
// per host and transient failures are absorbed close to the wire.
package httpclient

import (
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/overskill/launchpad/internal/pkg/version"
)

const (
	// maxRetries bounds transparent retries of 5xx and network failures.
	maxRetries = 3

	// DefaultTimeout is the per-attempt deadline for REST calls.
	DefaultTimeout = 30 * time.Second
	// LogDownloadTimeout is the per-attempt deadline when streaming CI log archives.
	LogDownloadTimeout = 120 * time.Second

	retryWaitMin = 1 * time.Second
	retryWaitMax = 30 * time.Second
)

// jitterFraction spreads retry delays by ±20% to avoid thundering herds
// across concurrent tenant deploys.
const jitterFraction = 0.2

var (
	randMu  sync.Mutex
	randSrc = rand.New(rand.NewSource(time.Now().UnixNano()))
)

type options struct {
	timeout   time.Duration
	transport http.RoundTripper
}

// Option configures the client returned by New.
type Option func(*options)

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithTransport sets the innermost round tripper, typically one that injects
// authentication.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// New returns an *http.Client that retries 5xx responses and network errors
// up to three times with jittered exponential backoff, honors Retry-After
// on 429 responses, and stamps a launchpad User-Agent on every request.
func New(opts ...Option) *http.Client {
	o := options{
		timeout:   DefaultTimeout,
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(&o)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = maxRetries
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	rc.Logger = nil
	rc.Backoff = JitteredBackoff
	rc.HTTPClient = &http.Client{
		Timeout:   o.timeout,
		Transport: &userAgentTransport{base: o.transport},
	}
	return rc.StandardClient()
}

// JitteredBackoff spreads retryablehttp's default backoff, which already
// honors Retry-After headers, by the standard jitter fraction.
func JitteredBackoff(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	return Jitter(retryablehttp.DefaultBackoff(min, max, attemptNum, resp))
}

// Jitter scales d by a uniformly random factor in [1-jitterFraction, 1+jitterFraction].
func Jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	randMu.Lock()
	f := randSrc.Float64()
	randMu.Unlock()
	factor := 1 - jitterFraction + 2*jitterFraction*f
	return time.Duration(float64(d) * factor)
}

// userAgentTransport stamps the launchpad User-Agent on outgoing requests.
type userAgentTransport struct {
	base http.RoundTripper
}

// RoundTrip clones the request before modifying headers, as required by the
// http.RoundTripper contract.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", version.UserAgent())
	}
	return t.base.RoundTrip(r)
}
