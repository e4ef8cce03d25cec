// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package credentials mints short-lived installation tokens for the source
// host from the app's long-lived RSA signing key. Tokens are cached per
// organization until shortly before expiry, and at most one refresh per
// organization is in flight at any time.
package credentials

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v45/github"
	"golang.org/x/sync/singleflight"

	"github.com/overskill/launchpad/internal/pkg/httpclient"
)

const (
	// jwtBackdate guards against clock skew between us and the source host.
	jwtBackdate = time.Minute
	// jwtLifetime is the maximum the source host accepts for app JWTs.
	jwtLifetime = 10 * time.Minute
	// refreshSkew renews cached tokens a minute before they actually expire.
	refreshSkew = time.Minute

	maxAttempts = 3
)

// retryDelays are the waits between attempts when the source host returns a
// server error. Each delay is jittered by ±20%.
var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second}

// Token is a short-lived installation access token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// expired reports whether the token is too close to expiry to hand out.
func (t Token) expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt.Add(-refreshSkew))
}

// api is the subset of the source host's app endpoints used to mint tokens.
// *github.AppsService satisfies it.
type api interface {
	FindOrganizationInstallation(ctx context.Context, org string) (*github.Installation, *github.Response, error)
	ListInstallations(ctx context.Context, opts *github.ListOptions) ([]*github.Installation, *github.Response, error)
	CreateInstallationToken(ctx context.Context, id int64, opts *github.InstallationTokenOptions) (*github.InstallationToken, *github.Response, error)
}

// Provider exchanges the app's signing key for per-organization installation
// tokens. It is safe for concurrent use.
type Provider struct {
	appID      int64
	signingKey *rsa.PrivateKey

	apps    api
	baseURL string

	cache map[string]Token
	mu    chan struct{} // buffered-1 channel used as the cache mutex
	group singleflight.Group

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL points the provider at a different API host, e.g. a test server.
// The url must end with a trailing slash.
func WithBaseURL(raw string) Option {
	return func(p *Provider) {
		p.baseURL = raw
	}
}

// New returns a Provider that signs app JWTs with the given PEM-encoded RSA
// key. It fails with ErrMissingCredential when the key is absent.
func New(appID int64, privateKeyPEM []byte, opts ...Option) (*Provider, error) {
	if len(privateKeyPEM) == 0 {
		return nil, &ErrMissingCredential{}
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse github app signing key: %w", err)
	}

	p := &Provider{
		appID:      appID,
		signingKey: key,
		cache:      make(map[string]Token),
		mu:         make(chan struct{}, 1),
		now:        time.Now,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}

	// The apps client authenticates with a freshly signed JWT per request.
	httpClient := httpclient.New(httpclient.WithTransport(&jwtTransport{mint: p.mintJWT}))
	gh := github.NewClient(httpClient)
	if p.baseURL != "" {
		base, err := gh.BaseURL.Parse(p.baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url %q: %w", p.baseURL, err)
		}
		gh.BaseURL = base
	}
	p.apps = gh.Apps
	return p, nil
}

// TokenFor returns a timely installation token for org, minting a new one if
// the cached token is absent or within a minute of expiring. Concurrent
// callers for the same organization share a single refresh.
func (p *Provider) TokenFor(ctx context.Context, org string) (Token, error) {
	if tok, ok := p.cached(org); ok {
		return tok, nil
	}

	v, err, _ := p.group.Do(org, func() (interface{}, error) {
		// A racing caller may have refreshed while we waited on the group.
		if tok, ok := p.cached(org); ok {
			return tok, nil
		}
		tok, err := p.refresh(ctx, org)
		if err != nil {
			return Token{}, err
		}
		p.store(org, tok)
		return tok, nil
	})
	if err != nil {
		return Token{}, err
	}
	return v.(Token), nil
}

// Transport returns a round tripper that authenticates every request with a
// timely installation token for org.
func (p *Provider) Transport(org string) http.RoundTripper {
	return &tokenTransport{provider: p, org: org, base: http.DefaultTransport}
}

func (p *Provider) cached(org string) (Token, bool) {
	p.lock()
	defer p.unlock()
	tok, ok := p.cache[org]
	if !ok || tok.expired(p.now()) {
		return Token{}, false
	}
	return tok, true
}

func (p *Provider) store(org string, tok Token) {
	p.lock()
	defer p.unlock()
	p.cache[org] = tok
}

func (p *Provider) lock()   { p.mu <- struct{}{} }
func (p *Provider) unlock() { <-p.mu }

// refresh discovers org's installation and exchanges the app JWT for an
// installation token, retrying server errors with staged, jittered delays.
func (p *Provider) refresh(ctx context.Context, org string) (Token, error) {
	id, err := p.installationID(ctx, org)
	if err != nil {
		return Token{}, err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt += 1 {
		if attempt > 0 {
			if err := p.sleep(ctx, httpclient.Jitter(retryDelays[attempt-1])); err != nil {
				return Token{}, err
			}
		}
		tok, resp, err := p.apps.CreateInstallationToken(ctx, id, &github.InstallationTokenOptions{})
		if err == nil {
			return Token{Value: tok.GetToken(), ExpiresAt: tok.GetExpiresAt()}, nil
		}
		lastErr = err
		if !isServerErr(resp, err) {
			return Token{}, p.mapAuthErr("create installation token", org, resp, err)
		}
	}
	return Token{}, fmt.Errorf("create installation token for %s: %w", org, lastErr)
}

// installationID resolves the app installation for org, preferring the direct
// organization endpoint and falling back to listing all installations.
func (p *Provider) installationID(ctx context.Context, org string) (int64, error) {
	inst, resp, err := p.apps.FindOrganizationInstallation(ctx, org)
	if err == nil {
		return inst.GetID(), nil
	}
	if !isNotFound(resp) {
		return 0, p.mapAuthErr("find organization installation", org, resp, err)
	}

	opts := &github.ListOptions{PerPage: 100}
	for {
		installations, resp, err := p.apps.ListInstallations(ctx, opts)
		if err != nil {
			return 0, p.mapAuthErr("list installations", org, resp, err)
		}
		for _, inst := range installations {
			if strings.EqualFold(inst.GetAccount().GetLogin(), org) {
				return inst.GetID(), nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return 0, &ErrInstallationNotFound{Org: org}
}

// mintJWT signs a short-lived app JWT. The issued-at is backdated a minute to
// tolerate clock skew.
func (p *Provider) mintJWT() (string, error) {
	now := p.now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(p.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-jwtBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtLifetime)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(p.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign app jwt: %w", err)
	}
	return signed, nil
}

func (p *Provider) mapAuthErr(op, org string, resp *github.Response, err error) error {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &ErrUnauthorized{Op: op, Code: resp.StatusCode}
		case http.StatusNotFound:
			return &ErrInstallationNotFound{Org: org}
		}
	}
	return fmt.Errorf("%s for %s: %w", op, org, err)
}

func isServerErr(resp *github.Response, err error) bool {
	if resp != nil {
		return resp.StatusCode >= 500
	}
	// No response at all means the failure happened below HTTP.
	var ghErr *github.ErrorResponse
	return !errors.As(err, &ghErr)
}

func isNotFound(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// jwtTransport signs a fresh app JWT for every request.
type jwtTransport struct {
	mint func() (string, error)
	base http.RoundTripper
}

func (t *jwtTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	signed, err := t.mint()
	if err != nil {
		return nil, err
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+signed)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

// tokenTransport authenticates requests with an installation token.
type tokenTransport struct {
	provider *Provider
	org      string
	base     http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.provider.TokenFor(req.Context(), t.org)
	if err != nil {
		return nil, err
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "token "+tok.Value)
	return t.base.RoundTrip(r)
}
