// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package cloudflare is the typed client for the edge platform. It covers the
// workers-for-platforms dispatch namespace API, plain worker scripts, routes,
// zones, KV namespaces, and the workers analytics read path.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/overskill/launchpad/internal/pkg/httpclient"
)

// defaultBaseURL is the edge platform's v4 API root.
const defaultBaseURL = "https://api.cloudflare.com/client/v4"

// Client talks to the edge platform on behalf of one account.
type Client struct {
	accountID string
	baseURL   string
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root, e.g. a test server.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(raw, "/")
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New returns a Client authenticating with the given API token.
func New(accountID, apiToken string, opts ...Option) *Client {
	c := &Client{
		accountID: accountID,
		baseURL:   defaultBaseURL,
		http:      httpclient.New(httpclient.WithTransport(&bearerTransport{token: apiToken})),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the platform's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Errors  []APIError      `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

// APIError is one error entry from the platform's response envelope.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// do performs one request and decodes the response envelope. Raw (non-JSON)
// responses must use doRaw instead.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ErrTransient{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ErrTransient{Op: op, Err: err}
	}
	var env envelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil && resp.StatusCode < 400 {
		return nil, fmt.Errorf("%s: decode response envelope: %w", op, jsonErr)
	}
	if resp.StatusCode >= 400 || !env.Success {
		return nil, c.mapErr(op, resp.StatusCode, env.Errors)
	}
	return &env, nil
}

// doRaw performs one request and returns the raw response body, for endpoints
// that serve content rather than an envelope.
func (c *Client) doRaw(ctx context.Context, op, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", op, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ErrTransient{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var env envelope
		_ = json.Unmarshal(body, &env)
		return nil, c.mapErr(op, resp.StatusCode, env.Errors)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ErrTransient{Op: op, Err: err}
	}
	return body, nil
}

// mapErr converts a failed platform response into this package's taxonomy.
func (c *Client) mapErr(op string, status int, apiErrs []APIError) error {
	switch {
	case status == http.StatusNotFound:
		return &ErrNotFound{Resource: op}
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return &ErrUnauthorized{Op: op}
	case status >= http.StatusInternalServerError:
		return &ErrTransient{Op: op, Err: fmt.Errorf("edge platform returned status %d", status)}
	default:
		return &ErrPermanent{Op: op, Code: status, Errors: apiErrs}
	}
}

// accountPath prefixes path with this client's account scope.
func (c *Client) accountPath(format string, args ...interface{}) string {
	return fmt.Sprintf("/accounts/%s", c.accountID) + fmt.Sprintf(format, args...)
}

func decodeResult(env *envelope, op string, out interface{}) error {
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", op, err)
	}
	return nil
}

func jsonBody(v interface{}) (io.Reader, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(raw), nil
}

func escape(s string) string {
	return url.PathEscape(s)
}

// bearerTransport stamps the account API token on outgoing requests.
type bearerTransport struct {
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(r)
}
