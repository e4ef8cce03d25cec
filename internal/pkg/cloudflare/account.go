// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cloudflare

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// AccountSubdomain returns the account's workers.dev subdomain label.
func (c *Client) AccountSubdomain(ctx context.Context) (string, error) {
	op := "account workers.dev subdomain"
	env, err := c.do(ctx, op, http.MethodGet, c.accountPath("/workers/subdomain"), nil, "")
	if err != nil {
		return "", err
	}
	var result struct {
		Subdomain string `json:"subdomain"`
	}
	if err := decodeResult(env, op, &result); err != nil {
		return "", err
	}
	return result.Subdomain, nil
}

// KVNamespace is one key-value namespace on the account.
type KVNamespace struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// GetOrCreateKVNamespace returns the id of the KV namespace with the given
// title, creating it when absent.
func (c *Client) GetOrCreateKVNamespace(ctx context.Context, title string) (string, error) {
	op := fmt.Sprintf("kv namespace %s", title)

	env, err := c.do(ctx, "list for "+op, http.MethodGet, c.accountPath("/storage/kv/namespaces?per_page=100"), nil, "")
	if err != nil {
		return "", err
	}
	var existing []KVNamespace
	if err := decodeResult(env, op, &existing); err != nil {
		return "", err
	}
	for _, ns := range existing {
		if ns.Title == title {
			return ns.ID, nil
		}
	}

	body, err := jsonBody(map[string]string{"title": title})
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", op, err)
	}
	env, err = c.do(ctx, "create "+op, http.MethodPost, c.accountPath("/storage/kv/namespaces"), body, "application/json")
	if err != nil {
		return "", err
	}
	var created KVNamespace
	if err := decodeResult(env, op, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// AnalyticsDatum is one per-script row of the workers analytics read.
type AnalyticsDatum struct {
	ScriptName string  `json:"scriptName"`
	Requests   int64   `json:"requests"`
	Errors     int64   `json:"errors"`
	CPUTimeP50 float64 `json:"cpuTimeP50"`
}

// WorkersAnalytics reads per-script request metrics for the given window.
func (c *Client) WorkersAnalytics(ctx context.Context, start, end time.Time, sampling float64) ([]AnalyticsDatum, error) {
	op := "workers analytics"
	query := url.Values{}
	query.Set("since", start.UTC().Format(time.RFC3339))
	query.Set("until", end.UTC().Format(time.RFC3339))
	if sampling > 0 {
		query.Set("sampling_rate", strconv.FormatFloat(sampling, 'f', -1, 64))
	}
	env, err := c.do(ctx, op, http.MethodGet, c.accountPath("/analytics/workers/data?%s", query.Encode()), nil, "")
	if err != nil {
		return nil, err
	}
	var data []AnalyticsDatum
	if err := decodeResult(env, op, &data); err != nil {
		return nil, err
	}
	return data, nil
}
