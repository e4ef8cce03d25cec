// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Route maps a request pattern in a zone to a worker script.
type Route struct {
	ID      string `json:"id,omitempty"`
	Pattern string `json:"pattern"`
	Script  string `json:"script"`
}

// ZoneID looks up the zone id for an apex domain.
func (c *Client) ZoneID(ctx context.Context, domain string) (string, error) {
	op := fmt.Sprintf("zone %s", domain)
	env, err := c.do(ctx, op, http.MethodGet, "/zones?name="+url.QueryEscape(domain), nil, "")
	if err != nil {
		return "", err
	}
	var zones []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := decodeResult(env, op, &zones); err != nil {
		return "", err
	}
	for _, z := range zones {
		if z.Name == domain {
			return z.ID, nil
		}
	}
	return "", &ErrNotFound{Resource: op}
}

// ListRoutes returns every worker route in a zone.
func (c *Client) ListRoutes(ctx context.Context, zoneID string) ([]Route, error) {
	op := fmt.Sprintf("routes in zone %s", zoneID)
	env, err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("/zones/%s/workers/routes", escape(zoneID)), nil, "")
	if err != nil {
		return nil, err
	}
	var routes []Route
	if err := decodeResult(env, op, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

// CreateRoute maps pattern to script in a zone. An already-existing identical
// route is success.
func (c *Client) CreateRoute(ctx context.Context, zoneID, pattern, script string) error {
	op := fmt.Sprintf("route %s in zone %s", pattern, zoneID)
	body, err := jsonBody(Route{Pattern: pattern, Script: script})
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}
	_, err = c.do(ctx, "create "+op, http.MethodPost, fmt.Sprintf("/zones/%s/workers/routes", escape(zoneID)), body, "application/json")
	if err == nil || isAlreadyExists(err) {
		return nil
	}
	return err
}

// UpdateRoute rewrites an existing route.
func (c *Client) UpdateRoute(ctx context.Context, zoneID, routeID, pattern, script string) error {
	op := fmt.Sprintf("route %s in zone %s", routeID, zoneID)
	body, err := jsonBody(Route{Pattern: pattern, Script: script})
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}
	_, err = c.do(ctx, "update "+op, http.MethodPut, fmt.Sprintf("/zones/%s/workers/routes/%s", escape(zoneID), escape(routeID)), body, "application/json")
	return err
}

// DeleteRoute removes a route from a zone.
func (c *Client) DeleteRoute(ctx context.Context, zoneID, routeID string) error {
	op := fmt.Sprintf("delete route %s in zone %s", routeID, zoneID)
	_, err := c.do(ctx, op, http.MethodDelete, fmt.Sprintf("/zones/%s/workers/routes/%s", escape(zoneID), escape(routeID)), nil, "")
	if err == nil {
		return nil
	}
	var notFound *ErrNotFound
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}
