// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/overskill/launchpad/internal/pkg/apps"
)

// SubdomainURL derives the preferred public URL for an app in env:
// "https://[{prefix}]{script}.{apps_domain}".
func (p *Publisher) SubdomainURL(app *apps.App, env apps.Environment) string {
	return fmt.Sprintf("https://%s%s.%s", env.HostPrefix(), app.ScriptName(env), p.cfg.AppsDomain)
}

// PathURL derives the workers.dev fallback URL, routing through the shared
// dispatch worker by path: ".../app/[{prefix}]{script}".
func (p *Publisher) PathURL(ctx context.Context, app *apps.App, env apps.Environment) (string, error) {
	sub, err := p.accountSubdomain(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve account subdomain: %w", err)
	}
	return fmt.Sprintf("https://%s.%s.workers.dev/app/%s%s", WorkerName, sub, env.HostPrefix(), app.ScriptName(env)), nil
}

// URL derives the public URL for an app in env, preferring the subdomain
// scheme when an apps domain is configured.
func (p *Publisher) URL(ctx context.Context, app *apps.App, env apps.Environment) (string, error) {
	if p.cfg.AppsDomain != "" {
		return p.SubdomainURL(app, env), nil
	}
	return p.PathURL(ctx, app, env)
}

// accountSubdomain resolves and caches the account's workers.dev subdomain.
func (p *Publisher) accountSubdomain(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accountSub != "" {
		return p.accountSub, nil
	}
	sub, err := p.edge.AccountSubdomain(ctx)
	if err != nil {
		return "", err
	}
	p.accountSub = sub
	return sub, nil
}

// ParseAppHost inverts the subdomain scheme: given a request host under the
// apps domain, it returns the script name and environment. It mirrors the
// dispatch worker's host parsing.
func (p *Publisher) ParseAppHost(host string) (script string, env apps.Environment, ok bool) {
	host = strings.ToLower(host)
	suffix := "." + p.cfg.AppsDomain
	if p.cfg.AppsDomain == "" || !strings.HasSuffix(host, suffix) {
		return "", "", false
	}
	label := strings.Split(strings.TrimSuffix(host, suffix), ".")[0]
	if label == "" {
		return "", "", false
	}
	script, env = parseLabel(label)
	return script, env, true
}

// ParseAppPath inverts the path scheme: given a request path of the form
// "/app/{script}", it returns the script name and environment.
func ParseAppPath(path string) (script string, env apps.Environment, ok bool) {
	rest := strings.TrimPrefix(path, "/app/")
	if rest == path || rest == "" {
		return "", "", false
	}
	label := strings.ToLower(strings.SplitN(rest, "/", 2)[0])
	if label == "" {
		return "", "", false
	}
	script, env = parseLabel(label)
	return script, env, true
}

// parseLabel strips the environment prefix off a host label or path segment.
func parseLabel(label string) (string, apps.Environment) {
	for _, env := range []apps.Environment{apps.EnvPreview, apps.EnvStaging} {
		if strings.HasPrefix(label, env.HostPrefix()) {
			return strings.TrimPrefix(label, env.HostPrefix()), env
		}
	}
	return label, apps.EnvProduction
}
