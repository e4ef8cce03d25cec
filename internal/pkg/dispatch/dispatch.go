// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package dispatch publishes tenant scripts to the edge platform's dispatch
// namespaces and maintains the shared routing worker in front of them.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/overskill/launchpad/internal/pkg/apps"
	"github.com/overskill/launchpad/internal/pkg/cloudflare"
	"github.com/overskill/launchpad/internal/pkg/template"
)

// WorkerName is the single shared dispatch worker installed per account.
const WorkerName = "overskill-dispatch"

// previewKVTitle is the KV namespace backing live preview file updates. The
// binding on tenant scripts carries the same name.
const previewKVTitle = "PREVIEW_FILES"

// compatibilityDate pins the edge runtime feature set for uploaded scripts.
const compatibilityDate = "2024-09-23"

// edgeClient is the subset of the edge-platform client the publisher needs.
type edgeClient interface {
	EnsureDispatchNamespace(ctx context.Context, name string) error
	UploadScript(ctx context.Context, namespace, name string, script []byte, metadata cloudflare.ScriptMetadata) error
	UploadWorker(ctx context.Context, name string, script []byte, metadata cloudflare.ScriptMetadata) error
	ScriptContent(ctx context.Context, namespace, name string) ([]byte, error)
	ListScripts(ctx context.Context, namespace string) ([]cloudflare.Script, error)
	GetOrCreateKVNamespace(ctx context.Context, title string) (string, error)
	AccountSubdomain(ctx context.Context) (string, error)
	ZoneID(ctx context.Context, domain string) (string, error)
	CreateRoute(ctx context.Context, zoneID, pattern, script string) error
	ToggleWorkersDev(ctx context.Context, script string, enabled bool) error
}

// Config holds the publisher's knobs.
type Config struct {
	// RuntimeEnv labels the control-plane instance, used in namespace names.
	RuntimeEnv string
	// AppsDomain is the apex under which tenant apps are addressed, e.g.
	// "overskill.app". Empty disables subdomain routing; URLs degrade to the
	// workers.dev path scheme.
	AppsDomain string

	// Values surfaced to tenant scripts as plain-text bindings.
	APIBaseURL      string
	WebsocketURL    string
	SupabaseURL     string
	SupabaseAnonKey string
}

// Publisher installs shared infrastructure and uploads tenant scripts.
type Publisher struct {
	cfg  Config
	edge edgeClient
	tpl  *template.Template

	mu         sync.Mutex
	zoneID     string
	kvID       string
	accountSub string
	infraReady bool
}

// New returns a Publisher over the given edge-platform client.
func New(cfg Config, edge edgeClient) *Publisher {
	return &Publisher{
		cfg:  cfg,
		edge: edge,
		tpl:  template.New(),
	}
}

// Namespace returns the dispatch namespace hosting env's scripts.
func (p *Publisher) Namespace(env apps.Environment) string {
	return env.NamespaceName(p.cfg.RuntimeEnv)
}

// EnsureInfrastructure creates the per-environment dispatch namespaces, the
// preview KV namespace, and the shared dispatch worker. Every step is
// idempotent; "already exists" responses count as success. After one full
// pass succeeds, later calls on the same Publisher return immediately.
func (p *Publisher) EnsureInfrastructure(ctx context.Context) error {
	p.mu.Lock()
	ready := p.infraReady
	p.mu.Unlock()
	if ready {
		return nil
	}

	for _, env := range apps.Environments {
		if err := p.edge.EnsureDispatchNamespace(ctx, p.Namespace(env)); err != nil {
			return fmt.Errorf("ensure namespace for %s: %w", env, err)
		}
	}

	kvID, err := p.edge.GetOrCreateKVNamespace(ctx, previewKVTitle)
	if err != nil {
		return fmt.Errorf("ensure preview KV namespace: %w", err)
	}
	p.mu.Lock()
	p.kvID = kvID
	p.mu.Unlock()

	worker, err := p.tpl.Parse(template.DispatchWorkerPath, map[string]string{
		"AppsDomain": p.cfg.AppsDomain,
	})
	if err != nil {
		return fmt.Errorf("render dispatch worker: %w", err)
	}
	bindings := make([]cloudflare.Binding, 0, len(apps.Environments))
	for _, env := range apps.Environments {
		bindings = append(bindings, cloudflare.Binding{
			Type:      "dispatch_namespace",
			Name:      "NAMESPACE_" + strings.ToUpper(string(env)),
			Namespace: p.Namespace(env),
		})
	}
	metadata := cloudflare.ScriptMetadata{
		CompatibilityDate: compatibilityDate,
		Tags:              []string{"dispatch"},
		Bindings:          bindings,
	}
	if err := p.edge.UploadWorker(ctx, WorkerName, worker.Bytes(), metadata); err != nil {
		return fmt.Errorf("install dispatch worker: %w", err)
	}

	// With no apps domain every public URL is path-style through the
	// dispatch worker's workers.dev host, so that host must answer.
	if p.cfg.AppsDomain == "" {
		if err := p.edge.ToggleWorkersDev(ctx, WorkerName, true); err != nil {
			return fmt.Errorf("enable workers.dev for %s: %w", WorkerName, err)
		}
	}

	p.mu.Lock()
	p.infraReady = true
	p.mu.Unlock()
	return nil
}

// PublishInfo carries the per-deploy values surfaced to tenant bindings.
type PublishInfo struct {
	Version         string
	BuildTimestamp  string
	DevelopmentMode bool
	HMREnabled      bool
	// Extra holds per-app variables from the manifest, overriding the
	// defaults of the same name. Deny-listed names are still dropped.
	Extra map[string]string
}

// PublishResult reports where a published script ended up.
type PublishResult struct {
	ScriptName string
	Namespace  string
	URL        string
	// Routed reports whether the subdomain route exists; when false the URL
	// falls back to the workers.dev path scheme.
	Routed bool
}

// PublishScript uploads the compiled script into env's namespace with the
// full binding set, then registers the per-app route. A route failure never
// fails the publish; the result degrades to the path-style URL.
func (p *Publisher) PublishScript(ctx context.Context, app *apps.App, env apps.Environment, script []byte, info PublishInfo) (*PublishResult, error) {
	name := app.ScriptName(env)
	namespace := p.Namespace(env)

	bindings, err := p.composeBindings(ctx, app, env, info)
	if err != nil {
		return nil, err
	}
	metadata := cloudflare.ScriptMetadata{
		CompatibilityDate: compatibilityDate,
		Tags:              []string{app.PublicID, string(env)},
		Bindings:          bindings,
	}
	if err := p.edge.UploadScript(ctx, namespace, name, script, metadata); err != nil {
		return nil, fmt.Errorf("upload script %s to %s: %w", name, namespace, err)
	}

	result := &PublishResult{ScriptName: name, Namespace: namespace}
	result.Routed = p.ensureRoute(ctx, name, env)
	if result.Routed {
		result.URL = p.SubdomainURL(app, env)
	} else {
		url, err := p.PathURL(ctx, app, env)
		if err != nil {
			return nil, err
		}
		result.URL = url
	}
	return result, nil
}

// Promote copies env's compiled script bytes into target without a rebuild,
// re-deriving the binding set for the target environment.
func (p *Publisher) Promote(ctx context.Context, app *apps.App, from, to apps.Environment, info PublishInfo) (*PublishResult, []byte, error) {
	if !from.CanPromoteTo(to) {
		return nil, nil, fmt.Errorf("cannot promote from %s to %s", from, to)
	}
	script, err := p.edge.ScriptContent(ctx, p.Namespace(from), app.ScriptName(from))
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s script for promotion: %w", from, err)
	}
	result, err := p.PublishScript(ctx, app, to, script, info)
	if err != nil {
		return nil, nil, err
	}
	return result, script, nil
}

// EnsureRoute registers env's per-app route at the shared dispatch worker
// and returns the public URL it serves. When no route can be registered the
// URL degrades to the workers.dev path scheme. CI uploads scripts straight
// into the dispatch namespace, so this is what makes a deployed script
// reachable.
func (p *Publisher) EnsureRoute(ctx context.Context, app *apps.App, env apps.Environment) (string, error) {
	if p.ensureRoute(ctx, app.ScriptName(env), env) {
		return p.SubdomainURL(app, env), nil
	}
	return p.PathURL(ctx, app, env)
}

// LiveScripts lists the scripts currently stored in env's namespace.
func (p *Publisher) LiveScripts(ctx context.Context, env apps.Environment) ([]cloudflare.Script, error) {
	return p.edge.ListScripts(ctx, p.Namespace(env))
}

// ensureRoute registers the single per-app route pattern pointing at the
// shared dispatch worker. Failures are tolerated: existing DNS for reserved
// names must never block a deploy.
func (p *Publisher) ensureRoute(ctx context.Context, scriptName string, env apps.Environment) bool {
	if p.cfg.AppsDomain == "" {
		return false
	}
	zoneID, err := p.zone(ctx)
	if err != nil {
		return false
	}
	pattern := fmt.Sprintf("%s%s.%s/*", env.HostPrefix(), scriptName, p.cfg.AppsDomain)
	if err := p.edge.CreateRoute(ctx, zoneID, pattern, WorkerName); err != nil {
		return false
	}
	return true
}

// zone resolves and caches the apps-domain zone id.
func (p *Publisher) zone(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.zoneID != "" {
		return p.zoneID, nil
	}
	id, err := p.edge.ZoneID(ctx, p.cfg.AppsDomain)
	if err != nil {
		return "", err
	}
	p.zoneID = id
	return id, nil
}

// previewKV resolves and caches the preview KV namespace id.
func (p *Publisher) previewKV(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.kvID != "" {
		return p.kvID, nil
	}
	id, err := p.edge.GetOrCreateKVNamespace(ctx, previewKVTitle)
	if err != nil {
		return "", err
	}
	p.kvID = id
	return id, nil
}
