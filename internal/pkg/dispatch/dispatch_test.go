// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/overskill/launchpad/internal/pkg/apps"
	"github.com/overskill/launchpad/internal/pkg/cloudflare"
)

type edgeDouble struct {
	ensureDispatchNamespaceFn func(ctx context.Context, name string) error
	uploadScriptFn            func(ctx context.Context, namespace, name string, script []byte, metadata cloudflare.ScriptMetadata) error
	uploadWorkerFn            func(ctx context.Context, name string, script []byte, metadata cloudflare.ScriptMetadata) error
	scriptContentFn           func(ctx context.Context, namespace, name string) ([]byte, error)
	listScriptsFn             func(ctx context.Context, namespace string) ([]cloudflare.Script, error)
	getOrCreateKVNamespaceFn  func(ctx context.Context, title string) (string, error)
	accountSubdomainFn        func(ctx context.Context) (string, error)
	zoneIDFn                  func(ctx context.Context, domain string) (string, error)
	createRouteFn             func(ctx context.Context, zoneID, pattern, script string) error
	toggleWorkersDevFn        func(ctx context.Context, script string, enabled bool) error
}

func (d *edgeDouble) EnsureDispatchNamespace(ctx context.Context, name string) error {
	return d.ensureDispatchNamespaceFn(ctx, name)
}

func (d *edgeDouble) UploadScript(ctx context.Context, namespace, name string, script []byte, metadata cloudflare.ScriptMetadata) error {
	return d.uploadScriptFn(ctx, namespace, name, script, metadata)
}

func (d *edgeDouble) UploadWorker(ctx context.Context, name string, script []byte, metadata cloudflare.ScriptMetadata) error {
	return d.uploadWorkerFn(ctx, name, script, metadata)
}

func (d *edgeDouble) ScriptContent(ctx context.Context, namespace, name string) ([]byte, error) {
	return d.scriptContentFn(ctx, namespace, name)
}

func (d *edgeDouble) ListScripts(ctx context.Context, namespace string) ([]cloudflare.Script, error) {
	return d.listScriptsFn(ctx, namespace)
}

func (d *edgeDouble) GetOrCreateKVNamespace(ctx context.Context, title string) (string, error) {
	return d.getOrCreateKVNamespaceFn(ctx, title)
}

func (d *edgeDouble) AccountSubdomain(ctx context.Context) (string, error) {
	return d.accountSubdomainFn(ctx)
}

func (d *edgeDouble) ZoneID(ctx context.Context, domain string) (string, error) {
	return d.zoneIDFn(ctx, domain)
}

func (d *edgeDouble) CreateRoute(ctx context.Context, zoneID, pattern, script string) error {
	return d.createRouteFn(ctx, zoneID, pattern, script)
}

func (d *edgeDouble) ToggleWorkersDev(ctx context.Context, script string, enabled bool) error {
	return d.toggleWorkersDevFn(ctx, script, enabled)
}

func happyEdge() *edgeDouble {
	return &edgeDouble{
		ensureDispatchNamespaceFn: func(_ context.Context, _ string) error { return nil },
		uploadScriptFn: func(_ context.Context, _, _ string, _ []byte, _ cloudflare.ScriptMetadata) error {
			return nil
		},
		uploadWorkerFn: func(_ context.Context, _ string, _ []byte, _ cloudflare.ScriptMetadata) error {
			return nil
		},
		getOrCreateKVNamespaceFn: func(_ context.Context, _ string) (string, error) { return "kv-123", nil },
		accountSubdomainFn:       func(_ context.Context) (string, error) { return "overskill", nil },
		zoneIDFn:                 func(_ context.Context, _ string) (string, error) { return "zone-1", nil },
		createRouteFn:            func(_ context.Context, _, _, _ string) error { return nil },
		toggleWorkersDevFn:       func(_ context.Context, _ string, _ bool) error { return nil },
	}
}

func testPublisherConfig() Config {
	return Config{
		RuntimeEnv:      "production",
		AppsDomain:      "overskill.app",
		APIBaseURL:      "https://api.overskill.app",
		WebsocketURL:    "wss://ws.overskill.app",
		SupabaseURL:     "https://xyz.supabase.co",
		SupabaseAnonKey: "anon-key",
	}
}

func dispatchTestApp() *apps.App {
	return &apps.App{
		PublicID:  "Ab12Cd",
		Name:      "CountMaster",
		TeamID:    "team-9",
		Subdomain: "countmaster",
	}
}

func TestPublisher_EnsureInfrastructure(t *testing.T) {
	var (
		namespaces []string
		kvTitle    string
		workerName string
		workerMeta cloudflare.ScriptMetadata
		workerJS   string
	)
	edge := happyEdge()
	edge.ensureDispatchNamespaceFn = func(_ context.Context, name string) error {
		namespaces = append(namespaces, name)
		return nil
	}
	edge.getOrCreateKVNamespaceFn = func(_ context.Context, title string) (string, error) {
		kvTitle = title
		return "kv-123", nil
	}
	edge.uploadWorkerFn = func(_ context.Context, name string, script []byte, metadata cloudflare.ScriptMetadata) error {
		workerName = name
		workerMeta = metadata
		workerJS = string(script)
		return nil
	}

	p := New(testPublisherConfig(), edge)
	require.NoError(t, p.EnsureInfrastructure(context.Background()))

	require.Equal(t, []string{
		"overskill-production-preview",
		"overskill-production-staging",
		"overskill-production-production",
	}, namespaces)
	require.Equal(t, "PREVIEW_FILES", kvTitle)
	require.Equal(t, "overskill-dispatch", workerName)
	require.Contains(t, workerJS, `const APPS_DOMAIN = "overskill.app";`)

	require.Len(t, workerMeta.Bindings, 3)
	require.Equal(t, "NAMESPACE_PREVIEW", workerMeta.Bindings[0].Name)
	require.Equal(t, "dispatch_namespace", workerMeta.Bindings[0].Type)
	require.Equal(t, "overskill-production-preview", workerMeta.Bindings[0].Namespace)
	require.Equal(t, "NAMESPACE_PRODUCTION", workerMeta.Bindings[2].Name)
}

func TestPublisher_EnsureInfrastructure_WorkersDev(t *testing.T) {
	t.Run("enables workers.dev when no apps domain is set", func(t *testing.T) {
		var gotScript string
		var gotEnabled bool
		edge := happyEdge()
		edge.toggleWorkersDevFn = func(_ context.Context, script string, enabled bool) error {
			gotScript = script
			gotEnabled = enabled
			return nil
		}
		cfg := testPublisherConfig()
		cfg.AppsDomain = ""

		p := New(cfg, edge)
		require.NoError(t, p.EnsureInfrastructure(context.Background()))
		require.Equal(t, "overskill-dispatch", gotScript)
		require.True(t, gotEnabled)
	})

	t.Run("skips the toggle when subdomain routing is configured", func(t *testing.T) {
		edge := happyEdge()
		edge.toggleWorkersDevFn = func(_ context.Context, _ string, _ bool) error {
			t.Fatal("workers.dev should not be touched when an apps domain exists")
			return nil
		}
		p := New(testPublisherConfig(), edge)
		require.NoError(t, p.EnsureInfrastructure(context.Background()))
	})

	t.Run("surfaces toggle failures", func(t *testing.T) {
		edge := happyEdge()
		edge.toggleWorkersDevFn = func(_ context.Context, _ string, _ bool) error {
			return errors.New("api unavailable")
		}
		cfg := testPublisherConfig()
		cfg.AppsDomain = ""
		p := New(cfg, edge)
		require.ErrorContains(t, p.EnsureInfrastructure(context.Background()), "enable workers.dev")
	})
}

func TestPublisher_EnsureInfrastructure_RunsOncePerPublisher(t *testing.T) {
	var namespaceCalls, workerUploads int
	edge := happyEdge()
	edge.ensureDispatchNamespaceFn = func(_ context.Context, _ string) error {
		namespaceCalls++
		return nil
	}
	edge.uploadWorkerFn = func(_ context.Context, _ string, _ []byte, _ cloudflare.ScriptMetadata) error {
		workerUploads++
		return nil
	}

	p := New(testPublisherConfig(), edge)
	require.NoError(t, p.EnsureInfrastructure(context.Background()))
	require.NoError(t, p.EnsureInfrastructure(context.Background()))

	require.Equal(t, len(apps.Environments), namespaceCalls)
	require.Equal(t, 1, workerUploads)
}

func TestPublisher_EnsureRoute(t *testing.T) {
	t.Run("registers the per-app route and returns the subdomain URL", func(t *testing.T) {
		var gotPattern, gotScript string
		edge := happyEdge()
		edge.createRouteFn = func(_ context.Context, zoneID, pattern, script string) error {
			require.Equal(t, "zone-1", zoneID)
			gotPattern = pattern
			gotScript = script
			return nil
		}

		p := New(testPublisherConfig(), edge)
		url, err := p.EnsureRoute(context.Background(), dispatchTestApp(), apps.EnvStaging)
		require.NoError(t, err)
		require.Equal(t, "staging-ab12cd.overskill.app/*", gotPattern)
		require.Equal(t, "overskill-dispatch", gotScript)
		require.Equal(t, "https://staging-ab12cd.overskill.app", url)
	})

	t.Run("route failure degrades to the path URL", func(t *testing.T) {
		edge := happyEdge()
		edge.createRouteFn = func(_ context.Context, _, _, _ string) error {
			return errors.New("route conflicts with existing DNS")
		}
		p := New(testPublisherConfig(), edge)
		url, err := p.EnsureRoute(context.Background(), dispatchTestApp(), apps.EnvPreview)
		require.NoError(t, err)
		require.Equal(t, "https://overskill-dispatch.overskill.workers.dev/app/preview-ab12cd", url)
	})

	t.Run("no apps domain always uses the path URL", func(t *testing.T) {
		edge := happyEdge()
		edge.createRouteFn = func(_ context.Context, _, _, _ string) error {
			t.Fatal("no route should be registered without an apps domain")
			return nil
		}
		cfg := testPublisherConfig()
		cfg.AppsDomain = ""
		p := New(cfg, edge)
		url, err := p.EnsureRoute(context.Background(), dispatchTestApp(), apps.EnvProduction)
		require.NoError(t, err)
		require.Equal(t, "https://overskill-dispatch.overskill.workers.dev/app/countmaster", url)
	})
}

func TestPublisher_PublishScript(t *testing.T) {
	t.Run("uploads with the full binding set and routes", func(t *testing.T) {
		var (
			gotNamespace string
			gotName      string
			gotMeta      cloudflare.ScriptMetadata
			gotPattern   string
		)
		edge := happyEdge()
		edge.uploadScriptFn = func(_ context.Context, namespace, name string, _ []byte, metadata cloudflare.ScriptMetadata) error {
			gotNamespace = namespace
			gotName = name
			gotMeta = metadata
			return nil
		}
		edge.createRouteFn = func(_ context.Context, zoneID, pattern, script string) error {
			require.Equal(t, "zone-1", zoneID)
			require.Equal(t, "overskill-dispatch", script)
			gotPattern = pattern
			return nil
		}

		p := New(testPublisherConfig(), edge)
		result, err := p.PublishScript(context.Background(), dispatchTestApp(), apps.EnvStaging, []byte("export default {}"), PublishInfo{
			Version:        "1.2.3",
			BuildTimestamp: "2024-05-14T09:30:00Z",
		})
		require.NoError(t, err)

		require.Equal(t, "ab12cd", gotName, "staging uses the lowercased public id")
		require.Equal(t, "overskill-production-staging", gotNamespace)
		require.Equal(t, "staging-ab12cd.overskill.app/*", gotPattern)
		require.True(t, result.Routed)
		require.Equal(t, "https://staging-ab12cd.overskill.app", result.URL)

		// KV binding leads, platform vars follow, per-app vars trail with
		// VITE_ mirrors.
		require.Equal(t, cloudflare.Binding{Type: "kv_namespace", Name: "PREVIEW_FILES", NamespaceID: "kv-123"}, gotMeta.Bindings[0])

		byName := make(map[string]string)
		for _, b := range gotMeta.Bindings[1:] {
			require.Equal(t, "plain_text", b.Type)
			byName[b.Name] = b.Text
		}
		require.Equal(t, "staging", byName["ENVIRONMENT"])
		require.Equal(t, "overskill.app", byName["APP_DOMAIN"])
		require.Equal(t, "https://api.overskill.app", byName["OVERSKILL_API_BASE_URL"])
		require.Equal(t, "false", byName["HMR_ENABLED"])
		require.Equal(t, "Ab12Cd", byName["APP_ID"])
		require.Equal(t, "CountMaster", byName["APP_NAME"])
		require.Equal(t, "team-9", byName["TENANT_ID"])
		require.Equal(t, "1.2.3", byName["VERSION"])
		require.Equal(t, "overskill-production-staging", byName["APP_NAMESPACE"])
		require.Equal(t, "anon-key", byName["SUPABASE_ANON_KEY"])
		for name, value := range byName {
			if strings.HasPrefix(name, "VITE_") {
				continue
			}
			switch name {
			case "OVERSKILL_API_BASE_URL", "ENVIRONMENT", "APP_DOMAIN", "HMR_ENABLED":
				continue
			}
			require.Equal(t, value, byName["VITE_"+name], "missing or diverging mirror for %s", name)
		}
	})

	t.Run("production uses the subdomain slug", func(t *testing.T) {
		var gotName string
		edge := happyEdge()
		edge.uploadScriptFn = func(_ context.Context, _, name string, _ []byte, _ cloudflare.ScriptMetadata) error {
			gotName = name
			return nil
		}
		p := New(testPublisherConfig(), edge)
		result, err := p.PublishScript(context.Background(), dispatchTestApp(), apps.EnvProduction, []byte("x"), PublishInfo{})
		require.NoError(t, err)
		require.Equal(t, "countmaster", gotName)
		require.Equal(t, "https://countmaster.overskill.app", result.URL)
	})

	t.Run("route failure degrades to the path URL", func(t *testing.T) {
		edge := happyEdge()
		edge.createRouteFn = func(_ context.Context, _, _, _ string) error {
			return errors.New("route conflicts with existing DNS")
		}
		p := New(testPublisherConfig(), edge)
		result, err := p.PublishScript(context.Background(), dispatchTestApp(), apps.EnvPreview, []byte("x"), PublishInfo{})
		require.NoError(t, err)
		require.False(t, result.Routed)
		require.Equal(t, "https://overskill-dispatch.overskill.workers.dev/app/preview-ab12cd", result.URL)
	})

	t.Run("deny-listed names never reach the script", func(t *testing.T) {
		var gotMeta cloudflare.ScriptMetadata
		edge := happyEdge()
		edge.uploadScriptFn = func(_ context.Context, _, _ string, _ []byte, metadata cloudflare.ScriptMetadata) error {
			gotMeta = metadata
			return nil
		}
		p := New(testPublisherConfig(), edge)
		_, err := p.PublishScript(context.Background(), dispatchTestApp(), apps.EnvPreview, []byte("x"), PublishInfo{
			Extra: map[string]string{
				"STRIPE_SECRET_KEY": "sk_live_123",
				"DATABASE_URL":      "postgres://",
				"CUSTOM_FLAG":       "on",
			},
		})
		require.NoError(t, err)

		names := make([]string, 0, len(gotMeta.Bindings))
		for _, b := range gotMeta.Bindings {
			names = append(names, b.Name)
		}
		require.NotContains(t, names, "STRIPE_SECRET_KEY")
		require.NotContains(t, names, "VITE_STRIPE_SECRET_KEY")
		require.NotContains(t, names, "DATABASE_URL")
		require.Contains(t, names, "CUSTOM_FLAG")
		require.Contains(t, names, "VITE_CUSTOM_FLAG")
		require.Contains(t, names, "SUPABASE_ANON_KEY")
		require.Contains(t, names, "VITE_SUPABASE_ANON_KEY")
	})
}

func TestPublisher_Promote(t *testing.T) {
	t.Run("copies bytes without a rebuild", func(t *testing.T) {
		const compiled = "export default { fetch() {} }"
		var uploaded string
		var uploadedNamespace string
		edge := happyEdge()
		edge.scriptContentFn = func(_ context.Context, namespace, name string) ([]byte, error) {
			require.Equal(t, "overskill-production-staging", namespace)
			require.Equal(t, "ab12cd", name)
			return []byte(compiled), nil
		}
		edge.uploadScriptFn = func(_ context.Context, namespace, _ string, script []byte, _ cloudflare.ScriptMetadata) error {
			uploadedNamespace = namespace
			uploaded = string(script)
			return nil
		}

		p := New(testPublisherConfig(), edge)
		result, script, err := p.Promote(context.Background(), dispatchTestApp(), apps.EnvStaging, apps.EnvProduction, PublishInfo{})
		require.NoError(t, err)
		require.Equal(t, compiled, uploaded)
		require.Equal(t, compiled, string(script))
		require.Equal(t, "overskill-production-production", uploadedNamespace)
		require.Equal(t, "https://countmaster.overskill.app", result.URL)
	})

	t.Run("rejects illegal hops", func(t *testing.T) {
		p := New(testPublisherConfig(), happyEdge())
		_, _, err := p.Promote(context.Background(), dispatchTestApp(), apps.EnvPreview, apps.EnvProduction, PublishInfo{})
		require.ErrorContains(t, err, "cannot promote")
	})
}

func TestURLRoundTrip(t *testing.T) {
	p := New(testPublisherConfig(), happyEdge())

	scripts := []string{"countmaster", "ab12cd", "my-app-7"}
	for _, script := range scripts {
		for _, env := range apps.Environments {
			app := &apps.App{PublicID: script, Subdomain: script}
			t.Run(fmt.Sprintf("%s in %s", script, env), func(t *testing.T) {
				host := fmt.Sprintf("%s%s.overskill.app", env.HostPrefix(), script)
				gotScript, gotEnv, ok := p.ParseAppHost(host)
				require.True(t, ok)
				require.Equal(t, script, gotScript)
				require.Equal(t, env, gotEnv)

				path, err := p.PathURL(context.Background(), app, env)
				require.NoError(t, err)
				pathScript, pathEnv, ok := ParseAppPath(strings.TrimPrefix(path, "https://overskill-dispatch.overskill.workers.dev"))
				require.True(t, ok)
				require.Equal(t, script, pathScript)
				require.Equal(t, env, pathEnv)
			})
		}
	}

	_, _, ok := p.ParseAppHost("other.example.com")
	require.False(t, ok)
	_, _, ok = ParseAppPath("/healthz")
	require.False(t, ok)
}
