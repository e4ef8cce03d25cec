// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/fatih/structs"
	"github.com/imdario/mergo"

	"github.com/overskill/launchpad/internal/pkg/apps"
	"github.com/overskill/launchpad/internal/pkg/cloudflare"
)

// denyPattern rejects binding names that smell like credentials. Values with
// matching names are dropped silently; tenant scripts run untrusted code and
// must never see platform secrets.
var denyPattern = regexp.MustCompile(`SECRET|API_KEY|PASSWORD|TOKEN|PRIVATE|DATABASE_URL`)

// allowedNames are exceptions to the deny pattern: names that match it but
// are public by design.
var allowedNames = map[string]bool{
	"SUPABASE_ANON_KEY": true,
}

// platformVars are the safe platform-wide values every tenant script gets.
type platformVars struct {
	APIBaseURL  string `structs:"OVERSKILL_API_BASE_URL"`
	Environment string `structs:"ENVIRONMENT"`
	AppDomain   string `structs:"APP_DOMAIN"`
	HMREnabled  string `structs:"HMR_ENABLED"`
}

// appVars are the per-app values, emitted both bare and as VITE_ mirrors so
// the build-time and runtime views agree.
type appVars struct {
	AppID           string `structs:"APP_ID"`
	AppName         string `structs:"APP_NAME"`
	AppOwnerID      string `structs:"APP_OWNER_ID"`
	SupabaseURL     string `structs:"SUPABASE_URL"`
	SupabaseAnonKey string `structs:"SUPABASE_ANON_KEY"`
	APIBaseURL      string `structs:"API_BASE_URL"`
	WebsocketURL    string `structs:"WEBSOCKET_URL"`
	BuildTimestamp  string `structs:"BUILD_TIMESTAMP"`
	Version         string `structs:"VERSION"`
	AppNamespace    string `structs:"APP_NAMESPACE"`
	TenantID        string `structs:"TENANT_ID"`
	DevelopmentMode string `structs:"DEVELOPMENT_MODE"`
}

// composeBindings builds the ordered binding list for a tenant script: the
// preview KV namespace first, then platform vars, then per-app vars with
// their VITE_ mirrors.
func (p *Publisher) composeBindings(ctx context.Context, app *apps.App, env apps.Environment, info PublishInfo) ([]cloudflare.Binding, error) {
	kvID, err := p.previewKV(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve preview KV namespace: %w", err)
	}
	bindings := []cloudflare.Binding{{
		Type:        "kv_namespace",
		Name:        previewKVTitle,
		NamespaceID: kvID,
	}}

	platform := structs.Map(platformVars{
		APIBaseURL:  p.cfg.APIBaseURL,
		Environment: string(env),
		AppDomain:   p.cfg.AppsDomain,
		HMREnabled:  boolVar(info.HMREnabled),
	})
	for _, name := range sortedVarNames(platform) {
		bindings = appendVar(bindings, name, platform[name].(string))
	}

	perApp := structs.Map(appVars{
		AppID:           app.PublicID,
		AppName:         app.Name,
		AppOwnerID:      app.TeamID,
		SupabaseURL:     p.cfg.SupabaseURL,
		SupabaseAnonKey: p.cfg.SupabaseAnonKey,
		APIBaseURL:      p.cfg.APIBaseURL,
		WebsocketURL:    p.cfg.WebsocketURL,
		BuildTimestamp:  info.BuildTimestamp,
		Version:         info.Version,
		AppNamespace:    p.Namespace(env),
		TenantID:        app.TeamID,
		DevelopmentMode: boolVar(info.DevelopmentMode),
	})
	if err := mergo.Merge(&perApp, extraVars(info), mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge app variables: %w", err)
	}
	for _, name := range sortedVarNames(perApp) {
		value := perApp[name].(string)
		bindings = appendVar(bindings, name, value)
		bindings = appendVar(bindings, "VITE_"+name, value)
	}
	return bindings, nil
}

// appendVar adds one plain-text binding unless its name is deny-listed.
func appendVar(bindings []cloudflare.Binding, name, value string) []cloudflare.Binding {
	if denied(name) {
		return bindings
	}
	return append(bindings, cloudflare.Binding{Type: "plain_text", Name: name, Text: value})
}

// denied reports whether a binding name is excluded by the credential
// deny-list. VITE_ mirrors inherit the decision of their bare name.
func denied(name string) bool {
	bare := name
	if len(bare) > 5 && bare[:5] == "VITE_" {
		bare = bare[5:]
	}
	if allowedNames[bare] {
		return false
	}
	return denyPattern.MatchString(bare)
}

func sortedVarNames(vars map[string]interface{}) []string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// extraVars converts the per-deploy overrides into a mergeable map.
func extraVars(info PublishInfo) map[string]interface{} {
	out := make(map[string]interface{}, len(info.Extra))
	for name, value := range info.Extra {
		out[name] = value
	}
	return out
}

func boolVar(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
