// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package describe renders the deployment state of an app for humans and
// machines.
package describe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/overskill/launchpad/internal/pkg/apps"
	"github.com/overskill/launchpad/internal/pkg/cloudflare"
	"github.com/overskill/launchpad/internal/pkg/state"
	"github.com/overskill/launchpad/internal/pkg/term/color"
)

// Environment states surfaced to callers.
const (
	stateDeployed    = "deployed"
	stateNotDeployed = "not_deployed"
	stateFailed      = "failed"
)

// analyticsWindow is how far back the optional traffic figures reach.
const analyticsWindow = 24 * time.Hour

const (
	minCellWidth           = 20
	tabWidth               = 4
	cellPaddingWidth       = 2
	paddingChar            = ' '
	noAdditionalFormatting = 0
)

type deploymentGetter interface {
	StatusByEnv(ctx context.Context, appID string) (map[apps.Environment]state.EnvStatus, error)
	LatestVersion(ctx context.Context, appID string) (*state.AppVersion, error)
}

type scriptLister interface {
	LiveScripts(ctx context.Context, env apps.Environment) ([]cloudflare.Script, error)
}

// AnalyticsGetter fetches edge traffic figures for the analytics section.
type AnalyticsGetter interface {
	WorkersAnalytics(ctx context.Context, start, end time.Time, sampling float64) ([]cloudflare.AnalyticsDatum, error)
}

// AppStatusDescriber joins the deployment store's view of an app with what
// is actually live on the edge platform.
type AppStatusDescriber struct {
	app *apps.App

	store     deploymentGetter
	edge      scriptLister
	analytics AnalyticsGetter

	now func() time.Time
}

// NewAppStatusDescriber returns a describer for the given app. analytics may
// be nil to skip traffic figures.
func NewAppStatusDescriber(app *apps.App, store deploymentGetter, edge scriptLister, analytics AnalyticsGetter) *AppStatusDescriber {
	return &AppStatusDescriber{
		app:       app,
		store:     store,
		edge:      edge,
		analytics: analytics,
		now:       time.Now,
	}
}

// EnvStatus is one environment's row of the status report.
type EnvStatus struct {
	Environment string `json:"environment"`
	Status      string `json:"status"`
	URL         string `json:"url,omitempty"`
	// Live reports whether a script for the app is currently stored in the
	// environment's namespace, independent of what the store believes.
	Live           bool       `json:"live"`
	LastDeployedAt *time.Time `json:"lastDeployedAt,omitempty"`
}

// AppStatus is the full status report of one app.
type AppStatus struct {
	AppID         string                     `json:"appId"`
	Name          string                     `json:"name"`
	LatestVersion string                     `json:"latestVersion,omitempty"`
	Environments  []EnvStatus                `json:"environments"`
	Analytics     []cloudflare.AnalyticsDatum `json:"analytics,omitempty"`
}

// Describe gathers the report, fanning out one edge lookup per environment.
func (d *AppStatusDescriber) Describe(ctx context.Context) (*AppStatus, error) {
	statuses, err := d.store.StatusByEnv(ctx, d.app.PublicID)
	if err != nil {
		return nil, fmt.Errorf("status of app %s: %w", d.app.PublicID, err)
	}

	liveByEnv := make([]bool, len(apps.Environments))
	g, gctx := errgroup.WithContext(ctx)
	for i, env := range apps.Environments {
		i, env := i, env
		g.Go(func() error {
			scripts, err := d.edge.LiveScripts(gctx, env)
			if err != nil {
				return fmt.Errorf("list %s scripts: %w", env, err)
			}
			name := d.app.ScriptName(env)
			for _, s := range scripts {
				if s.Name == name {
					liveByEnv[i] = true
					break
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	live := make(map[apps.Environment]bool, len(apps.Environments))
	for i, env := range apps.Environments {
		live[env] = liveByEnv[i]
	}

	report := &AppStatus{AppID: d.app.PublicID, Name: d.app.Name}
	for _, env := range apps.Environments {
		row := EnvStatus{Environment: string(env), Status: stateNotDeployed, Live: live[env]}
		if s, ok := statuses[env]; ok {
			switch s.Status {
			case state.StatusDeployed:
				row.Status = stateDeployed
				row.URL = s.URL
				t := s.LastDeployed
				row.LastDeployedAt = &t
			case state.StatusFailed:
				row.Status = stateFailed
			}
		}
		report.Environments = append(report.Environments, row)
	}

	if version, err := d.store.LatestVersion(ctx, d.app.PublicID); err == nil && version != nil {
		report.LatestVersion = version.VersionNumber
	}

	if d.analytics != nil {
		end := d.now()
		data, err := d.analytics.WorkersAnalytics(ctx, end.Add(-analyticsWindow), end, 1)
		if err != nil {
			return nil, fmt.Errorf("analytics for app %s: %w", d.app.PublicID, err)
		}
		names := make(map[string]bool, len(apps.Environments))
		for _, env := range apps.Environments {
			names[d.app.ScriptName(env)] = true
		}
		for _, datum := range data {
			if names[datum.ScriptName] {
				report.Analytics = append(report.Analytics, datum)
			}
		}
	}
	return report, nil
}

// JSONString returns the stringified AppStatus struct in json format.
func (a *AppStatus) JSONString() (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal app status: %w", err)
	}
	return fmt.Sprintf("%s\n", b), nil
}

// HumanString returns the stringified AppStatus struct in human-readable
// format.
func (a *AppStatus) HumanString() string {
	var b bytes.Buffer
	writer := tabwriter.NewWriter(&b, minCellWidth, tabWidth, cellPaddingWidth, paddingChar, noAdditionalFormatting)
	fmt.Fprint(writer, color.Emphasize("About\n\n"))
	writer.Flush()
	fmt.Fprintf(writer, "  %s\t%s\n", "App", a.Name)
	fmt.Fprintf(writer, "  %s\t%s\n", "ID", a.AppID)
	if a.LatestVersion != "" {
		fmt.Fprintf(writer, "  %s\t%s\n", "Version", a.LatestVersion)
	}
	writer.Flush()

	fmt.Fprint(writer, color.Emphasize("\nEnvironments\n\n"))
	writer.Flush()
	headers := []string{"Environment", "Status", "URL", "Last Deploy"}
	fmt.Fprintf(writer, "  %s\n", tabbed(headers))
	fmt.Fprintf(writer, "  %s\n", tabbed(underline(headers)))
	for _, env := range a.Environments {
		lastDeploy := "-"
		if env.LastDeployedAt != nil {
			lastDeploy = humanize.Time(*env.LastDeployedAt)
		}
		url := env.URL
		if url == "" {
			url = "-"
		}
		fmt.Fprintf(writer, "  %s\t%s\t%s\t%s\n", env.Environment, statusColor(env), url, lastDeploy)
	}
	writer.Flush()

	if len(a.Analytics) > 0 {
		fmt.Fprint(writer, color.Emphasize("\nTraffic (24h)\n\n"))
		writer.Flush()
		headers := []string{"Script", "Requests", "Errors", "CPU p50"}
		fmt.Fprintf(writer, "  %s\n", tabbed(headers))
		fmt.Fprintf(writer, "  %s\n", tabbed(underline(headers)))
		for _, datum := range a.Analytics {
			fmt.Fprintf(writer, "  %s\t%d\t%d\t%.2fms\n", datum.ScriptName, datum.Requests, datum.Errors, datum.CPUTimeP50)
		}
		writer.Flush()
	}
	return b.String()
}

func statusColor(env EnvStatus) string {
	switch env.Status {
	case stateDeployed:
		if !env.Live {
			return color.Yellow.Sprint("deployed (script missing)")
		}
		return color.Green.Sprint(stateDeployed)
	case stateFailed:
		return color.Red.Sprint(stateFailed)
	default:
		return color.Faint.Sprint(stateNotDeployed)
	}
}

func tabbed(cells []string) string {
	out := ""
	for i, c := range cells {
		if i > 0 {
			out += "\t"
		}
		out += c
	}
	return out
}

func underline(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		line := ""
		for range h {
			line += "-"
		}
		out[i] = line
	}
	return out
}
