// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package cli contains the launchpad subcommands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/overskill/launchpad/internal/pkg/apps"
	"github.com/overskill/launchpad/internal/pkg/cloudflare"
	"github.com/overskill/launchpad/internal/pkg/config"
	"github.com/overskill/launchpad/internal/pkg/deploy"
	"github.com/overskill/launchpad/internal/pkg/dispatch"
	"github.com/overskill/launchpad/internal/pkg/github"
	"github.com/overskill/launchpad/internal/pkg/github/credentials"
	"github.com/overskill/launchpad/internal/pkg/repo"
	"github.com/overskill/launchpad/internal/pkg/state"
	"github.com/overskill/launchpad/internal/pkg/term/prompt"
	"github.com/overskill/launchpad/internal/pkg/workspace"
)

// GlobalOpts holds fields that are used across multiple commands.
type GlobalOpts struct {
	workspaceDir string
	prompt       prompter
}

// NewGlobalOpts returns a GlobalOpts with an interactive prompter.
func NewGlobalOpts() *GlobalOpts {
	return &GlobalOpts{
		workspaceDir: ".",
		prompt:       prompt.New(),
	}
}

type prompter interface {
	Get(message, help string, validator prompt.ValidatorFunc, promptOpts ...prompt.Option) (string, error)
	Confirm(message, help string, promptOpts ...prompt.Option) (bool, error)
}

// deps bundles the clients every command wires against production services.
// Commands pick the subset they need; tests substitute doubles instead.
type deps struct {
	cfg     *config.Config
	source  *github.Client
	edgeAPI *cloudflare.Client
	edge    *dispatch.Publisher
	store   *state.Store

	orchestrator *repo.Orchestrator
	coordinator  *deploy.Coordinator
}

// buildDeps loads the configuration and connects every production client.
func buildDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	provider, err := credentials.New(cfg.GitHubAppID, cfg.GitHubPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("configure source host credentials: %w", err)
	}
	source, err := github.New(provider, cfg.GitHubOrg)
	if err != nil {
		return nil, fmt.Errorf("connect to source host: %w", err)
	}
	edgeAPI := cloudflare.New(cfg.CloudflareAccountID, cfg.CloudflareAPIToken)
	edge := dispatch.New(dispatch.Config{
		RuntimeEnv:      cfg.RuntimeEnv,
		AppsDomain:      cfg.AppsDomain,
		APIBaseURL:      cfg.APIBaseURL,
		SupabaseURL:     cfg.SupabaseURL,
		SupabaseAnonKey: cfg.SupabaseAnonKey,
	}, edgeAPI)
	store, err := state.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to deployment store: %w", err)
	}

	mode := repo.ModeNewRepo
	if cfg.TemplateRepo != "" {
		mode = repo.ModeFork
	}
	orchestrator := repo.New(repo.Config{
		Mode:                mode,
		TemplateRepo:        cfg.TemplateRepo,
		RuntimeEnv:          cfg.RuntimeEnv,
		SupabaseURL:         cfg.SupabaseURL,
		SupabaseAnonKey:     cfg.SupabaseAnonKey,
		CloudflareAPIToken:  cfg.CloudflareAPIToken,
		CloudflareAccountID: cfg.CloudflareAccountID,
	}, source)

	return &deps{
		cfg:          cfg,
		source:       source,
		edgeAPI:      edgeAPI,
		edge:         edge,
		store:        store,
		orchestrator: orchestrator,
		coordinator:  deploy.New(orchestrator, source, edge, store),
	}, nil
}

// loadWorkspaceApp reads the manifest in dir and returns the app it describes
// together with the workspace for file collection.
func loadWorkspaceApp(dir string) (*workspace.Workspace, *apps.App, *workspace.Manifest, error) {
	ws, err := workspace.New(dir)
	if err != nil {
		return nil, nil, nil, err
	}
	manifest, err := ws.Manifest()
	if err != nil {
		return nil, nil, nil, err
	}
	return ws, manifest.App(), manifest, nil
}

// runCmdE wraps a cobra run function so that typing "help" as the only
// argument prints the usage string instead of running the command.
func runCmdE(f func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 && args[0] == "help" {
			_ = cmd.Help() // Help always returns nil.
			os.Exit(0)
		}
		return f(cmd, args)
	}
}

func parseEnv(name string) (apps.Environment, error) {
	env := apps.Environment(name)
	if !env.IsValid() {
		return "", fmt.Errorf("environment %q must be one of preview, staging, or production", name)
	}
	return env, nil
}
