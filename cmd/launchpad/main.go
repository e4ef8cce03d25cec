// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package main contains the root command.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/overskill/launchpad/internal/pkg/cli"
	"github.com/overskill/launchpad/internal/pkg/term/log"
	"github.com/overskill/launchpad/internal/pkg/version"
)

func init() {
	cobra.EnableCommandSorting = false // Maintain the order in which we add commands.
}

func main() {
	cmd := buildRootCmd()
	if err := cmd.Execute(); err != nil {
		log.Errorln(err.Error())
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launchpad",
		Short: "Publish tenant apps to the edge platform.",
		Example: `
  Displays the help menu for the "deploy" command.
  /code $ launchpad deploy --help`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// If we don't set a Run() function the help menu doesn't show up.
			// See https://github.com/spf13/cobra/issues/790
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(log.OutputWriter)
	cmd.SetErr(log.DiagnosticWriter)

	// Sets version for --version flag. Version command gives more detailed
	// version information.
	cmd.Version = version.Version
	cmd.SetVersionTemplate("launchpad version: {{.Version}}\n")

	// "Release" command group.
	cmd.AddCommand(cli.BuildDeployCmd())
	cmd.AddCommand(cli.BuildPromoteCmd())
	cmd.AddCommand(cli.BuildRestoreCmd())

	// "Settings" command group.
	cmd.AddCommand(cli.BuildStatusCmd())
	cmd.AddCommand(cli.BuildVersionCmd())

	return cmd
}
