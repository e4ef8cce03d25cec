// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/overskill/launchpad/internal/pkg/term/log"
	"github.com/overskill/launchpad/internal/pkg/version"
)

// BuildVersionCmd builds the command for displaying the version.
func BuildVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number.",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := version.Version
			if v == "" {
				v = "dev"
			}
			fmt.Fprintf(log.OutputWriter, "launchpad version: %s\n", v)
			return nil
		},
	}
	return cmd
}
