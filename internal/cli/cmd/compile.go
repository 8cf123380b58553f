// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/projectsyn/commodore/internal/catalog"
	"github.com/projectsyn/commodore/internal/compile"
)

func newCompileCmd(a *app, version string) *cobra.Command {
	var (
		force            bool
		push             bool
		globalOverride   string
		tenantOverride   string
		migrateKapitan   bool
		ignoreYAMLFormat bool
	)

	cmd := &cobra.Command{
		Use:   "compile <cluster-id>",
		Short: "Compile the GitOps catalog for one cluster.",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var filters []catalog.MigrationFilter
			if migrateKapitan {
				filters = append(filters, catalog.MigrationKapitan029To030)
			}
			if ignoreYAMLFormat {
				filters = append(filters, catalog.MigrationIgnoreYAMLFormat)
			}

			compiler := &compile.Compiler{
				Config:     a.cfg,
				Lieutenant: a.lieutenant,
				GitCache:   a.gitCache,
				Logger:     a.logger,
				Version:    version,
			}
			result, err := compiler.Compile(c.Context(), compile.Options{
				ClusterID:              args[0],
				Force:                  force,
				Push:                   push,
				MigrationFilters:       filters,
				GlobalRevisionOverride: globalOverride,
				TenantRevisionOverride: tenantOverride,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(c.OutOrStdout(), "compiled %d targets, commit %s\n", len(result.Targets), result.CommitSHA)
			for _, d := range result.Diffs {
				if d.Material {
					fmt.Fprintf(c.OutOrStdout(), "  changed: %s\n", d.Path)
				}
			}
			for _, w := range result.Warnings {
				fmt.Fprintf(c.ErrOrStderr(), "warning: %s\n", w.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "discard local modifications in dependency worktrees instead of failing")
	cmd.Flags().BoolVar(&push, "push", false, "push the compiled catalog after committing")
	cmd.Flags().StringVar(&globalOverride, "global-repo-revision-override", "", "override the global config repository revision (incompatible with --push)")
	cmd.Flags().StringVar(&tenantOverride, "tenant-repo-revision-override", "", "override the tenant config repository revision (incompatible with --push)")
	cmd.Flags().BoolVar(&migrateKapitan, "migration-kapitan-0.29-to-0.30", false, "suppress diff noise from the Kapitan 0.29 to 0.30 migration")
	cmd.Flags().BoolVar(&ignoreYAMLFormat, "migration-ignore-yaml-formatting-changes", false, "treat pure YAML-formatting differences as non-material in the diff")

	return cmd
}
