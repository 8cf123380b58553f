// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCatalogCmd(a *app) *cobra.Command {
	catalog := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the local catalog compilation workspace.",
	}
	catalog.AddCommand(newCatalogCleanCmd(a))
	return catalog
}

func newCatalogCleanCmd(a *app) *cobra.Command {
	var force bool

	clean := &cobra.Command{
		Use:   "clean",
		Short: "Remove the local inventory, compiled output, and catalog worktree.",
		RunE: func(c *cobra.Command, args []string) error {
			for _, dir := range []string{"inventory", "compiled", "refs", "catalog"} {
				path := a.cfg.WorkingDir + string(os.PathSeparator) + dir
				if err := os.RemoveAll(path); err != nil {
					return fmt.Errorf("removing %s: %w", path, err)
				}
			}
			if force {
				if err := os.RemoveAll(a.cfg.WorkingDir + string(os.PathSeparator) + "dependencies"); err != nil {
					return fmt.Errorf("removing dependencies: %w", err)
				}
			}
			fmt.Fprintln(c.OutOrStdout(), "catalog workspace cleaned")
			return nil
		},
	}
	clean.Flags().BoolVar(&force, "force", false, "also remove the fetched dependency worktrees")
	return clean
}
