// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(a *app) *cobra.Command {
	cache := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the Git Repository Cache.",
	}
	cache.AddCommand(newCacheListCmd(a))
	return cache
}

func newCacheListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every bare clone known to the cache ledger.",
		RunE: func(c *cobra.Command, args []string) error {
			records, err := a.ledger.List()
			if err != nil {
				return fmt.Errorf("listing cache ledger: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(c.OutOrStdout(), "cache is empty")
				return nil
			}
			for _, r := range records {
				fmt.Fprintf(c.OutOrStdout(), "%s\n  path:          %s\n  last fetched:  %s\n  last commit:   %s\n",
					r.CanonicalURL, r.BarePath, r.LastFetchAt.Format("2006-01-02T15:04:05Z07:00"), r.LastCommit)
			}
			return nil
		},
	}
}
