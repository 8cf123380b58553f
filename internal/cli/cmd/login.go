// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/projectsyn/commodore/internal/lieutenant"
)

func newLoginCmd(a *app) *cobra.Command {
	login := &cobra.Command{
		Use:   "login",
		Short: "Inspect the Lieutenant API session.",
	}
	login.AddCommand(newLoginStatusCmd(a))
	return login
}

func newLoginStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the subject and expiry of the configured API token.",
		RunE: func(c *cobra.Command, args []string) error {
			if a.cfg.APIToken == "" {
				fmt.Fprintln(c.OutOrStdout(), "no API token configured (set COMMODORE_API_TOKEN)")
				return nil
			}

			status, err := lieutenant.InspectToken(a.cfg.APIToken)
			if err != nil {
				return fmt.Errorf("inspecting API token: %w", err)
			}

			fmt.Fprintf(c.OutOrStdout(), "API URL:  %s\n", a.cfg.APIURL)
			fmt.Fprintf(c.OutOrStdout(), "subject:  %s\n", status.Subject)
			fmt.Fprintf(c.OutOrStdout(), "issuer:   %s\n", status.Issuer)
			if status.ExpiresAt.IsZero() {
				fmt.Fprintln(c.OutOrStdout(), "expires:  never")
			} else if status.Expired {
				fmt.Fprintf(c.OutOrStdout(), "expires:  %s (expired)\n", status.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
			} else {
				fmt.Fprintf(c.OutOrStdout(), "expires:  %s\n", status.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		},
	}
}
