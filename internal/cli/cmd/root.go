// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package cmd assembles Commodore's cobra command tree: one constructor
// per command, wired together by a root builder that owns the shared
// collaborators.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/projectsyn/commodore/internal/cachedb"
	"github.com/projectsyn/commodore/internal/config"
	"github.com/projectsyn/commodore/internal/gitcache"
	"github.com/projectsyn/commodore/internal/lieutenant"
	"github.com/projectsyn/commodore/internal/logging"
)

// app holds every long-lived collaborator the subcommands share, built
// once from the resolved configuration in PersistentPreRunE.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	lieutenant *lieutenant.Client
	gitCache   *gitcache.Cache
	ledger     *cachedb.Ledger
	closers    []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}

// NewRootCmd builds the "commodore" root command and its full subtree.
// version is the build-time version string passed to the compile
// command, which embeds it in catalog commit messages.
func NewRootCmd(version string) *cobra.Command {
	var configPath string
	a := &app{}

	root := &cobra.Command{
		Use:           "commodore",
		Short:         "Commodore compiles per-cluster GitOps catalogs from a reclass-style inventory.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(configPath)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.Close()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a Commodore configuration file")

	root.AddCommand(
		newCompileCmd(a, version),
		newCacheCmd(a),
		newCatalogCmd(a),
		newLoginCmd(a),
	)
	return root
}

// init resolves configuration and builds the shared collaborators. It
// is idempotent so PersistentPreRunE can run once per invocation.
func (a *app) init(configPath string) error {
	loader := config.NewLoader("COMMODORE")
	cfg, err := loader.Load(config.Default(), configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	a.cfg = cfg

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	a.logger = logger
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	ledger, err := cachedb.Open(filepath.Join(cfg.CacheDir, "ledger.db"))
	if err != nil {
		return fmt.Errorf("opening cache ledger: %w", err)
	}
	a.ledger = ledger
	a.closers = append(a.closers, ledger.Close)

	a.gitCache = gitcache.New(
		filepath.Join(cfg.CacheDir, "repos"),
		filepath.Join(cfg.WorkingDir, "dependencies"),
		ledger,
		logger,
	)

	a.lieutenant = lieutenant.New(cfg.APIURL, cfg.APIToken, time.Duration(cfg.LieutenantTimeout)*time.Second)
	return nil
}
