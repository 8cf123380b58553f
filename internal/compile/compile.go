// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package compile wires the catalog-compiler components into a single
// control flow: fetch cluster metadata, materialize the global/tenant
// class repositories, run the
// dependency-resolution fixed point, build targets, invoke the
// templating engine, post-process, materialize secret references, and
// commit/push the catalog.
package compile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/projectsyn/commodore/internal/catalog"
	"github.com/projectsyn/commodore/internal/cerrors"
	"github.com/projectsyn/commodore/internal/config"
	"github.com/projectsyn/commodore/internal/depresolve"
	"github.com/projectsyn/commodore/internal/gitcache"
	"github.com/projectsyn/commodore/internal/inventory"
	"github.com/projectsyn/commodore/internal/lieutenant"
	"github.com/projectsyn/commodore/internal/metrics"
	"github.com/projectsyn/commodore/internal/model"
	"github.com/projectsyn/commodore/internal/postprocess"
	"github.com/projectsyn/commodore/internal/renderer"
	"github.com/projectsyn/commodore/internal/secretref"
	"github.com/projectsyn/commodore/internal/target"
)

// Compiler holds the long-lived collaborators a compile needs: process
// configuration, the Lieutenant client, and the Git Repository Cache.
type Compiler struct {
	Config     config.Config
	Lieutenant *lieutenant.Client
	GitCache   *gitcache.Cache
	Logger     *slog.Logger
	Version    string
}

// Options are the per-invocation settings a single "commodore compile"
// run carries.
type Options struct {
	ClusterID              string
	Force                  bool
	Push                   bool
	MigrationFilters       []catalog.MigrationFilter
	GlobalRevisionOverride string
	TenantRevisionOverride string
}

// Result is what a successful compile reports back to its caller (the
// CLI, in this implementation).
type Result struct {
	RunID     string
	Targets   []target.Target
	Diffs     []catalog.FileDiff
	Warnings  []cerrors.DeprecationWarning
	CommitSHA string
	Pushed    bool
}

// newRunID generates a per-compile identifier: a time-ordered UUIDv7,
// falling back to UUIDv4 if the host clock can't support it.
func newRunID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.New().String()
}

// Compile runs one full catalog compile for opts.ClusterID.
func (c *Compiler) Compile(ctx context.Context, opts Options) (*Result, error) {
	if opts.Push && (opts.GlobalRevisionOverride != "" || opts.TenantRevisionOverride != "") {
		return nil, fmt.Errorf("refusing to push: cannot combine --push with a revision override")
	}

	runID := newRunID()
	start := time.Now()
	logger := c.Logger.With("run_id", runID, "cluster", opts.ClusterID)
	logger.Info("starting catalog compile")

	result, err := c.compile(ctx, logger, runID, opts)
	if err != nil {
		metrics.ComponentsCompiled.WithLabelValues("failure").Inc()
		return nil, err
	}

	metrics.ComponentsCompiled.WithLabelValues("success").Inc()
	metrics.CompileDuration.Observe(time.Since(start).Seconds())
	for _, w := range result.Warnings {
		logger.Warn(w.String())
	}
	logger.Info("catalog compile finished", "targets", len(result.Targets), "pushed", result.Pushed)
	return result, nil
}

func (c *Compiler) compile(ctx context.Context, logger *slog.Logger, runID string, opts Options) (*Result, error) {
	descriptor, err := c.Lieutenant.GetClusterDescriptor(ctx, opts.ClusterID)
	if err != nil {
		return nil, cerrors.Config(cerrors.Context{}, "fetching cluster descriptor: %v", err)
	}
	if opts.GlobalRevisionOverride != "" {
		descriptor.GlobalGitRepoRevision = opts.GlobalRevisionOverride
	}
	if opts.TenantRevisionOverride != "" {
		descriptor.TenantGitRepoRevision = opts.TenantRevisionOverride
	}
	if err := descriptor.Validate(); err != nil {
		return nil, cerrors.Config(cerrors.Context{}, "invalid cluster descriptor: %v", err)
	}

	workDir := c.Config.WorkingDir
	classesRoot := filepath.Join(workDir, "inventory", "classes")

	layout, err := inventory.NewLayout(classesRoot)
	if err != nil {
		return nil, fmt.Errorf("creating inventory layout: %w", err)
	}
	layout.LibDir = filepath.Join(workDir, "dependencies", "lib")
	if err := layout.SeedClusterClass(descriptor); err != nil {
		return nil, fmt.Errorf("seeding cluster class: %w", err)
	}

	globalCommit, err := c.placeRootRepo(ctx, layout, "global",
		model.RepositoryHandle{RemoteURL: descriptor.GlobalGitRepoURL, Revision: descriptor.GlobalGitRepoRevision},
		opts.Force)
	if err != nil {
		return nil, err
	}
	tenantCommit, err := c.placeRootRepo(ctx, layout, descriptor.TenantID,
		model.RepositoryHandle{RemoteURL: descriptor.TenantGitRepoURL, Revision: descriptor.TenantGitRepoRevision},
		opts.Force)
	if err != nil {
		return nil, err
	}

	seeds := []string{"params.cluster", "global.commodore", descriptor.TenantID + "." + descriptor.ClusterID}
	store := inventory.FileStore{Root: classesRoot}
	resolver := depresolve.NewResolver(store, layout, c.GitCache, seeds)
	resolver.Force = opts.Force

	depResult, err := resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	warnings := collectDeprecationWarnings(depResult.Components)

	builder := target.Builder{KustomizeWrapper: c.Config.KustomizeWrapperPath}
	targets, err := builder.Build(depResult.Instances, depResult.Packages, depResult.Rendered.Parameters)
	if err != nil {
		return nil, err
	}
	metrics.TargetsRendered.Observe(float64(len(targets)))

	driver := renderer.Driver{EngineBinary: c.Config.EngineBinary}
	manifest := renderer.Manifest{
		WorkingDir:     workDir,
		LibPath:        filepath.Join(workDir, "dependencies", "lib"),
		ClassSearch:    []string{classesRoot},
		CompiledOutput: filepath.Join(workDir, "compiled"),
		Targets:        targets,
	}
	if err := driver.Render(ctx, manifest); err != nil {
		return nil, err
	}

	if err := c.postprocessAll(ctx, workDir, targets); err != nil {
		return nil, err
	}

	refsDir := filepath.Join(workDir, "refs")
	refs := secretref.Scan(depResult.Rendered.Parameters)
	backendDefaults, _ := depResult.Rendered.Parameters["secret_management"].(map[string]any)
	wanted, err := secretref.Materialize(refsDir, refs, secretref.BackendConfig{Defaults: backendDefaults})
	if err != nil {
		return nil, fmt.Errorf("materializing secret references: %w", err)
	}
	if err := secretref.PruneOrphans(refsDir, wanted); err != nil {
		return nil, fmt.Errorf("pruning orphan secret references: %w", err)
	}

	catalogPath := filepath.Join(workDir, "catalog")
	if _, err := catalog.EnsureWorktree(ctx, descriptor.CatalogURL, c.Config.CatalogBranch, catalogPath); err != nil {
		return nil, err
	}

	pipeline := catalog.Pipeline{
		WorktreePath:      catalogPath,
		AuthorName:        c.Config.Username,
		AuthorEmail:       c.Config.Usermail,
		RevisionOverrides: opts.GlobalRevisionOverride != "" || opts.TenantRevisionOverride != "",
	}
	if err := pipeline.Stage(filepath.Join(workDir, "compiled"), refsDir); err != nil {
		return nil, fmt.Errorf("staging catalog: %w", err)
	}

	files, err := pipeline.ListManifestFiles()
	if err != nil {
		return nil, fmt.Errorf("listing staged manifests: %w", err)
	}
	diffs, err := pipeline.Diff(files, opts.MigrationFilters)
	if err != nil {
		return nil, fmt.Errorf("computing catalog diff: %w", err)
	}

	meta := catalog.CompileMetadata{
		RunID:            runID,
		ClusterID:        descriptor.ClusterID,
		TenantID:         descriptor.TenantID,
		CommodoreVersion: c.Version,
		CompiledAt:       time.Now(),
	}
	commitSHA, err := pipeline.Commit(catalog.CommitMessage(meta))
	if err != nil {
		return nil, err
	}

	pushed := false
	if opts.Push {
		if err := pipeline.Push(); err != nil {
			return nil, err
		}
		pushed = true
		if c.Lieutenant != nil {
			_ = c.Lieutenant.PostCompileMeta(ctx, opts.ClusterID, lieutenant.CompileMetaInput{
				GlobalCommit:     globalCommit,
				TenantCommit:     tenantCommit,
				CommodoreVersion: c.Version,
			})
		}
	}

	return &Result{
		RunID:     runID,
		Targets:   targets,
		Diffs:     diffs,
		Warnings:  warnings,
		CommitSHA: commitSHA,
		Pushed:    pushed,
	}, nil
}

// placeRootRepo fetches a root class repository (the global defaults or
// tenant class repo) and symlinks its checkout into the inventory layout
// under classes/<name>/, the same placement rule packages get, since
// a root repo is, structurally, just another directory of
// class files.
func (c *Compiler) placeRootRepo(ctx context.Context, layout *inventory.Layout, name string, repo model.RepositoryHandle, force bool) (commitSHA string, err error) {
	if repo.RemoteURL == "" {
		return "", cerrors.Config(cerrors.Context{}, "no git repository configured for %q root class", name)
	}
	checkout, commitSHA, err := c.GitCache.EnsureWorktree(ctx, repo, name, force)
	if err != nil {
		metrics.GitFetches.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("fetching %q: %w", name, err)
	}
	metrics.GitFetches.WithLabelValues("success").Inc()
	if err := layout.PlacePackage(model.Package{Name: name, CheckoutPath: checkout}); err != nil {
		return "", err
	}
	return commitSHA, nil
}

// collectDeprecationWarnings builds the non-fatal DeprecationWarning
// list from every resolved component's constant _metadata.
func collectDeprecationWarnings(components []model.Component) []cerrors.DeprecationWarning {
	var warnings []cerrors.DeprecationWarning
	for _, comp := range components {
		if comp.Metadata.Deprecated {
			warnings = append(warnings, cerrors.DeprecationWarning{
				Component: comp.Name,
				Notice:    comp.Metadata.DeprecationNotice,
			})
		}
	}
	return warnings
}

// postprocessAll runs every instance's filter pipeline. Pipelines for
// different instances are independent and run concurrently;
// filters within one instance stay sequential (postprocess.Pipeline.Run
// already enforces that).
func (c *Compiler) postprocessAll(ctx context.Context, workDir string, targets []target.Target) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Config.GitParallelism)

	for _, t := range targets {
		t := t
		g.Go(func() error {
			filters := postprocess.ParseFilterDefs(t.Parameters)
			if len(filters) == 0 {
				return nil
			}
			pipeline := postprocess.Pipeline{
				CompiledRoot:  filepath.Join(workDir, "compiled", t.Name),
				JsonnetBinary: c.Config.JsonnetBinary,
				Instance:      t.Name,
				Component:     t.Component,
			}
			return pipeline.Run(ctx, filters)
		})
	}
	return g.Wait()
}
