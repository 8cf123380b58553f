// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package depresolve implements the dependency resolver: the
// fixed-point discovery of packages, components, and component instances
// from the rendered inventory, fetching each through the Git Repository
// Cache and feeding newly discovered classes back into the hierarchy
// before the next pass, until the known set stops growing.
package depresolve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/projectsyn/commodore/internal/appset"
	"github.com/projectsyn/commodore/internal/inventory"
	"github.com/projectsyn/commodore/internal/model"
)

// Fetcher materializes a dependency's Git worktree. github.com/projectsyn/commodore/internal/gitcache.Cache
// satisfies this interface directly.
type Fetcher interface {
	EnsureWorktree(ctx context.Context, repo model.RepositoryHandle, worktreeName string, force bool) (worktreePath, commitSHA string, err error)
}

// Result is the fully resolved dependency set for one compile.
type Result struct {
	Packages   []model.Package
	Components []model.Component
	Instances  []model.ComponentInstance
	Rendered   *inventory.Rendered
}

// Resolver drives the fixed-point discovery against a class
// Store/Layout pair and a Fetcher.
type Resolver struct {
	Store   inventory.Store
	Layout  *inventory.Layout
	Fetcher Fetcher
	Force   bool

	known      []string
	knownSet   map[string]bool
	packages   map[string]model.Package
	components map[string]model.Component
}

// NewResolver builds a Resolver seeded with the initial root classes
// (global, tenant, params.cluster, ...).
func NewResolver(store inventory.Store, layout *inventory.Layout, fetcher Fetcher, seeds []string) *Resolver {
	r := &Resolver{
		Store:      store,
		Layout:     layout,
		Fetcher:    fetcher,
		knownSet:   map[string]bool{},
		packages:   map[string]model.Package{},
		components: map[string]model.Component{},
	}
	for _, s := range seeds {
		r.addKnown(s)
	}
	return r
}

func (r *Resolver) addKnown(class string) {
	if r.knownSet[class] {
		return
	}
	r.knownSet[class] = true
	r.known = append(r.known, class)
}

func (r *Resolver) render() (*inventory.Rendered, error) {
	return inventory.Render(r.Store, r.known)
}

// depConfig reads the (url, version, path) triple for name out of the
// params.<section> map. section is "packages" or "components".
func depConfig(params map[string]any, section, name string) (url, version, path string, ok bool, err error) {
	sec, _ := params[section].(map[string]any)
	if sec == nil {
		return "", "", "", false, nil
	}
	raw, present := sec[name]
	if !present {
		return "", "", "", false, nil
	}
	entry, _ := raw.(map[string]any)
	if entry == nil {
		return "", "", "", false, nil
	}
	url, _ = entry["url"].(string)
	version, _ = entry["version"].(string)
	path, _ = entry["path"].(string)
	if version != "" && url == "" {
		return "", "", "", true, &AmbiguousVersionOverrideError{Name: name}
	}
	return url, version, path, true, nil
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Resolve runs the package fixed-point pass followed by the component
// pass, returning the fully fetched dependency set.
func (r *Resolver) Resolve(ctx context.Context) (*Result, error) {
	if err := r.resolvePackages(ctx); err != nil {
		return nil, err
	}

	instances, err := r.resolveComponents(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.validateLibraryAliases(); err != nil {
		return nil, err
	}

	rendered, err := r.render()
	if err != nil {
		return nil, err
	}

	pkgs := make([]model.Package, 0, len(r.packages))
	for _, p := range r.packages {
		pkgs = append(pkgs, p)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })

	comps := make([]model.Component, 0, len(r.components))
	for _, c := range r.components {
		comps = append(comps, c)
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i].Name < comps[j].Name })

	return &Result{Packages: pkgs, Components: comps, Instances: instances, Rendered: rendered}, nil
}

func (r *Resolver) resolvePackages(ctx context.Context) error {
	for {
		rendered, err := r.render()
		if err != nil {
			return err
		}

		apps := appset.Resolve(stringList(rendered.Parameters["applications"]))
		newPkgNames := []string{}
		for _, entry := range apps {
			name, _ := parseAppEntry(entry)
			if !strings.HasPrefix(name, "pkg.") {
				continue
			}
			pkgName := strings.TrimPrefix(name, "pkg.")
			if _, known := r.packages[pkgName]; known {
				continue
			}
			newPkgNames = append(newPkgNames, pkgName)
		}
		if len(newPkgNames) == 0 {
			return nil
		}

		sort.Strings(newPkgNames)
		for _, pkgName := range newPkgNames {
			url, version, path, ok, err := depConfig(rendered.Parameters, "packages", pkgName)
			if err != nil {
				return err
			}
			if !ok || url == "" || version == "" {
				return &UnknownDependencyError{Name: "pkg." + pkgName}
			}

			repo := model.RepositoryHandle{RemoteURL: url, Revision: version, Subpath: path}
			checkout, _, err := r.Fetcher.EnsureWorktree(ctx, repo, pkgName, r.Force)
			if err != nil {
				return fmt.Errorf("fetching package %q: %w", pkgName, err)
			}

			pkg := model.Package{Name: pkgName, Repo: repo, CheckoutPath: checkout}
			r.packages[pkgName] = pkg

			if r.Layout != nil {
				if err := r.Layout.PlacePackage(pkg); err != nil {
					return fmt.Errorf("placing package %q: %w", pkgName, err)
				}
			}
			r.addKnown(pkgName)
		}
	}
}

// appEntry is one parsed "applications" list item.
type appEntry struct {
	Component string
	Alias     string
}

func parseAppEntry(entry string) (component, alias string) {
	if idx := strings.Index(entry, " as "); idx >= 0 {
		return strings.TrimSpace(entry[:idx]), strings.TrimSpace(entry[idx+4:])
	}
	return entry, entry
}

func (r *Resolver) resolveComponents(ctx context.Context) ([]model.ComponentInstance, error) {
	rendered, err := r.render()
	if err != nil {
		return nil, err
	}

	apps := appset.Resolve(stringList(rendered.Parameters["applications"]))
	entries := make([]appEntry, 0, len(apps))
	for _, raw := range apps {
		name, alias := parseAppEntry(raw)
		if strings.HasPrefix(name, "pkg.") {
			continue
		}
		entries = append(entries, appEntry{Component: name, Alias: alias})
	}

	for _, e := range entries {
		if _, known := r.components[e.Component]; known {
			continue
		}
		url, version, path, ok, err := depConfig(rendered.Parameters, "components", e.Component)
		if err != nil {
			return nil, err
		}
		if !ok || url == "" || version == "" {
			return nil, &UnknownDependencyError{Name: e.Component}
		}

		repo := model.RepositoryHandle{RemoteURL: url, Revision: version, Subpath: path}
		checkout, _, err := r.Fetcher.EnsureWorktree(ctx, repo, e.Component, r.Force)
		if err != nil {
			return nil, fmt.Errorf("fetching component %q: %w", e.Component, err)
		}

		comp := model.Component{
			Name:               e.Component,
			Repo:               repo,
			CheckoutPath:       checkout,
			ComponentClassFile: checkout + "/class/" + e.Component + ".yml",
			DefaultsClassFile:  checkout + "/class/defaults.yml",
			JsonnetFile:        checkout + "/class/" + e.Component + ".jsonnet",
		}
		r.components[e.Component] = comp

		if r.Layout != nil {
			if err := r.Layout.PlaceComponentDefaults(comp); err != nil {
				return nil, fmt.Errorf("placing defaults for %q: %w", e.Component, err)
			}
			if err := r.Layout.PlaceComponentClass(comp); err != nil {
				return nil, fmt.Errorf("placing class for %q: %w", e.Component, err)
			}
		}
		// Defaults go ahead of the global layer (after params.cluster and
		// any defaults already placed), so the hierarchy can override them.
		if cls := "defaults." + e.Component; !r.knownSet[cls] {
			r.knownSet[cls] = true
			at := 0
			for at < len(r.known) && (r.known[at] == "params.cluster" || strings.HasPrefix(r.known[at], "defaults.")) {
				at++
			}
			r.known = append(r.known[:at], append([]string{cls}, r.known[at:]...)...)
		}
	}

	// Re-render now that every base component's defaults are in the
	// hierarchy, so metadata and per-component parameters used below
	// (e.g. multi_instance/multi_version) reflect the merged tree.
	rendered, err = r.render()
	if err != nil {
		return nil, err
	}

	compNames := make([]string, 0, len(r.components))
	for n := range r.components {
		compNames = append(compNames, n)
	}
	sort.Strings(compNames)
	for _, name := range compNames {
		comp := r.components[name]
		comp.Metadata = metadataFrom(rendered.Parameters, name)
		libs, err := discoverLibraries(comp.CheckoutPath)
		if err != nil {
			return nil, fmt.Errorf("scanning libraries of %q: %w", name, err)
		}
		comp.Libraries = libs
		r.components[name] = comp

		if r.Layout != nil {
			if err := r.Layout.PlaceComponentLibraries(comp); err != nil {
				return nil, fmt.Errorf("placing libraries for %q: %w", name, err)
			}
		}
	}

	seenInstances := map[string]bool{}
	instances := make([]model.ComponentInstance, 0, len(entries))
	for _, e := range entries {
		if seenInstances[e.Alias] {
			return nil, &DuplicateInstanceError{Instance: e.Alias}
		}
		seenInstances[e.Alias] = true

		comp := r.components[e.Component]
		inst := model.ComponentInstance{InstanceName: e.Alias, Base: &comp, CheckoutPath: comp.CheckoutPath}

		if e.Alias != e.Component && !comp.Metadata.MultiInstance {
			return nil, &InstancingNotSupportedError{Component: e.Component, Instance: e.Alias}
		}

		// An override only applies to true aliases: for an identity
		// instance the alias key is the base component's own entry.
		if e.Alias != e.Component {
			url, version, path, ok, err := depConfig(rendered.Parameters, "components", e.Alias)
			if err != nil {
				return nil, err
			}
			if ok && url != "" {
				if !comp.Metadata.MultiVersion {
					return nil, &MultiVersionNotSupportedError{Component: e.Component, Instance: e.Alias}
				}
				override := model.RepositoryHandle{RemoteURL: url, Revision: version, Subpath: path}
				checkout, _, err := r.Fetcher.EnsureWorktree(ctx, override, e.Alias, r.Force)
				if err != nil {
					return nil, fmt.Errorf("fetching instance %q: %w", e.Alias, err)
				}
				inst.RepoOverride = &override
				inst.CheckoutPath = checkout
			}
		}

		instances = append(instances, inst)
	}

	return instances, nil
}

// metadataFrom decodes the constant _metadata subtree of one
// component's rendered parameters.
func metadataFrom(params map[string]any, component string) model.ComponentMetadata {
	sub, _ := params[model.SnakeCase(component)].(map[string]any)
	meta, _ := sub["_metadata"].(map[string]any)
	out := model.ComponentMetadata{}
	if meta == nil {
		return out
	}
	out.MultiInstance, _ = meta["multi_instance"].(bool)
	out.MultiVersion, _ = meta["multi_version"].(bool)
	out.Deprecated, _ = meta["deprecated"].(bool)
	out.ReplacedBy, _ = meta["replaced_by"].(string)
	out.Replaces, _ = meta["replaces"].(string)
	out.DeprecationNotice, _ = meta["deprecation_notice"].(string)
	if aliases, ok := meta["library_aliases"].(map[string]any); ok {
		out.LibraryAliases = make(map[string]string, len(aliases))
		for k, v := range aliases {
			if s, ok := v.(string); ok {
				out.LibraryAliases[k] = s
			}
		}
	}
	return out
}

// discoverLibraries lists the component checkout's lib/ directory. A
// missing lib/ directory just means the component ships no libraries.
func discoverLibraries(checkoutPath string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(checkoutPath, "lib"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	libs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		libs = append(libs, e.Name())
	}
	sort.Strings(libs)
	return libs, nil
}

// validateLibraryAliases enforces the per-compile library-prefix rules:
// a component's libraries must be prefixed with its own name
// (or explicitly aliased), and a name may only be reused across
// components through a valid replaces/replaced_by/deprecated chain.
func (r *Resolver) validateLibraryAliases() error {
	claims := map[string]string{} // library file name -> owning component

	names := make([]string, 0, len(r.components))
	for n := range r.components {
		names = append(names, n)
	}
	sort.Strings(names)

	// A component announcing a deployed successor hands its library
	// prefix over; the successor must acknowledge the handover with a
	// matching replaces declaration, whether or not the two currently
	// ship colliding filenames.
	for _, name := range names {
		c := r.components[name]
		succName := c.Metadata.ReplacedBy
		if succName == "" || succName == c.Name {
			continue
		}
		succ, deployed := r.components[succName]
		if !deployed {
			continue
		}
		if succ.Metadata.Replaces != c.Name {
			return &LibraryPrefixConflictError{Claimant: succName, Holder: c.Name}
		}
	}

	for _, name := range names {
		c := r.components[name]
		for _, lib := range c.Libraries {
			if !c.LibraryAllowedPrefix(lib) {
				return &LibraryPrefixConflictError{File: lib, Claimant: c.Name, Holder: ""}
			}

			holderName, claimed := claims[lib]
			if !claimed {
				claims[lib] = c.Name
				continue
			}
			if holderName == c.Name {
				continue
			}

			holder, holderKnown := r.components[holderName]
			validChain := holderKnown &&
				c.Metadata.Replaces == holderName &&
				(!holderKnown || holder.Metadata.Deprecated && holder.Metadata.ReplacedBy == c.Name)
			if !validChain {
				return &LibraryPrefixConflictError{File: lib, Claimant: c.Name, Holder: holderName}
			}
			claims[lib] = c.Name
		}
	}
	return nil
}
