// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"

	"github.com/projectsyn/commodore/internal/model"
)

// Layout manages the on-disk classes/ tree that the Inventory Renderer
// reads from, implementing the class placement rules:
// component defaults are symlinked under classes/defaults/ (included
// before the global layer), component classes under classes/components/
// (included only via the target), and packages under
// classes/<package>/.
type Layout struct {
	ClassesRoot string

	// LibDir is the single aggregated library search directory
	// (dependencies/lib/) every component's lib/* files are linked
	// into. Left empty, library placement is skipped.
	LibDir string
}

// NewLayout creates the classes/ directory tree rooted at classesRoot.
func NewLayout(classesRoot string) (*Layout, error) {
	for _, d := range []string{"defaults", "components"} {
		if err := os.MkdirAll(filepath.Join(classesRoot, d), 0o755); err != nil {
			return nil, err
		}
	}
	return &Layout{ClassesRoot: classesRoot}, nil
}

func symlinkReplacing(target, link string) error {
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return err
	}
	_ = os.Remove(link)
	return os.Symlink(target, link)
}

// PlaceComponentDefaults symlinks <checkout>/class/defaults.yml to
// classes/defaults/<component>.yml.
func (l *Layout) PlaceComponentDefaults(c model.Component) error {
	if c.DefaultsClassFile == "" {
		return nil
	}
	link := filepath.Join(l.ClassesRoot, "defaults", c.Name+".yml")
	return symlinkReplacing(c.DefaultsClassFile, link)
}

// PlaceComponentClass symlinks <checkout>/class/<component>.yml to
// classes/components/<component>.yml.
func (l *Layout) PlaceComponentClass(c model.Component) error {
	if c.ComponentClassFile == "" {
		return nil
	}
	link := filepath.Join(l.ClassesRoot, "components", c.Name+".yml")
	return symlinkReplacing(c.ComponentClassFile, link)
}

// PlaceComponentLibraries links every file of the component's lib/
// directory into the aggregated LibDir. Two components claiming the
// same library file name is a collision; the prefix/alias ownership
// rules are enforced separately by the dependency resolver, this only
// guards the filesystem against silent shadowing.
func (l *Layout) PlaceComponentLibraries(c model.Component) error {
	if l.LibDir == "" || len(c.Libraries) == 0 {
		return nil
	}
	if err := os.MkdirAll(l.LibDir, 0o755); err != nil {
		return err
	}
	for _, lib := range c.Libraries {
		src := filepath.Join(c.CheckoutPath, "lib", lib)
		link := filepath.Join(l.LibDir, lib)
		if existing, err := os.Readlink(link); err == nil {
			if existing == src {
				continue
			}
			return fmt.Errorf("library %q of component %q collides with already placed %q", lib, c.Name, existing)
		}
		if err := os.Symlink(src, link); err != nil {
			return err
		}
	}
	return nil
}

// PlacePackage symlinks the package's checkout directory as
// classes/<package_name>/.
func (l *Layout) PlacePackage(p model.Package) error {
	link := filepath.Join(l.ClassesRoot, p.Name)
	return symlinkReplacing(p.CheckoutPath, link)
}

// SeedClusterClass writes the reserved params.cluster class containing
// the cluster descriptor at lowest precedence.
func (l *Layout) SeedClusterClass(descriptor model.ClusterDescriptor) error {
	doc := map[string]any{
		"parameters": map[string]any{
			"cluster": clusterDescriptorToParams(descriptor),
		},
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal cluster class: %w", err)
	}
	path := filepath.Join(l.ClassesRoot, "params", "cluster.yml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func clusterDescriptorToParams(d model.ClusterDescriptor) map[string]any {
	facts := map[string]any{
		"cloud":        d.Facts.Cloud,
		"distribution": d.Facts.Distribution,
	}
	if d.Facts.Region != "" {
		facts["region"] = d.Facts.Region
	}
	params := map[string]any{
		"name":                d.ClusterID,
		"tenant":              d.TenantID,
		"display_name":        d.DisplayName,
		"tenant_display_name": d.TenantDisplayName,
		"catalog_url":         d.CatalogURL,
		"facts":               facts,
	}
	if len(d.DynamicFacts) > 0 {
		params["dynamic_facts"] = d.DynamicFacts
	}
	return params
}
