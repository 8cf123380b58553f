// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package postprocess implements the post-processing engine: a
// per-instance sequence of filters applied to the renderer's output
// tree. Builtin filters mutate unstructured.Unstructured objects in
// place and rewrite the manifest files on disk.
package postprocess

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"

	"github.com/projectsyn/commodore/internal/cerrors"
	"github.com/projectsyn/commodore/internal/metrics"
)

// FilterType distinguishes builtin Go filters from externally invoked
// Jsonnet filters.
type FilterType string

const (
	FilterBuiltin FilterType = "builtin"
	FilterJsonnet FilterType = "jsonnet"
)

// FilterDef is one entry of parameters.commodore.postprocess.filters.
type FilterDef struct {
	Type       FilterType
	Path       string
	Filter     string
	Enabled    bool
	FilterArgs map[string]any
}

// BuiltinFunc implements a builtin filter: it is handed every object
// loaded from FilterDef.Path and mutates the slice in place (or returns
// a replacement).
type BuiltinFunc func(objects []*unstructured.Unstructured, args map[string]any) ([]*unstructured.Unstructured, error)

// builtins is the registry of builtin filters known to the engine.
var builtins = map[string]BuiltinFunc{
	"helm_namespace": HelmNamespace,
}

// Pipeline runs one instance's filter sequence against its compiled
// output directory.
type Pipeline struct {
	// CompiledRoot is compiled/<instance>.
	CompiledRoot string
	// JsonnetBinary is the external engine invoked for "jsonnet"-type
	// filters (the same binary used by the Renderer Driver, so filter
	// authors can use the Kapitan-compatible external-variable and
	// native-callback environment).
	JsonnetBinary string
	Instance      string
	Component     string
}

// Run executes filters in declared order; different instances run
// independently, so callers are expected to invoke Run concurrently
// across instances while keeping each call's filter sequence serial.
func (p Pipeline) Run(ctx context.Context, filters []FilterDef) error {
	for i, f := range filters {
		if !f.Enabled {
			continue
		}
		if err := p.runOne(ctx, f); err != nil {
			metrics.FilterInvocations.WithLabelValues(f.Filter, "failure").Inc()
			return cerrors.Filter(cerrors.Context{Instance: p.Instance, Component: p.Component}, err,
				"filter #%d (%s) failed", i, f.Filter)
		}
		metrics.FilterInvocations.WithLabelValues(f.Filter, "success").Inc()
	}
	return nil
}

func (p Pipeline) runOne(ctx context.Context, f FilterDef) error {
	switch f.Type {
	case FilterBuiltin:
		return p.runBuiltin(f)
	case FilterJsonnet:
		return p.runJsonnet(ctx, f)
	default:
		return fmt.Errorf("unsupported filter type %q", f.Type)
	}
}

func (p Pipeline) runBuiltin(f FilterDef) error {
	fn, ok := builtins[f.Filter]
	if !ok {
		return fmt.Errorf("unknown builtin filter %q", f.Filter)
	}

	dir := filepath.Join(p.CompiledRoot, f.Path)
	files, objects, err := loadManifests(dir)
	if err != nil {
		return err
	}

	result, err := fn(objects, f.FilterArgs)
	if err != nil {
		return err
	}

	return writeManifests(dir, files, result)
}

func (p Pipeline) runJsonnet(ctx context.Context, f FilterDef) error {
	extVars := map[string]any{
		"component": p.Component,
		"target":    p.Instance,
	}
	for k, v := range f.FilterArgs {
		extVars[k] = v
	}
	args := []string{"--path", filepath.Join(p.CompiledRoot, f.Path), "--filter", f.Filter}
	for k, v := range extVars {
		args = append(args, "--ext-str", fmt.Sprintf("%s=%v", k, v))
	}

	cmd := exec.CommandContext(ctx, p.JsonnetBinary, args...)
	cmd.Dir = p.CompiledRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		return cerrors.Engine(cerrors.Context{Instance: p.Instance, Component: p.Component}, string(out),
			"jsonnet filter %q failed: %v", f.Filter, err)
	}
	return nil
}

// ParseFilterDefs decodes parameters.commodore.postprocess.filters out
// of one target's rendered parameter tree, in declared order. Entries
// missing "enabled" default to enabled.
func ParseFilterDefs(params map[string]any) []FilterDef {
	commodore, _ := params["commodore"].(map[string]any)
	if commodore == nil {
		return nil
	}
	postprocess, _ := commodore["postprocess"].(map[string]any)
	if postprocess == nil {
		return nil
	}
	raw, _ := postprocess["filters"].([]any)

	defs := make([]FilterDef, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		def := FilterDef{
			Type:    FilterType(stringField(entry, "type")),
			Path:    stringField(entry, "path"),
			Filter:  stringField(entry, "filter"),
			Enabled: true,
		}
		if v, ok := entry["enabled"].(bool); ok {
			def.Enabled = v
		}
		if args, ok := entry["filterargs"].(map[string]any); ok {
			def.FilterArgs = args
		}
		defs = append(defs, def)
	}
	return defs
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func loadManifests(dir string) (files []string, objects []*unstructured.Unstructured, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var obj map[string]any
		if err := yaml.Unmarshal(data, &obj); err != nil {
			return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		files = append(files, path)
		objects = append(objects, &unstructured.Unstructured{Object: obj})
	}
	return files, objects, nil
}

func writeManifests(dir string, files []string, objects []*unstructured.Unstructured) error {
	for i, obj := range objects {
		var path string
		if i < len(files) {
			path = files[i]
		} else {
			path = filepath.Join(dir, fmt.Sprintf("generated-%d.yaml", i))
		}
		data, err := yaml.Marshal(obj.Object)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", path, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}
