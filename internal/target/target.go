// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package target implements the target builder: one rendering
// target per component instance, carrying the instance's merged
// parameters, its class list, and the render spec the templating engine
// executes.
package target

import (
	"fmt"
	"path"
	"sort"

	"github.com/projectsyn/commodore/internal/invtree"
	"github.com/projectsyn/commodore/internal/model"
)

// RenderStep is one renderer invocation transcribed from the component's
// kapitan.compile parameter subtree. Input paths are
// relative to the target's _base_directory; the output path is
// namespaced by instance name so two instances of one component never
// collide.
type RenderStep struct {
	InputType  string   `json:"input_type"`
	InputPaths []string `json:"input_paths"`
	OutputPath string   `json:"output_path"`
}

// Target is the unit of templating-engine work, 1:1 with a component
// instance.
type Target struct {
	Name       string         `json:"name"`
	Component  string         `json:"component"`
	Classes    []string       `json:"classes"`
	Parameters map[string]any `json:"parameters"`
	RenderSpec []RenderStep   `json:"render_spec"`
}

// DuplicateTargetError reports two instances resolving to the same
// target name. The dependency resolver already rejects duplicate
// aliases, so hitting this indicates a caller bug rather than bad
// inventory data.
type DuplicateTargetError struct {
	Name string
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("duplicate target %q", e.Name)
}

// Builder assembles targets from the resolved dependency set and the
// fully rendered parameter tree.
type Builder struct {
	// KustomizeWrapper is injected into every target as
	// parameters._kustomize_wrapper.
	KustomizeWrapper string
}

// Build produces one Target per instance. Per-target parameters are the
// deep-merged params.<component> subtree, overlaid with
// params.<instance> (dashes mapped to underscores) for aliases, plus
// the injected _instance, _base_directory and _kustomize_wrapper keys.
// _base_directory always points at the base component's checkout, even
// for multi-version instances, so cross-component Jsonnet imports keep
// resolving against the base checkout.
func (b Builder) Build(instances []model.ComponentInstance, packages []model.Package, params map[string]any) ([]Target, error) {
	defaults := defaultsClasses(instances)
	pkgClasses := make([]string, 0, len(packages))
	for _, p := range packages {
		pkgClasses = append(pkgClasses, p.Name)
	}

	seen := make(map[string]bool, len(instances))
	targets := make([]Target, 0, len(instances))
	for _, inst := range instances {
		if seen[inst.InstanceName] {
			return nil, &DuplicateTargetError{Name: inst.InstanceName}
		}
		seen[inst.InstanceName] = true

		tp, err := b.targetParameters(inst, params)
		if err != nil {
			return nil, err
		}

		classes := make([]string, 0, len(defaults)+len(pkgClasses)+1)
		classes = append(classes, defaults...)
		classes = append(classes, pkgClasses...)
		classes = append(classes, "components."+inst.Base.Name)

		targets = append(targets, Target{
			Name:       inst.InstanceName,
			Component:  inst.Base.Name,
			Classes:    classes,
			Parameters: tp,
			RenderSpec: renderSpec(inst.InstanceName, tp),
		})
	}
	return targets, nil
}

// defaultsClasses returns the defaults.<component> class for every
// distinct base component, sorted for deterministic target content.
func defaultsClasses(instances []model.ComponentInstance) []string {
	names := map[string]bool{}
	for _, inst := range instances {
		names[inst.Base.Name] = true
	}
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, "defaults."+n)
	}
	sort.Strings(out)
	return out
}

func (b Builder) targetParameters(inst model.ComponentInstance, params map[string]any) (map[string]any, error) {
	base := map[string]any{}
	if sub, ok := params[model.SnakeCase(inst.Base.Name)].(map[string]any); ok {
		base = invtree.DeepCopyMap(sub)
	}

	if inst.IsAlias() {
		if overlay, ok := params[model.SnakeCase(inst.InstanceName)].(map[string]any); ok {
			if err := invtree.MergeParams(base, invtree.DeepCopyMap(overlay), invtree.NewConstantSet(), nil); err != nil {
				return nil, fmt.Errorf("merging alias parameters for %q: %w", inst.InstanceName, err)
			}
		}
	}

	// The commodore subtree (postprocess filter declarations among other
	// things) lives next to the component subtrees in the rendered
	// hierarchy; every target carries a copy so the post-processing
	// engine can read its filter sequence off the target alone.
	if commodore, ok := params["commodore"].(map[string]any); ok {
		base["commodore"] = invtree.DeepCopyMap(commodore)
	}

	base["_instance"] = inst.InstanceName
	base["_base_directory"] = inst.Base.CheckoutPath
	base["_kustomize_wrapper"] = b.KustomizeWrapper
	return base, nil
}

// renderSpec transcribes the kapitan.compile subtree of one target's
// parameters into RenderSteps, prefixing every output path with the
// instance name.
func renderSpec(instanceName string, params map[string]any) []RenderStep {
	kapitan, _ := params["kapitan"].(map[string]any)
	if kapitan == nil {
		return nil
	}
	entries, _ := kapitan["compile"].([]any)

	steps := make([]RenderStep, 0, len(entries))
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		step := RenderStep{}
		step.InputType, _ = entry["input_type"].(string)
		if inputs, ok := entry["input_paths"].([]any); ok {
			for _, in := range inputs {
				if s, ok := in.(string); ok {
					step.InputPaths = append(step.InputPaths, s)
				}
			}
		}
		outputPath, _ := entry["output_path"].(string)
		step.OutputPath = path.Join(instanceName, outputPath)
		steps = append(steps, step)
	}
	return steps
}
