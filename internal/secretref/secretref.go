// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package secretref implements the secret reference manager: a
// tree-walking scan over the rendered parameter tree that finds every
// ?{backend:keypath} secret token and materializes one deterministic
// reference file per unique (backend, keypath) under catalog/refs/.
package secretref

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// tokenPattern matches ?{backend:keypath} anywhere inside a string leaf.
var tokenPattern = regexp.MustCompile(`\?\{([a-zA-Z0-9_-]+):([^}]+)\}`)

// Reference is one unique secret reference discovered in the parameter
// tree.
type Reference struct {
	Backend string
	KeyPath string
}

// refKey is used for de-duplication and deterministic ordering.
func (r Reference) refKey() string { return r.Backend + ":" + r.KeyPath }

// Scan walks params depth-first and returns every unique Reference
// found, sorted for deterministic output.
func Scan(params map[string]any) []Reference {
	seen := map[string]Reference{}
	walk(params, &seen)

	refs := make([]Reference, 0, len(seen))
	for _, r := range seen {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].refKey() < refs[j].refKey() })
	return refs
}

func walk(value any, seen *map[string]Reference) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(v[k], seen)
		}
	case []any:
		for _, item := range v {
			walk(item, seen)
		}
	case string:
		for _, m := range tokenPattern.FindAllStringSubmatch(v, -1) {
			ref := Reference{Backend: m[1], KeyPath: m[2]}
			(*seen)[ref.refKey()] = ref
		}
	}
}

// BackendConfig resolves per-reference backend settings, falling back to
// the global parameters.secret_management defaults.
type BackendConfig struct {
	Defaults map[string]any
	PerRef   map[string]map[string]any
}

func (c BackendConfig) forRef(ref Reference) map[string]any {
	merged := map[string]any{}
	for k, v := range c.Defaults {
		merged[k] = v
	}
	for k, v := range c.PerRef[ref.refKey()] {
		merged[k] = v
	}
	return merged
}

// vaultKVDoc is the on-disk content of a vaultkv reference file: a
// minimal YAML document naming the backend and the path/field pair.
// yaml.v3 emits struct fields in declaration order, so the fields are
// declared in sorted key order.
type vaultKVDoc struct {
	Backend string `yaml:"backend"`
	Field   string `yaml:"field"`
	Path    string `yaml:"path"`
}

// Materialize writes one reference file per Reference under refsDir,
// skipping files whose content already matches (so unrelated timestamps
// are never touched), and returns the set of file paths that should
// exist after this compile so callers can prune orphans.
func Materialize(refsDir string, refs []Reference, cfg BackendConfig) ([]string, error) {
	wanted := make([]string, 0, len(refs))
	for _, ref := range refs {
		path := filepath.Join(refsDir, ref.KeyPath)
		wanted = append(wanted, path)

		var content []byte
		var err error
		switch ref.Backend {
		case "vaultkv":
			content, err = vaultKVContent(ref, cfg.forRef(ref))
		default:
			return nil, fmt.Errorf("unsupported secret backend %q for reference %q", ref.Backend, ref.KeyPath)
		}
		if err != nil {
			return nil, err
		}

		if existing, readErr := os.ReadFile(path); readErr == nil && string(existing) == string(content) {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating ref directory for %q: %w", ref.KeyPath, err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return nil, fmt.Errorf("writing ref file %q: %w", path, err)
		}
	}
	return wanted, nil
}

func vaultKVContent(ref Reference, args map[string]any) ([]byte, error) {
	path := ref.KeyPath
	field := ""
	if idx := strings.LastIndex(ref.KeyPath, ":"); idx >= 0 {
		path = ref.KeyPath[:idx]
		field = ref.KeyPath[idx+1:]
	}
	if field == "" {
		if explicit, ok := args["field"].(string); ok && explicit != "" {
			field = explicit
		} else if idx := strings.LastIndex(path, "/"); idx >= 0 {
			field = path[idx+1:]
		} else {
			field = path
		}
	}

	doc := vaultKVDoc{Backend: "vaultkv", Path: path, Field: field}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling vaultkv ref for %q: %w", ref.KeyPath, err)
	}
	return data, nil
}

// PruneOrphans removes files under refsDir that are not in wanted,
// enforcing the invariant that refs/ contains exactly the references
// found in the current compile's parameter tree.
func PruneOrphans(refsDir string, wanted []string) error {
	wantedSet := map[string]bool{}
	for _, w := range wanted {
		wantedSet[w] = true
	}

	return filepath.Walk(refsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !wantedSet[path] {
			return os.Remove(path)
		}
		return nil
	})
}
