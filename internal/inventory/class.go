// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package inventory implements the inventory store and the
// reclass-compatible inventory renderer: class file placement,
// depth-first left-to-right class inclusion with dedup and cycle
// detection, and parameter merge via package invtree.
package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/projectsyn/commodore/internal/invtree"
)

// Class is one reclass-style YAML document: an ordered list of includes
// plus a deep-mergeable parameter tree.
type Class struct {
	Name       string
	Includes   []string
	Parameters map[string]any
}

// rawClass mirrors the on-disk YAML shape.
type rawClass struct {
	Classes    []string       `yaml:"classes"`
	Parameters map[string]any `yaml:"parameters"`
}

// Store loads a Class by its dotted name (e.g. "global.commodore",
// "components.mysql").
type Store interface {
	Load(name string) (*Class, error)
}

// FileStore resolves class names against a classes/ directory using the
// reclass convention: "a.b.c" maps to "<root>/a/b/c.yml", falling back to
// "<root>/a/b/c/init.yml" for classes that are also directories of
// sub-classes.
type FileStore struct {
	Root string
}

// Load implements Store.
func (s FileStore) Load(name string) (*Class, error) {
	parts := strings.Split(name, ".")
	candidates := []string{
		filepath.Join(s.Root, filepath.Join(parts...)+".yml"),
		filepath.Join(s.Root, filepath.Join(append(append([]string{}, parts...), "init.yml")...)),
	}

	var lastErr error
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		var raw rawClass
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("class %q (%s): %w", name, path, err)
		}
		if raw.Parameters == nil {
			raw.Parameters = map[string]any{}
		}
		return &Class{Name: name, Includes: raw.Classes, Parameters: raw.Parameters}, nil
	}
	return nil, fmt.Errorf("class %q not found: %w", name, lastErr)
}
