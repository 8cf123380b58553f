// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"fmt"

	"github.com/projectsyn/commodore/internal/invtree"
)

// CycleError reports a class-inclusion cycle detected during rendering.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("class inclusion cycle: %v", e.Cycle)
}

// Rendered is the result of resolving a set of root classes: the
// depth-first, dedup'd inclusion order and the fully merged, fully
// reference-resolved parameter tree.
type Rendered struct {
	Classes    []string
	Parameters map[string]any
}

// Render resolves rootClasses (processed left to right, each fully
// depth-first before the next) against store, merging parameters with
// the reclass operators (deep merge, "+"-append, "="-constant) and then
// resolving every ${a:b:c} reference in the merged tree.
func Render(store Store, rootClasses []string) (*Rendered, error) {
	state := &renderState{
		store:      store,
		seen:       map[string]bool{},
		visiting:   map[string]bool{},
		params:     map[string]any{},
		constants:  invtree.NewConstantSet(),
		stackTrace: nil,
	}

	for _, root := range rootClasses {
		if err := state.include(root); err != nil {
			return nil, err
		}
	}

	if err := invtree.ResolveReferences(state.params); err != nil {
		return nil, err
	}

	return &Rendered{Classes: state.order, Parameters: state.params}, nil
}

type renderState struct {
	store      Store
	seen       map[string]bool
	visiting   map[string]bool
	order      []string
	params     map[string]any
	constants  invtree.ConstantSet
	stackTrace []string
}

func (s *renderState) include(name string) error {
	if s.seen[name] {
		return nil
	}
	if s.visiting[name] {
		cycle := append(append([]string{}, s.stackTrace...), name)
		return &CycleError{Cycle: cycle}
	}

	class, err := s.store.Load(name)
	if err != nil {
		return err
	}

	s.visiting[name] = true
	s.stackTrace = append(s.stackTrace, name)
	for _, inc := range class.Includes {
		if err := s.include(inc); err != nil {
			return err
		}
	}
	s.stackTrace = s.stackTrace[:len(s.stackTrace)-1]
	delete(s.visiting, name)

	s.seen[name] = true
	s.order = append(s.order, name)

	return invtree.MergeParams(s.params, class.Parameters, s.constants, nil)
}
