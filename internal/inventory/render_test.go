// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type memStore map[string]*Class

func (m memStore) Load(name string) (*Class, error) {
	c, ok := m[name]
	if !ok {
		return nil, &classNotFoundError{name}
	}
	return c, nil
}

type classNotFoundError struct{ name string }

func (e *classNotFoundError) Error() string { return "class not found: " + e.name }

func TestRender_OrderAndDedup(t *testing.T) {
	t.Parallel()

	store := memStore{
		"global.commodore": {Name: "global.commodore", Includes: nil, Parameters: map[string]any{"a": 1}},
		"defaults.mysql":   {Name: "defaults.mysql", Includes: []string{"global.commodore"}, Parameters: map[string]any{"b": 2}},
		"components.mysql": {Name: "components.mysql", Includes: []string{"defaults.mysql"}, Parameters: map[string]any{"c": 3}},
	}

	got, err := Render(store, []string{"components.mysql", "global.commodore"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	wantOrder := []string{"global.commodore", "defaults.mysql", "components.mysql"}
	if diff := cmp.Diff(wantOrder, got.Classes); diff != "" {
		t.Errorf("class order mismatch (-want +got):\n%s", diff)
	}

	wantParams := map[string]any{"a": 1, "b": 2, "c": 3}
	if diff := cmp.Diff(wantParams, got.Parameters); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_CycleDetection(t *testing.T) {
	t.Parallel()

	store := memStore{
		"a": {Name: "a", Includes: []string{"b"}, Parameters: map[string]any{}},
		"b": {Name: "b", Includes: []string{"a"}, Parameters: map[string]any{}},
	}

	_, err := Render(store, []string{"a"})
	if err == nil {
		t.Fatal("expected cycle error, got nil")
	}
	var cycleErr *CycleError
	if !asCycleError(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T: %v", err, err)
	}
}

func asCycleError(err error, target **CycleError) bool {
	ce, ok := err.(*CycleError)
	if ok {
		*target = ce
	}
	return ok
}

func TestRender_MergeAcrossClasses(t *testing.T) {
	t.Parallel()

	store := memStore{
		"defaults.mysql": {
			Name:       "defaults.mysql",
			Parameters: map[string]any{"mysql": map[string]any{"replicas": 1, "tags": []any{"a"}}},
		},
		"components.mysql": {
			Name:     "components.mysql",
			Includes: []string{"defaults.mysql"},
			Parameters: map[string]any{
				"mysql": map[string]any{"replicas": 3, "tags+": []any{"b"}},
			},
		},
	}

	got, err := Render(store, []string{"components.mysql"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	want := map[string]any{
		"mysql": map[string]any{"replicas": 3, "tags": []any{"a", "b"}},
	}
	if diff := cmp.Diff(want, got.Parameters); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
}
