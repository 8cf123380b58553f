// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package postprocess

import (
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func TestHelmNamespace_PatchesNamespace(t *testing.T) {
	t.Parallel()

	objects := []*unstructured.Unstructured{
		{Object: map[string]any{"apiVersion": "v1", "kind": "ConfigMap", "metadata": map[string]any{"name": "cfg"}}},
	}

	out, err := HelmNamespace(objects, map[string]any{"namespace": "my-ns"})
	if err != nil {
		t.Fatalf("HelmNamespace() error: %v", err)
	}
	if out[0].GetNamespace() != "my-ns" {
		t.Errorf("namespace = %q, want my-ns", out[0].GetNamespace())
	}
}

func TestHelmNamespace_SkipsExcludedObjects(t *testing.T) {
	t.Parallel()

	objects := []*unstructured.Unstructured{
		{Object: map[string]any{"apiVersion": "v1", "kind": "ConfigMap", "metadata": map[string]any{"name": "skip-me"}}},
	}

	out, err := HelmNamespace(objects, map[string]any{
		"namespace":       "my-ns",
		"exclude_objects": []any{[]any{"ConfigMap", "skip-me"}},
	})
	if err != nil {
		t.Fatalf("HelmNamespace() error: %v", err)
	}
	if out[0].GetNamespace() != "" {
		t.Errorf("expected excluded object namespace to stay empty, got %q", out[0].GetNamespace())
	}
}

func TestHelmNamespace_CreateNamespaceObject(t *testing.T) {
	t.Parallel()

	out, err := HelmNamespace(nil, map[string]any{"namespace": "my-ns", "create_namespace": true})
	if err != nil {
		t.Fatalf("HelmNamespace() error: %v", err)
	}
	if len(out) != 1 || out[0].GetKind() != "Namespace" || out[0].GetName() != "my-ns" {
		t.Fatalf("expected synthesized Namespace object, got %+v", out)
	}
}

func TestHelmNamespace_RequiresNamespaceArg(t *testing.T) {
	t.Parallel()

	if _, err := HelmNamespace(nil, map[string]any{}); err == nil {
		t.Fatal("expected error for missing namespace arg")
	}
}
