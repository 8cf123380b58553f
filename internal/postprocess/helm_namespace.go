// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package postprocess

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// HelmNamespace implements the helm_namespace builtin filter: it patches
// metadata.namespace into every loaded object, optionally injecting a
// Namespace object and skipping an exclusion list of (kind, name)
// tuples.
func HelmNamespace(objects []*unstructured.Unstructured, args map[string]any) ([]*unstructured.Unstructured, error) {
	namespace, _ := args["namespace"].(string)
	if namespace == "" {
		return nil, fmt.Errorf("helm_namespace: missing required arg %q", "namespace")
	}
	createNamespace, _ := args["create_namespace"].(bool)
	exclude := excludedObjects(args["exclude_objects"])

	out := make([]*unstructured.Unstructured, 0, len(objects)+1)
	for _, obj := range objects {
		kind := obj.GetKind()
		name := obj.GetName()
		if exclude[objectKey{kind, name}] {
			out = append(out, obj)
			continue
		}
		if kind == "Namespace" {
			out = append(out, obj)
			continue
		}
		obj.SetNamespace(namespace)
		out = append(out, obj)
	}

	if createNamespace {
		out = append(out, namespaceObject(namespace))
	}
	return out, nil
}

type objectKey struct {
	kind string
	name string
}

func excludedObjects(raw any) map[objectKey]bool {
	out := map[objectKey]bool{}
	items, _ := raw.([]any)
	for _, item := range items {
		pair, _ := item.([]any)
		if len(pair) != 2 {
			continue
		}
		kind, _ := pair[0].(string)
		name, _ := pair[1].(string)
		out[objectKey{kind, name}] = true
	}
	return out
}

func namespaceObject(name string) *unstructured.Unstructured {
	return &unstructured.Unstructured{
		Object: map[string]any{
			"apiVersion": "v1",
			"kind":       "Namespace",
			"metadata": map[string]any{
				"name": name,
			},
		},
	}
}
