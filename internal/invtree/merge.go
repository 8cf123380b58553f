// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package invtree

import (
	"fmt"
	"sort"
	"strings"
)

// ConstantSet tracks parameter paths (colon-joined, e.g. "mysql:_metadata")
// that were declared constant with a leading "=" on their class key. Once
// a path is in the set, any later class that assigns to it (or any of its
// descendants) fails the merge.
type ConstantSet map[string]struct{}

// NewConstantSet returns an empty constant-path tracker.
func NewConstantSet() ConstantSet {
	return make(ConstantSet)
}

func (c ConstantSet) blocks(path []string) bool {
	for i := range path {
		if _, ok := c[strings.Join(path[:i+1], ":")]; ok {
			return true
		}
	}
	return false
}

func (c ConstantSet) declare(path []string) {
	c[strings.Join(path, ":")] = struct{}{}
}

// MergeError reports an attempt to override a constant parameter path.
type MergeError struct {
	Path string
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("parameter %q is constant and cannot be overridden", e.Path)
}

// MergeParams deep-merges src into dst in place, honoring the constant
// ("=key") and append ("key+") key-suffix operators. dst is mutated in
// place; only an error is returned. constants
// accumulates declared-constant paths across repeated calls so that a
// constant declared by one class is enforced against every later class
// in the hierarchy.
func MergeParams(dst map[string]any, src map[string]any, constants ConstantSet, path []string) error {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, rawKey := range keys {
		name := rawKey
		isConstant := false
		if strings.HasPrefix(name, "=") {
			isConstant = true
			name = strings.TrimPrefix(name, "=")
		}
		appendOp := false
		if strings.HasSuffix(name, "+") {
			appendOp = true
			name = strings.TrimSuffix(name, "+")
		}

		fullPath := append(append([]string{}, path...), name)
		if constants.blocks(fullPath) {
			return &MergeError{Path: strings.Join(fullPath, ":")}
		}

		value := src[rawKey]
		if err := mergeValue(dst, name, value, appendOp, constants, fullPath); err != nil {
			return err
		}

		if isConstant {
			constants.declare(fullPath)
		}
	}
	return nil
}

func mergeValue(dst map[string]any, name string, value any, appendOp bool, constants ConstantSet, fullPath []string) error {
	existing := dst[name]

	switch v := value.(type) {
	case map[string]any:
		existingMap, ok := existing.(map[string]any)
		if !ok || existingMap == nil {
			existingMap = map[string]any{}
		}
		if err := MergeParams(existingMap, v, constants, fullPath); err != nil {
			return err
		}
		dst[name] = existingMap

	case []any:
		if appendOp {
			if existingList, ok := existing.([]any); ok {
				merged := make([]any, 0, len(existingList)+len(v))
				merged = append(merged, existingList...)
				merged = append(merged, DeepCopy(v).([]any)...)
				dst[name] = merged
				return nil
			}
		}
		dst[name] = DeepCopy(v)

	default:
		dst[name] = value
	}
	return nil
}
