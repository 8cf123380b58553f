// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package invtree

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// refPattern matches ${a:b:c} style references.
var refPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// MaxResolutionPasses bounds the fixed-point reference resolution loop
// so that genuinely cyclic references terminate with an error instead of
// looping forever.
const MaxResolutionPasses = 50

// UnresolvedReferenceError is returned when references remain once a
// full-tree pass changes nothing, or after MaxResolutionPasses passes.
type UnresolvedReferenceError struct {
	Tokens []string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved references after %d passes: %s", MaxResolutionPasses, strings.Join(e.Tokens, ", "))
}

// ResolveReferences resolves every ${a:b:c} reference found anywhere in
// root against root itself, iterating to a fixed point so that nested
// references (a reference whose resolved value itself contains a
// reference) converge. It mutates root in place.
func ResolveReferences(root map[string]any) error {
	for pass := 0; pass < MaxResolutionPasses; pass++ {
		_, changed, err := walkResolve(root, root)
		if err != nil {
			return err
		}
		if !changed {
			return checkFullyResolved(root)
		}
	}
	return checkFullyResolved(root)
}

func checkFullyResolved(root any) error {
	var remaining []string
	collectTokens(root, &remaining)
	if len(remaining) > 0 {
		return &UnresolvedReferenceError{Tokens: remaining}
	}
	return nil
}

func collectTokens(node any, out *[]string) {
	switch v := node.(type) {
	case string:
		for _, m := range refPattern.FindAllString(v, -1) {
			*out = append(*out, m)
		}
	case map[string]any:
		for _, val := range v {
			collectTokens(val, out)
		}
	case []any:
		for _, val := range v {
			collectTokens(val, out)
		}
	}
}

func walkResolve(node any, root any) (any, bool, error) {
	switch v := node.(type) {
	case string:
		return resolveString(v, root)
	case map[string]any:
		changedAny := false
		for k, val := range v {
			nv, changed, err := walkResolve(val, root)
			if err != nil {
				return nil, false, err
			}
			if changed {
				v[k] = nv
				changedAny = true
			}
		}
		return v, changedAny, nil
	case []any:
		changedAny := false
		for i, val := range v {
			nv, changed, err := walkResolve(val, root)
			if err != nil {
				return nil, false, err
			}
			if changed {
				v[i] = nv
				changedAny = true
			}
		}
		return v, changedAny, nil
	default:
		return node, false, nil
	}
}

func resolveString(s string, root any) (any, bool, error) {
	matches := refPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, false, nil
	}

	// A string that is exactly one reference resolves to the referenced
	// value's native type (map, list, number, ...), not a stringified
	// copy of it.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		path := s[matches[0][2]:matches[0][3]]
		val, ok, err := lookupPath(root, path)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return s, false, nil
		}
		return val, true, nil
	}

	var sb strings.Builder
	last := 0
	changed := false
	for _, m := range matches {
		sb.WriteString(s[last:m[0]])
		path := s[m[2]:m[3]]
		val, ok, err := lookupPath(root, path)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			sb.WriteString(s[m[0]:m[1]])
		} else {
			sb.WriteString(stringify(val))
			changed = true
		}
		last = m[1]
	}
	sb.WriteString(s[last:])
	return sb.String(), changed, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// lookupPath walks root (a map[string]any tree) following a colon
// separated path, e.g. "mysql:host". List segments may be numeric
// indices. Returns ok=false (no error) when the path cannot yet be
// resolved, so the caller can retry on a later pass.
func lookupPath(root any, path string) (any, bool, error) {
	segments := strings.Split(path, ":")
	current := root
	for _, seg := range segments {
		switch node := current.(type) {
		case map[string]any:
			val, exists := node[seg]
			if !exists {
				return nil, false, nil
			}
			current = val
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false, nil
			}
			current = node[idx]
		default:
			return nil, false, nil
		}
	}
	return current, true, nil
}
