// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package appset implements the "applications" list-merge operator:
// entries prefixed with "~" remove the last occurrence of
// their target rather than being added.
package appset

import "strings"

// Resolve applies the "~" removal operator to an ordered list of
// application/class entries, returning the entries still present in
// first-seen order. A bare "~name" token with no prior "name" in the
// list is a harmless no-op, so removals stay idempotent.
func Resolve(items []string) []string {
	result := make([]string, 0, len(items))
	present := make(map[string]int, len(items)) // name -> index in result

	for _, item := range items {
		if strings.HasPrefix(item, "~") {
			name := strings.TrimPrefix(item, "~")
			if idx, ok := present[name]; ok {
				result = append(result[:idx], result[idx+1:]...)
				delete(present, name)
				reindex(present, result)
			}
			continue
		}

		if _, ok := present[item]; ok {
			continue
		}
		present[item] = len(result)
		result = append(result, item)
	}

	return result
}

func reindex(present map[string]int, result []string) {
	for i, name := range result {
		present[name] = i
	}
}
