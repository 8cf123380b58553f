// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package invtree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolveReferences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		root    map[string]any
		want    map[string]any
		wantErr bool
	}{
		{
			name: "simple scalar reference",
			root: map[string]any{
				"mysql": map[string]any{"host": "db.internal"},
				"app":   map[string]any{"db_host": "${mysql:host}"},
			},
			want: map[string]any{
				"mysql": map[string]any{"host": "db.internal"},
				"app":   map[string]any{"db_host": "db.internal"},
			},
		},
		{
			name: "whole-string reference preserves type",
			root: map[string]any{
				"mysql": map[string]any{"config": map[string]any{"port": 3306}},
				"app":   map[string]any{"db": "${mysql:config}"},
			},
			want: map[string]any{
				"mysql": map[string]any{"config": map[string]any{"port": 3306}},
				"app":   map[string]any{"db": map[string]any{"port": 3306}},
			},
		},
		{
			name: "nested references resolve transitively",
			root: map[string]any{
				"a": "1",
				"b": "${a}-2",
				"c": "${b}-3",
			},
			want: map[string]any{
				"a": "1",
				"b": "1-2",
				"c": "1-2-3",
			},
		},
		{
			name: "cyclic reference is an error",
			root: map[string]any{
				"a": "${b}",
				"b": "${a}",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ResolveReferences(tt.root)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveReferences() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, tt.root); diff != "" {
				t.Errorf("ResolveReferences() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
