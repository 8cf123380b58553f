// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package invtree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dst     map[string]any
		src     map[string]any
		want    map[string]any
		wantErr bool
	}{
		{
			name: "scalar replace",
			dst:  map[string]any{"a": 1},
			src:  map[string]any{"a": 2},
			want: map[string]any{"a": 2},
		},
		{
			name: "map deep merge",
			dst:  map[string]any{"a": map[string]any{"x": 1, "y": 2}},
			src:  map[string]any{"a": map[string]any{"y": 3, "z": 4}},
			want: map[string]any{"a": map[string]any{"x": 1, "y": 3, "z": 4}},
		},
		{
			name: "list replace by default",
			dst:  map[string]any{"a": []any{"x"}},
			src:  map[string]any{"a": []any{"y"}},
			want: map[string]any{"a": []any{"y"}},
		},
		{
			name: "list append with plus suffix",
			dst:  map[string]any{"a": []any{"x"}},
			src:  map[string]any{"a+": []any{"y"}},
			want: map[string]any{"a": []any{"x", "y"}},
		},
		{
			name:    "constant declaration on first assignment merges",
			dst:     map[string]any{"a": 1},
			src:     map[string]any{"=a": 1},
			want:    map[string]any{"a": 1},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			constants := NewConstantSet()
			err := MergeParams(tt.dst, tt.src, constants, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MergeParams() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if diff := cmp.Diff(tt.want, tt.dst); diff != "" {
				t.Errorf("MergeParams() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeParams_ConstantEnforcement(t *testing.T) {
	t.Parallel()

	constants := NewConstantSet()
	acc := map[string]any{}

	if err := MergeParams(acc, map[string]any{"=mysql": map[string]any{"host": "a"}}, constants, nil); err != nil {
		t.Fatalf("first merge: %v", err)
	}

	err := MergeParams(acc, map[string]any{"mysql": map[string]any{"host": "b"}}, constants, nil)
	if err == nil {
		t.Fatalf("expected constant override error, got nil")
	}
	var mergeErr *MergeError
	if !asMergeError(err, &mergeErr) {
		t.Fatalf("expected *MergeError, got %T: %v", err, err)
	}
	if mergeErr.Path != "mysql" {
		t.Errorf("unexpected constant path: %s", mergeErr.Path)
	}

	// A deeper key nested under the constant root is also protected.
	err = MergeParams(acc, map[string]any{"mysql": map[string]any{"port": 3306}}, constants, nil)
	if err == nil {
		t.Fatalf("expected nested constant override error, got nil")
	}
}

func asMergeError(err error, target **MergeError) bool {
	if me, ok := err.(*MergeError); ok {
		*target = me
		return true
	}
	return false
}
