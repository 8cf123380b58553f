// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package compile

import (
	"context"
	"log/slog"
	"testing"

	"github.com/projectsyn/commodore/internal/model"
)

func TestCompile_RefusesPushWithRevisionOverride(t *testing.T) {
	t.Parallel()

	c := &Compiler{Logger: slog.Default()}
	_, err := c.Compile(context.Background(), Options{
		ClusterID:              "c-test",
		Push:                   true,
		GlobalRevisionOverride: "v1.2.3",
	})
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
}

func TestCompile_RefusesPushWithTenantRevisionOverride(t *testing.T) {
	t.Parallel()

	c := &Compiler{Logger: slog.Default()}
	_, err := c.Compile(context.Background(), Options{
		ClusterID:              "c-test",
		Push:                   true,
		TenantRevisionOverride: "feature/x",
	})
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
}

func TestNewRunID_ProducesDistinctValues(t *testing.T) {
	t.Parallel()

	a := newRunID()
	b := newRunID()
	if a == "" || b == "" {
		t.Fatal("expected non-empty run IDs")
	}
	if a == b {
		t.Fatalf("expected distinct run IDs, got %q twice", a)
	}
}

func TestCollectDeprecationWarnings(t *testing.T) {
	t.Parallel()

	components := []model.Component{
		{Name: "keep-me"},
		{
			Name: "old-component",
			Metadata: model.ComponentMetadata{
				Deprecated:        true,
				DeprecationNotice: "use new-component instead",
			},
		},
	}

	warnings := collectDeprecationWarnings(components)
	if len(warnings) != 1 {
		t.Fatalf("len(warnings) = %d, want 1", len(warnings))
	}
	if warnings[0].Component != "old-component" {
		t.Errorf("warnings[0].Component = %q, want %q", warnings[0].Component, "old-component")
	}
	if warnings[0].Notice != "use new-component instead" {
		t.Errorf("warnings[0].Notice = %q, want %q", warnings[0].Notice, "use new-component instead")
	}
}

func TestCollectDeprecationWarnings_NoneDeprecatedReturnsEmpty(t *testing.T) {
	t.Parallel()

	components := []model.Component{{Name: "a"}, {Name: "b"}}
	if warnings := collectDeprecationWarnings(components); len(warnings) != 0 {
		t.Errorf("len(warnings) = %d, want 0", len(warnings))
	}
}

