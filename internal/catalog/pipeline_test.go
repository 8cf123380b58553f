// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"strings"
	"testing"
	"time"
)

func TestCommitMessage(t *testing.T) {
	t.Parallel()

	msg := CommitMessage(CompileMetadata{
		ClusterID:        "c-123",
		TenantID:         "t-456",
		CommodoreVersion: "v1.2.3",
		CompiledAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	if !strings.Contains(msg, "c-123") || !strings.Contains(msg, "t-456") || !strings.Contains(msg, "v1.2.3") {
		t.Errorf("commit message missing expected metadata: %q", msg)
	}
}

func TestPush_RefusesWithRevisionOverride(t *testing.T) {
	t.Parallel()

	p := Pipeline{WorktreePath: t.TempDir(), RevisionOverrides: true}
	if err := p.Push(); err != ErrPushWithRevisionOverride {
		t.Fatalf("Push() error = %v, want ErrPushWithRevisionOverride", err)
	}
}

func TestIsMaterial_IgnoreYAMLFormatting(t *testing.T) {
	t.Parallel()

	old := "a: 1\nb: 2\n"
	new := "a: 1\nb:   2   \n"

	if isMaterial(old, new, []MigrationFilter{MigrationIgnoreYAMLFormat}) {
		t.Error("expected pure whitespace difference to be filtered as non-material")
	}
	if !isMaterial(old, new, nil) {
		t.Error("expected difference to be material when no filters are active")
	}
}

func TestIsMaterial_IgnoreYAMLFormatting_KeyReordering(t *testing.T) {
	t.Parallel()

	old := "apiVersion: v1\nkind: ConfigMap\ndata:\n  a: \"1\"\n"
	reordered := "kind: ConfigMap\napiVersion: v1\ndata: {a: '1'}\n"

	if isMaterial(old, reordered, []MigrationFilter{MigrationIgnoreYAMLFormat}) {
		t.Error("expected key re-ordering and flow-style difference to be non-material")
	}

	changed := "kind: ConfigMap\napiVersion: v1\ndata: {a: '2'}\n"
	if !isMaterial(old, changed, []MigrationFilter{MigrationIgnoreYAMLFormat}) {
		t.Error("expected value change to stay material under the formatting filter")
	}
}

func TestIsMaterial_Kapitan029To030StripsManagedByLabel(t *testing.T) {
	t.Parallel()

	old := "metadata:\n  labels:\n    app.kubernetes.io/managed-by: commodore\n"
	new := "metadata:\n  labels:\n"

	if isMaterial(old, new, []MigrationFilter{MigrationKapitan029To030}) {
		t.Error("expected managed-by label removal to be filtered as non-material")
	}
}
