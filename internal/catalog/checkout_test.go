// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// newBareRemote creates a local bare repository with one commit on
// branch, usable as a go-git clone/fetch target via its filesystem path.
func newBareRemote(t *testing.T, branch string) string {
	t.Helper()

	seedDir := t.TempDir()
	seed, err := git.PlainInit(seedDir, false)
	if err != nil {
		t.Fatalf("PlainInit(seed): %v", err)
	}
	if err := os.WriteFile(filepath.Join(seedDir, "README.md"), []byte("catalog\n"), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	wt, err := seed.Worktree()
	if err != nil {
		t.Fatalf("seed.Worktree(): %v", err)
	}
	if _, err := wt.Add("."); err != nil {
		t.Fatalf("wt.Add: %v", err)
	}
	sig := &object.Signature{Name: "tester", Email: "tester@example.com"}
	if _, err := wt.Commit("seed", &git.CommitOptions{Author: sig, Committer: sig}); err != nil {
		t.Fatalf("wt.Commit: %v", err)
	}

	branchRef := plumbing.NewBranchReferenceName(branch)
	head, err := seed.Head()
	if err != nil {
		t.Fatalf("seed.Head(): %v", err)
	}
	if err := seed.Storer.SetReference(plumbing.NewHashReference(branchRef, head.Hash())); err != nil {
		t.Fatalf("set branch ref: %v", err)
	}
	if err := seed.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branchRef)); err != nil {
		t.Fatalf("set HEAD: %v", err)
	}

	bareDir := t.TempDir()
	if _, err := git.PlainClone(bareDir, true, &git.CloneOptions{URL: seedDir}); err != nil {
		t.Fatalf("PlainClone(bare): %v", err)
	}
	return bareDir
}

func TestEnsureWorktree_ClonesMissingWorktree(t *testing.T) {
	t.Parallel()

	remote := newBareRemote(t, "main")
	dest := filepath.Join(t.TempDir(), "catalog")

	repo, err := EnsureWorktree(context.Background(), remote, "main", dest)
	if err != nil {
		t.Fatalf("EnsureWorktree: %v", err)
	}
	if _, err := repo.Head(); err != nil {
		t.Fatalf("repo.Head(): %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "README.md")); err != nil {
		t.Fatalf("expected README.md checked out: %v", err)
	}
}

func TestEnsureWorktree_ReusesExistingWorktree(t *testing.T) {
	t.Parallel()

	remote := newBareRemote(t, "main")
	dest := filepath.Join(t.TempDir(), "catalog")

	if _, err := EnsureWorktree(context.Background(), remote, "main", dest); err != nil {
		t.Fatalf("first EnsureWorktree: %v", err)
	}
	repo, err := EnsureWorktree(context.Background(), remote, "main", dest)
	if err != nil {
		t.Fatalf("second EnsureWorktree: %v", err)
	}
	if _, err := repo.Head(); err != nil {
		t.Fatalf("repo.Head(): %v", err)
	}
}
