// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package gitcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/projectsyn/commodore/internal/cerrors"
	"github.com/projectsyn/commodore/internal/model"
)

// newSeedRepo creates a local non-bare repository with one commit and
// returns its path and the commit SHA. It doubles as the clone remote.
func newSeedRepo(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	sha := commitFile(t, repo, dir, "class/defaults.yml", "parameters: {}\n")
	return dir, sha
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if _, err := wt.Add("."); err != nil {
		t.Fatalf("Add: %v", err)
	}
	sig := &object.Signature{Name: "tester", Email: "tester@example.com"}
	hash, err := wt.Commit("add "+name, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return hash.String()
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	root := t.TempDir()
	return New(filepath.Join(root, "repos"), filepath.Join(root, "dependencies"), nil, nil)
}

func TestEnsureWorktree_MaterializesAtRevision(t *testing.T) {
	t.Parallel()

	seed, sha := newSeedRepo(t)
	cache := newTestCache(t)

	path, commit, err := cache.EnsureWorktree(context.Background(),
		model.RepositoryHandle{RemoteURL: seed, Revision: sha}, "mysql", false)
	if err != nil {
		t.Fatalf("EnsureWorktree: %v", err)
	}
	if commit != sha {
		t.Errorf("commit = %s, want %s", commit, sha)
	}
	if _, err := os.Stat(filepath.Join(path, "class", "defaults.yml")); err != nil {
		t.Errorf("expected checked-out class file: %v", err)
	}
}

func TestEnsureWorktree_Idempotent(t *testing.T) {
	t.Parallel()

	seed, sha := newSeedRepo(t)
	cache := newTestCache(t)
	handle := model.RepositoryHandle{RemoteURL: seed, Revision: sha}

	first, _, err := cache.EnsureWorktree(context.Background(), handle, "mysql", false)
	if err != nil {
		t.Fatalf("first EnsureWorktree: %v", err)
	}
	second, commit, err := cache.EnsureWorktree(context.Background(), handle, "mysql", false)
	if err != nil {
		t.Fatalf("second EnsureWorktree: %v", err)
	}
	if first != second {
		t.Errorf("worktree path changed between calls: %s vs %s", first, second)
	}
	if commit != sha {
		t.Errorf("commit = %s, want %s", commit, sha)
	}
}

func TestEnsureWorktree_SharedBareCloneForTwoWorktrees(t *testing.T) {
	t.Parallel()

	seed, sha := newSeedRepo(t)
	cache := newTestCache(t)
	handle := model.RepositoryHandle{RemoteURL: seed, Revision: sha}

	a, _, err := cache.EnsureWorktree(context.Background(), handle, "nfs", false)
	if err != nil {
		t.Fatalf("EnsureWorktree(nfs): %v", err)
	}
	b, _, err := cache.EnsureWorktree(context.Background(), handle, "nfs-b", false)
	if err != nil {
		t.Fatalf("EnsureWorktree(nfs-b): %v", err)
	}
	if a == b {
		t.Errorf("expected distinct worktrees, both at %s", a)
	}
}

func TestEnsureWorktree_DirtyWorktreeFailsWithoutForce(t *testing.T) {
	t.Parallel()

	seed, sha1 := newSeedRepo(t)
	seedRepo, err := git.PlainOpen(seed)
	if err != nil {
		t.Fatalf("PlainOpen(seed): %v", err)
	}

	cache := newTestCache(t)
	path, _, err := cache.EnsureWorktree(context.Background(),
		model.RepositoryHandle{RemoteURL: seed, Revision: sha1}, "mysql", false)
	if err != nil {
		t.Fatalf("EnsureWorktree: %v", err)
	}

	// Local modification in the worktree, then advance the remote so the
	// next ensure has to move the checkout.
	if err := os.WriteFile(filepath.Join(path, "scratch.txt"), []byte("dirty\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sha2 := commitFile(t, seedRepo, seed, "class/extra.yml", "parameters: {}\n")

	_, _, err = cache.EnsureWorktree(context.Background(),
		model.RepositoryHandle{RemoteURL: seed, Revision: sha2}, "mysql", false)
	if err == nil {
		t.Fatal("expected DirtyWorktree error, got nil")
	}
	var ce *cerrors.Error
	if !errors.As(err, &ce) || ce.Kind() != cerrors.KindDirtyWorktree {
		t.Fatalf("expected DirtyWorktree, got %v", err)
	}

	// Forced, the worktree advances and the local modification is gone.
	forcedPath, commit, err := cache.EnsureWorktree(context.Background(),
		model.RepositoryHandle{RemoteURL: seed, Revision: sha2}, "mysql", true)
	if err != nil {
		t.Fatalf("forced EnsureWorktree: %v", err)
	}
	if commit != sha2 {
		t.Errorf("commit = %s, want %s", commit, sha2)
	}
	if _, err := os.Stat(filepath.Join(forcedPath, "scratch.txt")); !os.IsNotExist(err) {
		t.Errorf("expected untracked scratch.txt removed by --force, got err=%v", err)
	}
}
