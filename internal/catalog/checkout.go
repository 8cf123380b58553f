// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/projectsyn/commodore/internal/cerrors"
)

// EnsureWorktree materializes the catalog repository at path, checked
// out on branch, creating the worktree if it does not yet exist and
// advancing it to the remote's current tip of branch otherwise. Unlike
// the dependency worktrees gitcache.Cache manages (detached at a pinned
// commit, shared off one content-addressed bare clone), the catalog
// worktree must stay on a live local branch so Pipeline.Commit/Push can
// advance it and publish ordinary branch updates.
func EnsureWorktree(ctx context.Context, remoteURL, branch, path string) (*git.Repository, error) {
	if _, err := os.Stat(path); err == nil {
		return openExisting(ctx, path, branch)
	}
	return cloneNew(ctx, remoteURL, branch, path)
}

func openExisting(ctx context.Context, path, branch string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, cerrors.Git(cerrors.Context{File: path}, err, "cannot open existing catalog worktree")
	}

	if err := repo.FetchContext(ctx, &git.FetchOptions{RemoteName: "origin"}); err != nil && err != git.NoErrAlreadyUpToDate {
		return nil, cerrors.Git(cerrors.Context{File: path}, err, "cannot fetch catalog remote")
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, cerrors.Git(cerrors.Context{File: path}, err, "cannot open catalog worktree object")
	}

	branchRef := plumbing.NewBranchReferenceName(branch)
	remoteRef := plumbing.NewRemoteReferenceName("origin", branch)
	if remoteHash, err := repo.Reference(remoteRef, true); err == nil {
		if err := wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Force: true}); err != nil {
			_ = repo.Storer.SetReference(plumbing.NewHashReference(branchRef, remoteHash.Hash()))
		}
		_ = wt.Reset(&git.ResetOptions{Commit: remoteHash.Hash(), Mode: git.HardReset})
	}
	return repo, nil
}

func cloneNew(ctx context.Context, remoteURL, branch, path string) (*git.Repository, error) {
	repo, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:           remoteURL,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	if err == nil {
		return repo, nil
	}

	// The branch may not exist yet on an otherwise-empty catalog
	// repository: fall back to a default clone and create the branch
	// locally so the first compile can still commit to it.
	if rmErr := os.RemoveAll(path); rmErr != nil {
		return nil, fmt.Errorf("cleaning up failed clone at %s: %w", path, rmErr)
	}
	repo, err = git.PlainCloneContext(ctx, path, false, &git.CloneOptions{URL: remoteURL})
	if err != nil {
		return nil, cerrors.Git(cerrors.Context{File: path}, err, "cannot clone catalog repository %s", remoteURL)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, cerrors.Git(cerrors.Context{File: path}, err, "cannot open catalog worktree object")
	}
	branchRef := plumbing.NewBranchReferenceName(branch)
	if err := wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Create: true}); err != nil {
		return nil, cerrors.Git(cerrors.Context{File: path}, err, "cannot create catalog branch %s", branch)
	}
	return repo, nil
}
