// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog implements the catalog pipeline: staging rendered
// manifests and secret refs into the catalog Git worktree, computing a
// migration-aware diff, generating a commit message, and pushing.
package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/projectsyn/commodore/internal/cerrors"
)

// CompileMetadata is transcribed into the generated commit message.
type CompileMetadata struct {
	RunID             string
	ClusterID         string
	TenantID          string
	CommodoreVersion  string
	CompiledAt        time.Time
}

// Pipeline drives one compile's catalog staging/commit/push sequence.
type Pipeline struct {
	WorktreePath      string
	AuthorName        string
	AuthorEmail       string
	RevisionOverrides bool
}

// Stage clears manifests/ and refs/ in the worktree and copies the
// compiled output and secret reference files into place, namespaced by
// instance.
func (p Pipeline) Stage(compiledRoot, refsSourceDir string) error {
	manifestsDir := filepath.Join(p.WorktreePath, "manifests")
	refsDir := filepath.Join(p.WorktreePath, "refs")

	if err := os.RemoveAll(manifestsDir); err != nil {
		return fmt.Errorf("clearing manifests/: %w", err)
	}
	if err := copyTree(compiledRoot, manifestsDir); err != nil {
		return fmt.Errorf("staging manifests: %w", err)
	}

	if err := os.RemoveAll(refsDir); err != nil {
		return fmt.Errorf("clearing refs/: %w", err)
	}
	if err := copyTree(refsSourceDir, refsDir); err != nil {
		return fmt.Errorf("staging refs: %w", err)
	}
	return nil
}

func copyTree(src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}

// CommitMessage generates the commit message from compile metadata.
func CommitMessage(meta CompileMetadata) string {
	return fmt.Sprintf("Catalog update for cluster %s (tenant %s)\n\nGenerated by Commodore %s at %s\nRun: %s",
		meta.ClusterID, meta.TenantID, meta.CommodoreVersion, meta.CompiledAt.UTC().Format(time.RFC3339), meta.RunID)
}

// Commit stages every change in the worktree and commits with the
// configured author identity.
func (p Pipeline) Commit(message string) (string, error) {
	repo, err := git.PlainOpen(p.WorktreePath)
	if err != nil {
		return "", cerrors.CatalogPush(cerrors.Context{}, err, "cannot open catalog worktree %s", p.WorktreePath)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", cerrors.CatalogPush(cerrors.Context{}, err, "cannot open catalog worktree object")
	}
	if _, err := wt.Add("."); err != nil {
		return "", cerrors.CatalogPush(cerrors.Context{}, err, "cannot stage catalog changes")
	}

	sig := &object.Signature{Name: p.AuthorName, Email: p.AuthorEmail, When: time.Now()}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	if err == git.ErrEmptyCommit {
		// Nothing changed since the last compile; report the existing
		// HEAD instead of failing.
		head, headErr := repo.Head()
		if headErr != nil {
			return "", cerrors.CatalogPush(cerrors.Context{}, headErr, "cannot read catalog HEAD")
		}
		return head.Hash().String(), nil
	}
	if err != nil {
		return "", cerrors.CatalogPush(cerrors.Context{}, err, "cannot commit catalog changes")
	}
	return hash.String(), nil
}

// Push pushes the catalog branch. Refuses unconditionally when the
// compile used any revision override.
func (p Pipeline) Push() error {
	if p.RevisionOverrides {
		return ErrPushWithRevisionOverride
	}
	repo, err := git.PlainOpen(p.WorktreePath)
	if err != nil {
		return cerrors.CatalogPush(cerrors.Context{}, err, "cannot open catalog worktree %s", p.WorktreePath)
	}
	if err := repo.Push(&git.PushOptions{RemoteName: "origin"}); err != nil && err != git.NoErrAlreadyUpToDate {
		return cerrors.CatalogPush(cerrors.Context{}, err, "cannot push catalog")
	}
	return nil
}

// ListManifestFiles returns the relative paths of every file currently
// staged under manifests/, sorted for deterministic iteration.
func (p Pipeline) ListManifestFiles() ([]string, error) {
	root := filepath.Join(p.WorktreePath, "manifests")
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	sort.Strings(files)
	return files, err
}
