// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package gitcache implements the Git Repository Cache: one
// bare clone per canonical remote URL under a content-addressed store,
// and one checked-out worktree per requested dependency name. Built on
// github.com/go-git/go-git/v5 instead of shelling out to the git
// binary.
package gitcache

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/projectsyn/commodore/internal/cachedb"
	"github.com/projectsyn/commodore/internal/cerrors"
	"github.com/projectsyn/commodore/internal/model"
)

// Cache manages the on-disk bare-clone store and the worktrees checked
// out from it.
type Cache struct {
	bareRoot      string
	worktreeRoot  string
	ledger        *cachedb.Ledger
	logger        *slog.Logger
	remoteLocks   sync.Map // canonical URL -> *sync.Mutex
	worktreeLocks sync.Map // worktree name -> *sync.Mutex
}

// New creates a Cache rooted at bareRoot (".repos"-style bare clone
// store) with worktrees materialized under worktreeRoot
// ("dependencies/"-style).
func New(bareRoot, worktreeRoot string, ledger *cachedb.Ledger, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		bareRoot:     bareRoot,
		worktreeRoot: worktreeRoot,
		ledger:       ledger,
		logger:       logger,
	}
}

func (c *Cache) lockFor(m *sync.Map, key string) *sync.Mutex {
	l, _ := m.LoadOrStore(key, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// barePath derives ".repos/<host>/<path>.git" from a canonical remote.
func (c *Cache) barePath(canonical string) (string, error) {
	if strings.HasPrefix(canonical, "git@") {
		rest := strings.TrimPrefix(canonical, "git@")
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return "", fmt.Errorf("invalid canonical ssh remote %q", canonical)
		}
		return filepath.Join(c.bareRoot, parts[0], parts[1]), nil
	}
	u, err := url.Parse(canonical)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.bareRoot, u.Host, strings.TrimPrefix(u.Path, "/")), nil
}

// EnsureWorktree materializes repo at worktreeName under worktreeRoot,
// guaranteed to be checked out at repo.Revision on return.
func (c *Cache) EnsureWorktree(ctx context.Context, repo model.RepositoryHandle, worktreeName string, force bool) (worktreePath string, commitSHA string, err error) {
	canonical, err := model.CanonicalizeRemote(repo.RemoteURL)
	if err != nil {
		return "", "", cerrors.Git(cerrors.Context{}, err, "invalid remote url %q", repo.RemoteURL)
	}

	lock := c.lockFor(&c.remoteLocks, canonical)
	lock.Lock()
	defer lock.Unlock()

	barePath, err := c.barePath(canonical)
	if err != nil {
		return "", "", cerrors.Git(cerrors.Context{}, err, "failed to derive cache path for %q", canonical)
	}

	bareRepo, err := c.ensureBare(ctx, canonical, barePath, repo.RemoteURL)
	if err != nil {
		return "", "", err
	}

	commit, err := resolveRevision(bareRepo, repo.Revision)
	if err != nil {
		return "", "", cerrors.Git(cerrors.Context{}, err, "cannot resolve revision %q in %q", repo.Revision, canonical)
	}

	if c.ledger != nil {
		_ = c.ledger.RecordFetch(canonical, barePath, commit.String())
	}

	wtLock := c.lockFor(&c.worktreeLocks, worktreeName)
	wtLock.Lock()
	defer wtLock.Unlock()

	worktreePath = filepath.Join(c.worktreeRoot, worktreeName)
	if err := c.ensureWorktreeAt(worktreePath, barePath, commit, force); err != nil {
		return "", "", err
	}

	pushURL, err := model.PushURL(canonical)
	if err == nil {
		_ = c.configurePushURL(worktreePath, pushURL)
	}

	return worktreePath, commit.String(), nil
}

func (c *Cache) ensureBare(ctx context.Context, canonical, barePath, remoteURL string) (*git.Repository, error) {
	if _, statErr := os.Stat(barePath); statErr == nil {
		repo, err := git.PlainOpen(barePath)
		if err != nil {
			return nil, cerrors.Git(cerrors.Context{}, err, "cannot open existing bare clone at %s", barePath)
		}
		if err := c.fetchWithRetry(ctx, repo, remoteURL); err != nil {
			return nil, err
		}
		return repo, nil
	}

	if err := os.MkdirAll(filepath.Dir(barePath), 0o755); err != nil {
		return nil, cerrors.Git(cerrors.Context{}, err, "cannot create cache directory for %s", canonical)
	}

	auth, err := authForRemote(remoteURL)
	if err != nil {
		return nil, cerrors.Git(cerrors.Context{}, err, "cannot configure auth for %s", remoteURL)
	}

	var repo *git.Repository
	cloneErr := retryOnce(func() error {
		var err error
		repo, err = git.PlainCloneContext(ctx, barePath, true, &git.CloneOptions{
			URL:  remoteURL,
			Auth: auth,
		})
		return err
	})
	if cloneErr != nil {
		return nil, cerrors.Git(cerrors.Context{}, cloneErr, "cannot clone %s", remoteURL)
	}
	return repo, nil
}

func (c *Cache) fetchWithRetry(ctx context.Context, repo *git.Repository, remoteURL string) error {
	auth, err := authForRemote(remoteURL)
	if err != nil {
		return cerrors.Git(cerrors.Context{}, err, "cannot configure auth for %s", remoteURL)
	}

	fetchErr := retryOnce(func() error {
		err := repo.FetchContext(ctx, &git.FetchOptions{
			RemoteName: "origin",
			// Mirror branches and tags into the bare clone's own refs so
			// revision resolution and worktree materialization both see
			// the remote's current state.
			RefSpecs: []gitconfig.RefSpec{
				"+refs/heads/*:refs/heads/*",
				"+refs/tags/*:refs/tags/*",
			},
			Prune: true,
			Auth:  auth,
		})
		if err == git.NoErrAlreadyUpToDate {
			return nil
		}
		return err
	})
	if fetchErr != nil {
		// A fetch failure against an otherwise usable existing clone is
		// not fatal by itself: downstream revision resolution may still
		// succeed against already-known refs. The fetch error is only
		// logged; if the revision then fails to resolve, the caller
		// reports that resolution error instead.
		c.logger.Warn("git fetch failed, continuing with existing refs", "remote", remoteURL, "error", fetchErr)
	}
	return nil
}

func retryOnce(op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	return op()
}

func resolveRevision(repo *git.Repository, revision string) (*plumbing.Hash, error) {
	return repo.ResolveRevision(plumbing.Revision(revision))
}

// ensureWorktreeAt materializes a checkout of barePath at commit under
// worktreePath. go-git has no direct equivalent of `git worktree add`
// sharing one object store across checkouts, so we approximate it with
// a local, non-bare clone of the bare repository (cheap: same
// filesystem, hardlink-friendly) checked out at the target commit.
func (c *Cache) ensureWorktreeAt(worktreePath, barePath string, commit *plumbing.Hash, force bool) error {
	if _, err := os.Stat(worktreePath); err == nil {
		repo, err := git.PlainOpen(worktreePath)
		if err != nil {
			return cerrors.Git(cerrors.Context{}, err, "cannot open worktree %s", worktreePath)
		}
		head, err := repo.Head()
		if err == nil && head.Hash() == *commit {
			return nil
		}

		wt, err := repo.Worktree()
		if err != nil {
			return cerrors.Git(cerrors.Context{}, err, "cannot open worktree object for %s", worktreePath)
		}
		status, err := wt.Status()
		if err != nil {
			return cerrors.Git(cerrors.Context{}, err, "cannot stat worktree %s", worktreePath)
		}
		if !status.IsClean() && !force {
			return cerrors.DirtyWorktree(cerrors.Context{File: worktreePath}, "worktree has local modifications; rerun with --force to discard them")
		}
		// The target commit may be newer than the worktree's last
		// materialization; refresh objects from the bare clone first.
		if err := repo.Fetch(&git.FetchOptions{RemoteName: "origin"}); err != nil && err != git.NoErrAlreadyUpToDate {
			return cerrors.Git(cerrors.Context{}, err, "cannot refresh worktree %s from cache", worktreePath)
		}
		if !status.IsClean() && force {
			if err := wt.Reset(&git.ResetOptions{Commit: *commit, Mode: git.HardReset}); err != nil {
				return cerrors.Git(cerrors.Context{}, err, "cannot reset worktree %s", worktreePath)
			}
			if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
				return cerrors.Git(cerrors.Context{}, err, "cannot clean worktree %s", worktreePath)
			}
		}
		if err := wt.Checkout(&git.CheckoutOptions{Hash: *commit, Force: true}); err != nil {
			return cerrors.Git(cerrors.Context{}, err, "cannot checkout %s in %s", commit, worktreePath)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(worktreePath), 0o755); err != nil {
		return cerrors.Git(cerrors.Context{}, err, "cannot create worktree parent for %s", worktreePath)
	}
	repo, err := git.PlainClone(worktreePath, false, &git.CloneOptions{
		URL: "file://" + barePath,
	})
	if err != nil {
		return cerrors.Git(cerrors.Context{}, err, "cannot materialize worktree at %s", worktreePath)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return cerrors.Git(cerrors.Context{}, err, "cannot open worktree object for %s", worktreePath)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: *commit, Force: true}); err != nil {
		return cerrors.Git(cerrors.Context{}, err, "cannot checkout %s in %s", commit, worktreePath)
	}
	return nil
}

func (c *Cache) configurePushURL(worktreePath, pushURL string) error {
	repo, err := git.PlainOpen(worktreePath)
	if err != nil {
		return err
	}
	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	cfg.Raw.Section("remote").Subsection("origin").SetOption("pushurl", pushURL)
	return repo.SetConfig(cfg)
}
