// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/pmezard/go-difflib/difflib"
	sigsyaml "sigs.k8s.io/yaml"
)

// MigrationFilter is a named noise-suppression rule selected by the
// user. It only affects what is shown, never the output.
type MigrationFilter string

const (
	MigrationKapitan029To030   MigrationFilter = "kapitan-0.29-to-0.30"
	MigrationIgnoreYAMLFormat  MigrationFilter = "ignore-yaml-formatting"
)

var managedByLabel = regexp.MustCompile(`(?m)^\s*app\.kubernetes\.io/managed-by:\s*"?commodore"?\s*\n`)

// FileDiff is one file's unified diff against the worktree's current
// HEAD revision.
type FileDiff struct {
	Path     string
	Unified  string
	Material bool
}

// Diff computes the unified diff of every file in files against the
// worktree's current HEAD, applying the requested migration filters to
// decide materiality.
func (p Pipeline) Diff(files []string, filters []MigrationFilter) ([]FileDiff, error) {
	repo, err := git.PlainOpen(p.WorktreePath)
	if err != nil {
		return nil, fmt.Errorf("opening catalog worktree: %w", err)
	}

	head, err := repo.Head()
	var headCommit *headSnapshot
	if err == nil {
		headCommit, err = commitAt(repo, head.Hash())
	}

	diffs := make([]FileDiff, 0, len(files))
	for _, rel := range files {
		oldContent := ""
		if headCommit != nil {
			if c, ok := headCommit.file(rel); ok {
				oldContent = c
			}
		}
		newBytes, readErr := os.ReadFile(p.WorktreePath + "/manifests/" + rel)
		newContent := ""
		if readErr == nil {
			newContent = string(newBytes)
		}

		if oldContent == newContent {
			continue
		}

		unified := difflib.UnifiedDiff{
			A:        difflib.SplitLines(oldContent),
			B:        difflib.SplitLines(newContent),
			FromFile: "a/manifests/" + rel,
			ToFile:   "b/manifests/" + rel,
			Context:  3,
		}
		text, err := difflib.GetUnifiedDiffString(unified)
		if err != nil {
			return nil, fmt.Errorf("diffing %s: %w", rel, err)
		}

		diffs = append(diffs, FileDiff{
			Path:     rel,
			Unified:  text,
			Material: isMaterial(oldContent, newContent, filters),
		})
	}
	return diffs, nil
}

// isMaterial reports whether a change survives the selected migration
// filters: a change hidden by every active filter is not material.
func isMaterial(oldContent, newContent string, filters []MigrationFilter) bool {
	if len(filters) == 0 {
		return true
	}

	a, b := oldContent, newContent
	for _, f := range filters {
		switch f {
		case MigrationKapitan029To030:
			a = managedByLabel.ReplaceAllString(a, "")
			b = managedByLabel.ReplaceAllString(b, "")
		case MigrationIgnoreYAMLFormat:
			a = canonicalYAML(a)
			b = canonicalYAML(b)
		}
	}
	return a != b
}

// canonicalYAML round-trips every document of s through a canonicalizing
// encoder (sorted keys, block style, uniform quoting) so that pure
// formatting differences compare equal. Documents that fail to parse
// fall back to whitespace normalization.
func canonicalYAML(s string) string {
	var out strings.Builder
	for _, doc := range strings.Split(s, "\n---\n") {
		var v any
		if err := sigsyaml.Unmarshal([]byte(doc), &v); err != nil {
			out.WriteString(normalizeWhitespace(doc))
			out.WriteString("\n---\n")
			continue
		}
		canonical, err := sigsyaml.Marshal(v)
		if err != nil {
			out.WriteString(normalizeWhitespace(doc))
			out.WriteString("\n---\n")
			continue
		}
		out.Write(canonical)
		out.WriteString("\n---\n")
	}
	return out.String()
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(strings.TrimSpace(l), " \t")
	}
	return strings.Join(lines, "\n")
}

// headSnapshot holds every manifests/ file's content at a given commit,
// keyed by path relative to manifests/.
type headSnapshot struct {
	files map[string]string
}

func (s *headSnapshot) file(path string) (string, bool) {
	content, ok := s.files[path]
	return content, ok
}

func commitAt(repo *git.Repository, hash plumbing.Hash) (*headSnapshot, error) {
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	files := map[string]string{}
	walker := tree.Files()
	for {
		f, err := walker.Next()
		if err != nil {
			break
		}
		if !strings.HasPrefix(f.Name, "manifests/") {
			continue
		}
		content, err := f.Contents()
		if err != nil {
			continue
		}
		files[strings.TrimPrefix(f.Name, "manifests/")] = content
	}
	return &headSnapshot{files: files}, nil
}
