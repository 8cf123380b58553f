// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package model holds the core data types shared across the catalog
// compiler: the cluster descriptor, repository handles, and the
// package/component/instance dependency variants.
package model

import (
	"fmt"
	"net/url"
	"strings"
)

// Facts are the static cluster facts injected into the inventory as the
// lowest-precedence class. Cloud and Distribution are mandatory; Region
// is conditional on the cloud provider.
type Facts struct {
	Cloud        string `json:"cloud" yaml:"cloud"`
	Distribution string `json:"distribution" yaml:"distribution"`
	Region       string `json:"region,omitempty" yaml:"region,omitempty"`
}

// ClusterDescriptor is the identity and static configuration of a single
// cluster, as reported by the Lieutenant API.
type ClusterDescriptor struct {
	ClusterID         string         `json:"id" yaml:"name"`
	TenantID          string         `json:"tenant" yaml:"tenant"`
	DisplayName       string         `json:"displayName" yaml:"display_name"`
	TenantDisplayName string         `json:"tenantDisplayName" yaml:"tenant_display_name"`
	CatalogURL        string         `json:"catalog_url" yaml:"catalog_url"`
	Facts             Facts          `json:"facts" yaml:"facts"`
	DynamicFacts      map[string]any `json:"dynamicFacts,omitempty" yaml:"dynamic_facts,omitempty"`

	// GlobalGitRepoURL/Revision and TenantGitRepoURL/Revision allow the
	// Lieutenant response to override the default global/tenant config
	// repository locations.
	GlobalGitRepoURL      string `json:"-" yaml:"-"`
	GlobalGitRepoRevision string `json:"-" yaml:"-"`
	TenantGitRepoURL      string `json:"-" yaml:"-"`
	TenantGitRepoRevision string `json:"-" yaml:"-"`
}

// Validate enforces the mandatory-fact invariant from the data model.
func (c ClusterDescriptor) Validate() error {
	if c.ClusterID == "" {
		return fmt.Errorf("cluster descriptor: cluster id is required")
	}
	if c.TenantID == "" {
		return fmt.Errorf("cluster descriptor: tenant id is required")
	}
	if c.Facts.Cloud == "" {
		return fmt.Errorf("cluster descriptor: facts.cloud is required")
	}
	if c.Facts.Distribution == "" {
		return fmt.Errorf("cluster descriptor: facts.distribution is required")
	}
	return nil
}

// RepositoryHandle identifies a Git repository pinned to a revision, plus
// an optional subpath within it (used when a package or component lives
// in a subdirectory of its repository).
type RepositoryHandle struct {
	RemoteURL string
	Revision  string
	Subpath   string
}

// CanonicalURL lowercases the host and strips credentials and
// non-standard port markers, so that two RepositoryHandles pointing at
// the same repository through different spellings share one cache
// entry.
func (h RepositoryHandle) CanonicalURL() (string, error) {
	return CanonicalizeRemote(h.RemoteURL)
}

// CanonicalizeRemote normalizes a Git remote URL for use as a cache key:
// the host is lowercased and any embedded userinfo (credentials) is
// dropped. Non-HTTP(S) SSH-style URLs (git@host:org/repo.git) are passed
// through with just the host lowercased.
func CanonicalizeRemote(remote string) (string, error) {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return "", fmt.Errorf("empty remote url")
	}

	if strings.HasPrefix(remote, "git@") {
		rest := strings.TrimPrefix(remote, "git@")
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return "", fmt.Errorf("invalid ssh remote url %q", remote)
		}
		host := strings.ToLower(parts[0])
		path := strings.TrimSuffix(parts[1], ".git")
		return fmt.Sprintf("git@%s:%s.git", host, path), nil
	}

	u, err := url.Parse(remote)
	if err != nil {
		return "", fmt.Errorf("invalid remote url %q: %w", remote, err)
	}
	u.User = nil
	host := u.Hostname()
	u.Host = strings.ToLower(host)
	u.Path = strings.TrimSuffix(u.Path, ".git")
	return u.String() + ".git", nil
}

// PushURL derives the push URL from a canonical remote following the
// pattern https://host/org/repo[.git] -> git@host:org/repo.git. SSH
// remotes are returned unchanged.
func PushURL(canonicalRemote string) (string, error) {
	if strings.HasPrefix(canonicalRemote, "git@") {
		return canonicalRemote, nil
	}
	u, err := url.Parse(canonicalRemote)
	if err != nil {
		return "", fmt.Errorf("invalid remote url %q: %w", canonicalRemote, err)
	}
	path := strings.TrimPrefix(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	return fmt.Sprintf("git@%s:%s.git", u.Host, path), nil
}

// ComponentMetadata is the constant `_metadata` parameter subtree shipped
// by every component. It is never mergeable by the inventory hierarchy.
type ComponentMetadata struct {
	MultiInstance      bool              `yaml:"multi_instance"`
	MultiVersion       bool              `yaml:"multi_version"`
	LibraryAliases     map[string]string `yaml:"library_aliases"`
	Deprecated         bool              `yaml:"deprecated"`
	ReplacedBy         string            `yaml:"replaced_by"`
	Replaces           string            `yaml:"replaces"`
	DeprecationNotice  string            `yaml:"deprecation_notice"`
}

// Package is a configuration package: a Git repository bundling inventory
// classes, no templates.
type Package struct {
	Name         string
	Repo         RepositoryHandle
	CheckoutPath string
	ClassFiles   []string
}

// Component is a versioned Git repository bundling templates, default
// parameters, a component class, optional libraries and post-processing.
type Component struct {
	Name               string
	Repo               RepositoryHandle
	CheckoutPath       string
	Metadata           ComponentMetadata
	ComponentClassFile string
	DefaultsClassFile  string
	Libraries          []string
	JsonnetFile        string
	HasPostprocess     bool
}

// LibraryAllowedPrefix reports whether a library file name is permitted
// for this component: either it is prefixed with "<name>-", equals
// "<name>.libsonnet", or is explicitly declared in LibraryAliases.
func (c Component) LibraryAllowedPrefix(fileName string) bool {
	if fileName == c.Name+".libsonnet" {
		return true
	}
	if strings.HasPrefix(fileName, c.Name+"-") {
		return true
	}
	_, ok := c.Metadata.LibraryAliases[fileName]
	return ok
}

// ComponentInstance is a named occurrence ("alias") of a Component within
// a cluster. Every plainly listed component gets a synthesized identity
// instance (InstanceName == Base.Name).
type ComponentInstance struct {
	InstanceName string
	Base         *Component
	RepoOverride *RepositoryHandle
	CheckoutPath string
}

// IsAlias reports whether this instance uses a name different from its
// base component's name.
func (i ComponentInstance) IsAlias() bool {
	return i.InstanceName != i.Base.Name
}

// IsMultiVersion reports whether this instance pins a repository
// different from its base component's.
func (i ComponentInstance) IsMultiVersion() bool {
	return i.RepoOverride != nil
}

// SnakeCase converts dashes to underscores, as used when deriving a
// parameter key from an instance name (e.g. "nfs-b" -> "nfs_b").
func SnakeCase(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
