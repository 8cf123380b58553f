// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package lieutenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetClusterDescriptor(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/clusters/c-test":
			w.Write([]byte(`{
				"id": "c-test",
				"tenant": "t-tenant",
				"displayName": "Test Cluster",
				"catalog_url": "ssh://git@git.example.com/cluster-catalogs/c-test.git",
				"facts": {"cloud": "cloudscale", "distribution": "openshift4", "region": "rma1"},
				"dynamicFacts": {"kubernetesVersion": "1.28"},
				"gitRepo": {"revision": "feature/override"}
			}`))
		case "/tenants/t-tenant":
			w.Write([]byte(`{
				"id": "t-tenant",
				"displayName": "Test Tenant",
				"globalGitRepoURL": "https://git.example.com/commodore-defaults.git",
				"globalGitRepoRevision": "v1",
				"gitRepo": {"url": "https://git.example.com/tenant-t-tenant.git"}
			}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "test-token", time.Second)
	descriptor, err := c.GetClusterDescriptor(context.Background(), "c-test")
	require.NoError(t, err)

	require.Equal(t, "c-test", descriptor.ClusterID)
	require.Equal(t, "t-tenant", descriptor.TenantID)
	require.Equal(t, "Test Cluster", descriptor.DisplayName)
	require.Equal(t, "Test Tenant", descriptor.TenantDisplayName)
	require.Equal(t, "ssh://git@git.example.com/cluster-catalogs/c-test.git", descriptor.CatalogURL)
	require.Equal(t, "cloudscale", descriptor.Facts.Cloud)
	require.Equal(t, "openshift4", descriptor.Facts.Distribution)
	require.Equal(t, "https://git.example.com/commodore-defaults.git", descriptor.GlobalGitRepoURL)
	require.Equal(t, "v1", descriptor.GlobalGitRepoRevision)
	require.Equal(t, "https://git.example.com/tenant-t-tenant.git", descriptor.TenantGitRepoURL)
	require.Equal(t, "feature/override", descriptor.TenantGitRepoRevision)
	require.NoError(t, descriptor.Validate())
}

func TestGetClusterDescriptor_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-token", time.Second)
	_, err := c.GetClusterDescriptor(context.Background(), "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 404")
}

func TestPostCompileMeta(t *testing.T) {
	t.Parallel()

	var posted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/clusters/c-test/compile-meta", r.URL.Path)
		posted = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-token", time.Second)
	err := c.PostCompileMeta(context.Background(), "c-test", CompileMetaInput{
		GlobalCommit:     "abc123",
		TenantCommit:     "def456",
		CommodoreVersion: "test",
	})
	require.NoError(t, err)
	require.True(t, posted)
}
