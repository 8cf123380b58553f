// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package lieutenant is a thin client for the Lieutenant tenant/cluster
// metadata API: plain REST over net/http plus unverified JWT claim
// inspection of the bearer token for "commodore login status".
package lieutenant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/projectsyn/commodore/internal/model"
)

// Client talks to the Lieutenant API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// New builds a Client with the given request timeout (default 5s).
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type clusterResponse struct {
	ID           string         `json:"id"`
	Tenant       string         `json:"tenant"`
	DisplayName  string         `json:"displayName"`
	CatalogURL   string         `json:"catalog_url"`
	Facts        model.Facts    `json:"facts"`
	DynamicFacts map[string]any `json:"dynamicFacts"`
	GitRepo      struct {
		URL      string `json:"url"`
		Revision string `json:"revision"`
	} `json:"gitRepo"`
}

type tenantResponse struct {
	ID                    string `json:"id"`
	DisplayName           string `json:"displayName"`
	GlobalGitRepoURL      string `json:"globalGitRepoURL"`
	GlobalGitRepoRevision string `json:"globalGitRepoRevision"`
	GitRepo               struct {
		URL string `json:"url"`
	} `json:"gitRepo"`
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lieutenant %s returned status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetClusterDescriptor fetches the cluster and its owning tenant and
// combines them into a ClusterDescriptor.
func (c *Client) GetClusterDescriptor(ctx context.Context, clusterID string) (model.ClusterDescriptor, error) {
	var cluster clusterResponse
	if err := c.do(ctx, http.MethodGet, "/clusters/"+clusterID, &cluster); err != nil {
		return model.ClusterDescriptor{}, err
	}

	var tenant tenantResponse
	if err := c.do(ctx, http.MethodGet, "/tenants/"+cluster.Tenant, &tenant); err != nil {
		return model.ClusterDescriptor{}, err
	}

	return model.ClusterDescriptor{
		ClusterID:             cluster.ID,
		TenantID:              cluster.Tenant,
		DisplayName:           cluster.DisplayName,
		TenantDisplayName:     tenant.DisplayName,
		CatalogURL:            cluster.CatalogURL,
		Facts:                 cluster.Facts,
		DynamicFacts:          cluster.DynamicFacts,
		GlobalGitRepoURL:      tenant.GlobalGitRepoURL,
		GlobalGitRepoRevision: tenant.GlobalGitRepoRevision,
		TenantGitRepoURL:      tenant.GitRepo.URL,
		TenantGitRepoRevision: cluster.GitRepo.Revision,
	}, nil
}

// CompileMetaInput is posted back to Lieutenant after a successful
// compile so it can track the last-known-good commit per cluster.
type CompileMetaInput struct {
	GlobalCommit     string `json:"globalCommit"`
	TenantCommit     string `json:"tenantCommit"`
	CommodoreVersion string `json:"commodoreVersion"`
}

// PostCompileMeta reports compile metadata for a cluster.
func (c *Client) PostCompileMeta(ctx context.Context, clusterID string, meta CompileMetaInput) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling compile metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/clusters/"+clusterID+"/compile-meta", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building compile-meta request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting compile metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("lieutenant compile-meta returned status %d", resp.StatusCode)
	}
	return nil
}
