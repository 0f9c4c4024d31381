// Package hosting holds the HTTP clients for the external platform
// services a publish touches: the CDN, the search cluster and the edge
// domain router.
package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sitewright/internal/config"
	"sitewright/internal/model"
	"sitewright/internal/provision"
)

// CDNClient implements provision.Deployer against the CDN control API.
// Sites are keyed by tenant slug so a teardown job can address a site
// without the job history that created it.
type CDNClient struct {
	baseURL string
	client  *http.Client
}

// NewCDNClient creates a CDNClient from CDNConfig.
func NewCDNClient(cfg config.CDNConfig) (*CDNClient, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("cdn.baseURL is required")
	}

	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 30000
	}

	return &CDNClient{
		baseURL: base,
		client:  &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
	}, nil
}

type deployRequest struct {
	Site    string `json:"site"`
	BuildID string `json:"buildId"`
}

// deployResponse models only the subset of the CDN response we use.
type deployResponse struct {
	SiteID string `json:"siteId"`
	URL    string `json:"url"`
}

// Deploy uploads a finished build and returns the CDN site id and the
// public deployment URL.
func (c *CDNClient) Deploy(ctx context.Context, t *model.TenantSnapshot, buildID string) (provision.DeployResult, error) {
	body, err := json.Marshal(deployRequest{Site: t.Slug, BuildID: buildID})
	if err != nil {
		return provision.DeployResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sites", bytes.NewReader(body))
	if err != nil {
		return provision.DeployResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return provision.DeployResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return provision.DeployResult{}, fmt.Errorf("cdn deploy failed with status %d", resp.StatusCode)
	}

	var payload deployResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return provision.DeployResult{}, err
	}
	if payload.SiteID == "" {
		return provision.DeployResult{}, fmt.Errorf("cdn deploy returned no site id")
	}
	return provision.DeployResult{SiteID: payload.SiteID, URL: payload.URL}, nil
}

// Remove deletes a site from the CDN. A 404 means the site is already
// gone and is treated as success.
func (c *CDNClient) Remove(ctx context.Context, siteID string) error {
	if siteID == "" {
		return nil
	}

	endpoint := c.baseURL + "/v1/sites/" + url.PathEscape(siteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("cdn remove failed with status %d", resp.StatusCode)
	}
	return nil
}
