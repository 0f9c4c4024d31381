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

// SearchClient implements provision.SearchIndexer against the search
// cluster's admin API. Index ids are derived from the tenant id so a
// teardown job can reconstruct them.
type SearchClient struct {
	baseURL string
	client  *http.Client
}

// NewSearchClient creates a SearchClient from SearchIndexConfig.
func NewSearchClient(cfg config.SearchIndexConfig) (*SearchClient, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("search.baseURL is required")
	}

	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 15000
	}

	return &SearchClient{
		baseURL: base,
		client:  &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
	}, nil
}

type searchDocument struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
	URL      string   `json:"url"`
}

type ensureIndexRequest struct {
	Documents []searchDocument `json:"documents"`
}

// EnsureIndex creates or replaces the tenant's index and loads one
// document per listing. It returns the index id.
func (c *SearchClient) EnsureIndex(ctx context.Context, t *model.TenantSnapshot) (string, error) {
	categories := make(map[string]string, len(t.Categories))
	for _, cat := range t.Categories {
		categories[cat.ID.String()] = cat.Name
	}

	docs := make([]searchDocument, 0, len(t.Listings))
	for _, l := range t.Listings {
		docs = append(docs, searchDocument{
			ID:       l.ID.String(),
			Name:     l.Name,
			Category: categories[l.CategoryID.String()],
			Tags:     l.Tags,
			URL:      "/listings/" + l.Slug + "/",
		})
	}

	body, err := json.Marshal(ensureIndexRequest{Documents: docs})
	if err != nil {
		return "", err
	}

	indexID := provision.SearchIndexID(t.ID)
	endpoint := c.baseURL + "/v1/indexes/" + url.PathEscape(indexID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("search index create failed with status %d", resp.StatusCode)
	}
	return indexID, nil
}

// DeleteIndex drops an index. A 404 is treated as success.
func (c *SearchClient) DeleteIndex(ctx context.Context, indexID string) error {
	if indexID == "" {
		return nil
	}

	endpoint := c.baseURL + "/v1/indexes/" + url.PathEscape(indexID)
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
		return fmt.Errorf("search index delete failed with status %d", resp.StatusCode)
	}
	return nil
}
