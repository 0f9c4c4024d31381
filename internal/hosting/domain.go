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
)

// DomainClient implements provision.DomainConfigurer against the edge
// router API. Tenants without a custom domain get a subdomain of the
// platform domain.
type DomainClient struct {
	baseURL        string
	platformDomain string
	client         *http.Client
}

// NewDomainClient creates a DomainClient from DomainConfig.
func NewDomainClient(cfg config.DomainConfig) (*DomainClient, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("domain.baseURL is required")
	}
	if cfg.PlatformDomain == "" {
		return nil, fmt.Errorf("domain.platformDomain is required")
	}

	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 15000
	}

	return &DomainClient{
		baseURL:        base,
		platformDomain: cfg.PlatformDomain,
		client:         &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
	}, nil
}

type configureDomainRequest struct {
	Domain string `json:"domain"`
	Target string `json:"target"`
}

// Configure binds the tenant's domain to its CDN site and returns the
// bound domain.
func (c *DomainClient) Configure(ctx context.Context, t *model.TenantSnapshot) (string, error) {
	domain := t.Domain
	if domain == "" {
		domain = t.Slug + "." + c.platformDomain
	}

	body, err := json.Marshal(configureDomainRequest{Domain: domain, Target: t.Slug})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/domains", bytes.NewReader(body))
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
		return "", fmt.Errorf("domain configure failed with status %d", resp.StatusCode)
	}
	return domain, nil
}

// Release unbinds a domain. A 404 is treated as success.
func (c *DomainClient) Release(ctx context.Context, domain string) error {
	if domain == "" {
		return nil
	}

	endpoint := c.baseURL + "/v1/domains/" + url.PathEscape(domain)
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
		return fmt.Errorf("domain release failed with status %d", resp.StatusCode)
	}
	return nil
}
