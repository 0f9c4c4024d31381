// Package branding imports visual identity hints from a tenant's
// existing website for the setup wizard to prefill.
package branding

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sitewright/internal/config"
	"sitewright/internal/model"
)

// Importer fetches a page and extracts branding signals from its
// metadata. It never follows scripts; only the served HTML is read.
type Importer struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// NewImporter creates an Importer from BrandingConfig.
func NewImporter(cfg config.BrandingConfig) *Importer {
	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 2 << 20
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "sitewright/1.0"
	}

	return &Importer{
		client:    &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		userAgent: ua,
		maxBody:   maxBody,
	}
}

// Import fetches pageURL and maps its metadata into a Branding value.
// Missing signals leave the corresponding field empty.
func (i *Importer) Import(ctx context.Context, pageURL string) (model.Branding, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return model.Branding{}, fmt.Errorf("parse url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return model.Branding{}, fmt.Errorf("unsupported scheme %q", base.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return model.Branding{}, err
	}
	req.Header.Set("User-Agent", i.userAgent)

	resp, err := i.client.Do(req)
	if err != nil {
		return model.Branding{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Branding{}, fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, i.maxBody))
	if err != nil {
		return model.Branding{}, err
	}

	title := doc.Find("meta[property='og:site_name']").AttrOr("content", "")
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	tagline := doc.Find("meta[name=description]").AttrOr("content", "")
	if tagline == "" {
		tagline = doc.Find("meta[property='og:description']").AttrOr("content", "")
	}

	logo := doc.Find("link[rel=icon]").AttrOr("href", "")
	if logo == "" {
		logo = doc.Find("link[rel='shortcut icon']").AttrOr("href", "")
	}
	if logo == "" {
		logo = doc.Find("link[rel=apple-touch-icon]").AttrOr("href", "")
	}

	return model.Branding{
		SiteTitle:    strings.TrimSpace(title),
		Tagline:      strings.TrimSpace(tagline),
		LogoURL:      resolveURL(base, logo),
		OgImageURL:   resolveURL(base, doc.Find("meta[property='og:image']").AttrOr("content", "")),
		PrimaryColor: strings.TrimSpace(doc.Find("meta[name=theme-color]").AttrOr("content", "")),
	}, nil
}

// resolveURL makes relative asset references absolute against the page.
func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
