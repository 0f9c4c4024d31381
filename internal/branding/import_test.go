package branding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"sitewright/internal/config"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>Acme Plumbing &amp; Heating</title>
<meta name="description" content="Plumbers you can trust since 1982">
<meta name="theme-color" content="#0a5c99">
<meta property="og:site_name" content="Acme Plumbing">
<meta property="og:image" content="/assets/og.png">
<link rel="icon" href="/favicon.ico">
</head>
<body><h1>Acme</h1></body>
</html>`

func TestImportExtractsMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	imp := NewImporter(config.BrandingConfig{})
	got, err := imp.Import(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if got.SiteTitle != "Acme Plumbing" {
		t.Fatalf("siteTitle = %q, want og:site_name", got.SiteTitle)
	}
	if got.Tagline != "Plumbers you can trust since 1982" {
		t.Fatalf("tagline = %q", got.Tagline)
	}
	if got.PrimaryColor != "#0a5c99" {
		t.Fatalf("primaryColor = %q", got.PrimaryColor)
	}
	// Relative asset references come back absolute.
	if got.LogoURL != srv.URL+"/favicon.ico" {
		t.Fatalf("logoUrl = %q", got.LogoURL)
	}
	if got.OgImageURL != srv.URL+"/assets/og.png" {
		t.Fatalf("ogImageUrl = %q", got.OgImageURL)
	}
}

func TestImportFallsBackToTitleTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title> Plain Title </title></head><body></body></html>`))
	}))
	defer srv.Close()

	imp := NewImporter(config.BrandingConfig{})
	got, err := imp.Import(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got.SiteTitle != "Plain Title" {
		t.Fatalf("siteTitle = %q, want trimmed <title>", got.SiteTitle)
	}
	if got.Tagline != "" || got.LogoURL != "" {
		t.Fatalf("missing signals should stay empty, got %+v", got)
	}
}

func TestImportRejectsBadStatusAndScheme(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	imp := NewImporter(config.BrandingConfig{})
	if _, err := imp.Import(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected error on 404")
	}
	if _, err := imp.Import(context.Background(), "ftp://example.com"); err == nil {
		t.Fatalf("expected error on non-http scheme")
	}
}
