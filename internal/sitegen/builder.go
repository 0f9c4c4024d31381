// Package sitegen renders a tenant snapshot into a static directory site.
package sitegen

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"sitewright/internal/model"
	"sitewright/internal/provision"
)

// Builder writes static builds under root/<buildID>/. Each build is
// self-contained so deploys and discards address a whole directory.
type Builder struct {
	root  string
	newID provision.IDGen
}

// NewBuilder creates a Builder. newID may be nil, in which case random
// build ids are used.
func NewBuilder(root string, newID provision.IDGen) *Builder {
	if newID == nil {
		newID = uuid.New
	}
	return &Builder{root: root, newID: newID}
}

type pageData struct {
	Tenant   *model.TenantSnapshot
	Category *model.Category
	Listing  *model.Listing
	Listings []model.Listing
}

// Build renders the index page, one page per category and one page per
// listing. It returns the build id, output directory and page count.
func (b *Builder) Build(ctx context.Context, t *model.TenantSnapshot) (provision.BuildResult, error) {
	buildID := b.newID().String()
	dir := filepath.Join(b.root, buildID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return provision.BuildResult{}, fmt.Errorf("create build dir: %w", err)
	}

	pages := 0
	write := func(rel string, tpl *template.Template, data pageData) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := tpl.Execute(f, data); err != nil {
			return fmt.Errorf("render %s: %w", rel, err)
		}
		pages++
		return nil
	}

	byCategory := make(map[uuid.UUID][]model.Listing, len(t.Categories))
	for _, l := range t.Listings {
		byCategory[l.CategoryID] = append(byCategory[l.CategoryID], l)
	}

	if err := write("index.html", indexTpl, pageData{Tenant: t}); err != nil {
		return provision.BuildResult{}, err
	}
	for i := range t.Categories {
		c := &t.Categories[i]
		data := pageData{Tenant: t, Category: c, Listings: byCategory[c.ID]}
		if err := write(filepath.Join("categories", c.Slug, "index.html"), categoryTpl, data); err != nil {
			return provision.BuildResult{}, err
		}
	}
	for i := range t.Listings {
		l := &t.Listings[i]
		if err := write(filepath.Join("listings", l.Slug, "index.html"), listingTpl, pageData{Tenant: t, Listing: l}); err != nil {
			return provision.BuildResult{}, err
		}
	}

	return provision.BuildResult{BuildID: buildID, OutputDir: dir, Pages: pages}, nil
}

// Discard removes a build directory. Missing builds are not an error.
func (b *Builder) Discard(ctx context.Context, buildID string) error {
	if buildID == "" {
		return nil
	}
	return os.RemoveAll(filepath.Join(b.root, buildID))
}
