// Package ingest loads tenant catalog data from uploaded CSV files.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/google/uuid"

	"sitewright/internal/model"
	"sitewright/internal/provision"
)

// Catalog is the slice of the store the ingestor writes through.
type Catalog interface {
	CreateCategory(ctx context.Context, c model.Category) (model.Category, error)
	GetCategoryBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (model.Category, error)
	CreateListing(ctx context.Context, l model.Listing) (model.Listing, error)
}

// Summary reports what an import did. Errors lists per-row problems;
// a row that fails is skipped, the rest of the file still imports.
type Summary struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Ingestor parses CSV uploads into categories and listings. Listing
// descriptions may arrive as HTML; they are converted to Markdown
// before storage.
type Ingestor struct {
	catalog Catalog
	newID   provision.IDGen
	conv    *md.Converter
}

// NewIngestor creates an Ingestor. newID may be nil, in which case
// random ids are used.
func NewIngestor(catalog Catalog, newID provision.IDGen) *Ingestor {
	if newID == nil {
		newID = uuid.New
	}
	return &Ingestor{
		catalog: catalog,
		newID:   newID,
		conv:    md.NewConverter("", true, nil),
	}
}

// toMarkdown converts HTML descriptions to Markdown. Plain text passes
// through untouched.
func (g *Ingestor) toMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") {
		return s
	}
	out, err := g.conv.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(out)
}

// readHeader maps column names to indices. Names are case-insensitive.
func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(row))
	for i, name := range row {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols, nil
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ImportCategories reads a CSV with columns slug, name and optional
// description and position.
func (g *Ingestor) ImportCategories(ctx context.Context, tenantID uuid.UUID, src io.Reader) (*Summary, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1

	cols, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if _, ok := cols["slug"]; !ok {
		return nil, fmt.Errorf("missing required column: slug")
	}
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("missing required column: name")
	}

	sum := &Summary{}
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		slug := field(row, cols, "slug")
		name := field(row, cols, "name")
		if slug == "" || name == "" {
			sum.Skipped++
			sum.Errors = append(sum.Errors, fmt.Sprintf("line %d: slug and name are required", line))
			continue
		}

		position, _ := strconv.Atoi(field(row, cols, "position"))
		_, err = g.catalog.CreateCategory(ctx, model.Category{
			ID:          g.newID(),
			TenantID:    tenantID,
			Slug:        slug,
			Name:        name,
			Description: field(row, cols, "description"),
			Position:    int32(position),
		})
		if err != nil {
			sum.Skipped++
			sum.Errors = append(sum.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		sum.Imported++
	}
	return sum, nil
}

// ImportListings reads a CSV with columns category, slug, name and
// optional description, address, phone, website and tags. Tags are
// pipe-separated. The category column references a category slug that
// must already exist.
func (g *Ingestor) ImportListings(ctx context.Context, tenantID uuid.UUID, src io.Reader) (*Summary, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1

	cols, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	for _, required := range []string{"category", "slug", "name"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column: %s", required)
		}
	}

	categories := make(map[string]uuid.UUID)
	sum := &Summary{}
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		catSlug := field(row, cols, "category")
		slug := field(row, cols, "slug")
		name := field(row, cols, "name")
		if catSlug == "" || slug == "" || name == "" {
			sum.Skipped++
			sum.Errors = append(sum.Errors, fmt.Sprintf("line %d: category, slug and name are required", line))
			continue
		}

		catID, ok := categories[catSlug]
		if !ok {
			cat, err := g.catalog.GetCategoryBySlug(ctx, tenantID, catSlug)
			if err != nil {
				sum.Skipped++
				sum.Errors = append(sum.Errors, fmt.Sprintf("line %d: unknown category %q", line, catSlug))
				continue
			}
			catID = cat.ID
			categories[catSlug] = catID
		}

		var tags []string
		if raw := field(row, cols, "tags"); raw != "" {
			for _, tag := range strings.Split(raw, "|") {
				if tag = strings.TrimSpace(tag); tag != "" {
					tags = append(tags, tag)
				}
			}
		}

		_, err = g.catalog.CreateListing(ctx, model.Listing{
			ID:          g.newID(),
			TenantID:    tenantID,
			CategoryID:  catID,
			Slug:        slug,
			Name:        name,
			Description: g.toMarkdown(field(row, cols, "description")),
			Address:     field(row, cols, "address"),
			Phone:       field(row, cols, "phone"),
			Website:     field(row, cols, "website"),
			Tags:        tags,
		})
		if err != nil {
			sum.Skipped++
			sum.Errors = append(sum.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		sum.Imported++
	}
	return sum, nil
}
