// Package catalog maps human-readable image and size identifiers to
// provider catalog entries.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/imamik/nodeseed/internal/cloud"
)

// maxCandidates bounds the suggestions attached to a not-found error.
const maxCandidates = 5

// Catalog is the part of a provider handle the resolver needs.
type Catalog interface {
	ListImages(ctx context.Context) ([]cloud.Image, error)
	ListSizes(ctx context.Context) ([]cloud.Size, error)
}

// Selection is a resolved image/size pair.
type Selection struct {
	Image cloud.Image
	Size  cloud.Size
}

// Resolver resolves identifiers against a catalog.
type Resolver struct {
	catalog Catalog
}

// NewResolver creates a Resolver backed by c.
func NewResolver(c Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// Resolve resolves both identifiers. The size is resolved first so that
// images built for a different architecture are not considered.
func (r *Resolver) Resolve(ctx context.Context, image, size string) (*Selection, error) {
	sz, err := r.ResolveSize(ctx, size)
	if err != nil {
		return nil, err
	}
	img, err := r.resolveImage(ctx, image, sz.Architecture)
	if err != nil {
		return nil, err
	}
	return &Selection{Image: img, Size: sz}, nil
}

// ResolveImage returns the image whose ID or name matches query.
func (r *Resolver) ResolveImage(ctx context.Context, query string) (cloud.Image, error) {
	return r.resolveImage(ctx, query, "")
}

// resolveImage matches query among images for arch. An empty arch, or an
// image without one, matches any.
func (r *Resolver) resolveImage(ctx context.Context, query, arch string) (cloud.Image, error) {
	all, err := r.catalog.ListImages(ctx)
	if err != nil {
		return cloud.Image{}, fmt.Errorf("failed to list images: %w", err)
	}
	images := make([]cloud.Image, 0, len(all))
	for _, img := range all {
		if arch != "" && img.Architecture != "" && img.Architecture != arch {
			continue
		}
		images = append(images, img)
	}
	entries := make([]entry, len(images))
	for i, img := range images {
		entries[i] = entry{id: img.ID, name: img.Name}
	}
	idx, err := match(cloud.CatalogImage, query, entries)
	if err != nil {
		return cloud.Image{}, err
	}
	return images[idx], nil
}

// ResolveSize returns the size whose ID or name matches query.
func (r *Resolver) ResolveSize(ctx context.Context, query string) (cloud.Size, error) {
	sizes, err := r.catalog.ListSizes(ctx)
	if err != nil {
		return cloud.Size{}, fmt.Errorf("failed to list sizes: %w", err)
	}
	entries := make([]entry, len(sizes))
	for i, s := range sizes {
		entries[i] = entry{id: s.ID, name: s.Name}
	}
	idx, err := match(cloud.CatalogSize, query, entries)
	if err != nil {
		return cloud.Size{}, err
	}
	return sizes[idx], nil
}

type entry struct {
	id   string
	name string
}

// match applies the lookup order: exact ID, exact name, case-insensitive
// name. The first tier with any hit decides; more than one hit in that
// tier is ambiguous.
func match(kind cloud.CatalogKind, query string, entries []entry) (int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return -1, &cloud.NotFoundError{Kind: kind, Query: query}
	}

	tiers := []func(entry) bool{
		func(e entry) bool { return e.id == query },
		func(e entry) bool { return e.name == query },
		func(e entry) bool { return strings.EqualFold(e.name, query) },
	}

	for _, matches := range tiers {
		var hits []int
		for i, e := range entries {
			if matches(e) {
				hits = append(hits, i)
			}
		}
		switch len(hits) {
		case 0:
			continue
		case 1:
			return hits[0], nil
		default:
			ids := make([]string, len(hits))
			for i, h := range hits {
				ids[i] = entries[h].id
			}
			return -1, &cloud.AmbiguousSelectionError{Kind: kind, Query: query, Matches: ids}
		}
	}

	return -1, &cloud.NotFoundError{Kind: kind, Query: query, Candidates: candidates(query, entries)}
}

// candidates returns names sharing the longest prefix with query.
func candidates(query string, entries []entry) []string {
	type scored struct {
		name  string
		score int
	}
	q := strings.ToLower(query)
	var all []scored
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.name == "" || seen[e.name] {
			continue
		}
		seen[e.name] = true
		if s := commonPrefix(q, strings.ToLower(e.name)); s >= 2 {
			all = append(all, scored{name: e.name, score: s})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].name < all[j].name
	})
	if len(all) > maxCandidates {
		all = all[:maxCandidates]
	}
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.name
	}
	return names
}

func commonPrefix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
