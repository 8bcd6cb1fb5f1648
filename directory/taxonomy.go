// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
)

// PlaceholderImage is served for category tiles when no matching store has
// a photo.
const PlaceholderImage = "/static/placeholder.png"

// SuperCategory is one of the fixed top-level groupings of the navigation
// menu. The set is reference data loaded once, never recomputed per request.
type SuperCategory struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// SuperCategories returns the enumerated reference set, in menu order.
// Every grouping the menu shows comes from here, even when no store in the
// current filter belongs to it.
func SuperCategories() []SuperCategory {
	return []SuperCategory{
		{Key: "alimentation", Label: "Alimentation"},
		{Key: "restauration", Label: "Restauration"},
		{Key: "autres", Label: "Autres catégories"},
	}
}

func superCategoryLabel(key string) string {
	for _, sc := range SuperCategories() {
		if sc.Key == key {
			return sc.Label
		}
	}

	return ""
}

// Category is a named grouping with a unique slug and an icon reference,
// belonging to exactly one super-category.
type Category struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Icon          string `json:"icon,omitempty"`
	SuperCategory string `json:"super_category"`
}

// MenuContext is what every page's navigation needs: where the current path
// points, and which categories exist among the stores there.
type MenuContext struct {
	Department      string               `json:"department"`
	City            string               `json:"city"`
	Categories      []string             `json:"categories"`
	SuperCategories []SuperCategoryGroup `json:"super_categories"`
}

// SuperCategoryGroup is one menu section: a super-category and the distinct
// categories observed under it in the current location filter.
type SuperCategoryGroup struct {
	Key        string     `json:"key"`
	Label      string     `json:"label"`
	Categories []Category `json:"categories"`
}

// CategoryTile is one entry of a city's category listing page.
type CategoryTile struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Image string `json:"image"`
	Super string `json:"super"`
}

// MenuBuilder derives the navigational taxonomy from live location-filtered
// queries.
type MenuBuilder struct {
	stores     StoreRepository
	categories CategoryRepository
	rng        *rand.Rand
}

// NewMenuBuilder wires the builder. rng drives the representative-photo
// pick for category tiles; tests pass a seeded source.
func NewMenuBuilder(stores StoreRepository, categories CategoryRepository, rng *rand.Rand) *MenuBuilder {
	return &MenuBuilder{stores: stores, categories: categories, rng: rng}
}

// ParseLocationPath splits a navigational path into (department, city).
// A segment names a department only when it equals a known department value
// exactly, case included. "carte/<dep>" is the map view and is recognized
// before generic department matching; it carries no city.
func ParseLocationPath(path string, departments []string) (department, city string) {
	known := make(map[string]bool, len(departments))
	for _, d := range departments {
		known[d] = true
	}

	var parts []string

	for _, p := range strings.Split(strings.Trim(path, "/"), "/") {
		if p == "" {
			continue
		}

		if unescaped, err := url.PathUnescape(p); err == nil {
			p = unescaped
		}

		parts = append(parts, p)
	}

	switch {
	case len(parts) >= 2 && parts[0] == "carte" && known[parts[1]]:
		return parts[1], ""
	case len(parts) >= 2 && known[parts[0]]:
		return parts[0], parts[1]
	default:
		return "", ""
	}
}

// MenuContext computes the navigation data for the given path.
func (b *MenuBuilder) MenuContext(path string) (*MenuContext, error) {
	departments, err := b.stores.DistinctDepartments()
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}

	department, city := ParseLocationPath(path, departments)

	ctx := &MenuContext{
		Department:      department,
		City:            city,
		Categories:      []string{},
		SuperCategories: emptyGroups(),
	}

	if department == "" {
		return ctx, nil
	}

	stores, err := b.stores.ListStores(LocationFilter{Department: department, City: city})
	if err != nil {
		return nil, fmt.Errorf("listing stores: %w", err)
	}

	if len(stores) == 0 {
		return ctx, nil
	}

	byID, err := b.categoryIndex()
	if err != nil {
		return nil, err
	}

	seenFlat := make(map[string]bool)
	seenGrouped := make(map[int64]bool)

	for _, store := range stores {
		if store.CategoryID == nil {
			continue
		}

		cat, ok := byID[*store.CategoryID]
		if !ok {
			continue
		}

		// Flat list counts every category, even ones whose super-category
		// is unknown.
		if !seenFlat[cat.Name] {
			seenFlat[cat.Name] = true

			ctx.Categories = append(ctx.Categories, cat.Name)
		}

		label := superCategoryLabel(cat.SuperCategory)
		if label == "" {
			continue
		}

		if seenGrouped[cat.ID] {
			continue
		}

		seenGrouped[cat.ID] = true

		for i := range ctx.SuperCategories {
			if ctx.SuperCategories[i].Label == label {
				ctx.SuperCategories[i].Categories = append(ctx.SuperCategories[i].Categories, cat)
			}
		}
	}

	return ctx, nil
}

func emptyGroups() []SuperCategoryGroup {
	scs := SuperCategories()
	groups := make([]SuperCategoryGroup, len(scs))

	for i, sc := range scs {
		groups[i] = SuperCategoryGroup{Key: sc.Key, Label: sc.Label, Categories: []Category{}}
	}

	return groups
}

// CategoryTiles builds the tiles of a city's category listing page, grouped
// by super-category. The tile image is picked uniformly at random among the
// filtered stores of that category that have a photo; the pick changes
// between requests unless the builder's rand source is seeded.
func (b *MenuBuilder) CategoryTiles(department, city string) (map[string][]CategoryTile, error) {
	stores, err := b.stores.ListStores(LocationFilter{Department: department, City: city})
	if err != nil {
		return nil, fmt.Errorf("listing stores: %w", err)
	}

	byID, err := b.categoryIndex()
	if err != nil {
		return nil, err
	}

	byCategory := make(map[int64][]*Store)

	var order []int64

	for _, store := range stores {
		if store.CategoryID == nil {
			continue
		}

		if _, ok := byID[*store.CategoryID]; !ok {
			continue
		}

		if _, seen := byCategory[*store.CategoryID]; !seen {
			order = append(order, *store.CategoryID)
		}

		byCategory[*store.CategoryID] = append(byCategory[*store.CategoryID], store)
	}

	// Per-city curation, when present, restricts and orders the tiles.
	curated, err := b.categories.CityHighlightCategoryIDs(department, city)
	if err != nil {
		return nil, fmt.Errorf("loading city highlights: %w", err)
	}

	if len(curated) > 0 {
		var filtered []int64

		for _, id := range curated {
			if _, ok := byCategory[id]; ok {
				filtered = append(filtered, id)
			}
		}

		order = filtered
	}

	tiles := make(map[string][]CategoryTile)
	for _, sc := range SuperCategories() {
		tiles[sc.Key] = []CategoryTile{}
	}

	for _, id := range order {
		cat := byID[id]

		var withPhoto []*Store

		for _, store := range byCategory[id] {
			if store.Photo != "" {
				withPhoto = append(withPhoto, store)
			}
		}

		image := PlaceholderImage
		if len(withPhoto) > 0 {
			image = withPhoto[b.rng.Intn(len(withPhoto))].Photo
		}

		tile := CategoryTile{
			Name:  cat.Name,
			Slug:  cat.Slug,
			Image: image,
			Super: cat.SuperCategory,
		}

		if _, ok := tiles[cat.SuperCategory]; ok {
			tiles[cat.SuperCategory] = append(tiles[cat.SuperCategory], tile)
		}
	}

	return tiles, nil
}

func (b *MenuBuilder) categoryIndex() (map[int64]Category, error) {
	cats, err := b.categories.ListCategories()
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	byID := make(map[int64]Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}

	return byID, nil
}
