// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/yuumi-shop/yuumi/directory"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seeds the database with data from cmd/testdata/seed.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// start from a fresh database
			_ = os.Remove(filepath.Join(dbPath, "yuumi.duckdb"))
			_ = os.Remove(filepath.Join(dbPath, "yuumi.duckdb.wal"))

			repos, err := openRepositories()
			if err != nil {
				return err
			}
			defer repos.Close()

			return seedDatabase(cmd, repos)
		},
	}
}

func init() {
	rootCmd.AddCommand(newSeedCmd())
}

type seedData struct {
	Categories []directory.Category `json:"categories"`
	Stores     []seedStore          `json:"stores"`
}

type seedStore struct {
	directory.Store

	CategorySlug string                    `json:"category_slug"`
	Hours        []directory.OpeningHour   `json:"hours"`
	Families     []directory.ProductFamily `json:"families"`
	Images       []directory.StoreImage    `json:"images"`
}

func seedDatabase(cmd *cobra.Command, repos *repositories) error {
	raw, err := os.ReadFile("cmd/testdata/seed.json")
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}

	var data seedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}

	bySlug := make(map[string]int64, len(data.Categories))

	for i := range data.Categories {
		category := &data.Categories[i]
		if err := repos.categories.SaveCategory(category); err != nil {
			return fmt.Errorf("saving category %q: %w", category.Name, err)
		}

		bySlug[category.Slug] = category.ID
	}

	saver := directory.NewStoreService(repos.stores, nil)

	for i := range data.Stores {
		entry := &data.Stores[i]

		if entry.CategorySlug != "" {
			id, ok := bySlug[entry.CategorySlug]
			if !ok {
				return fmt.Errorf("store %q references unknown category %q",
					entry.Name, entry.CategorySlug)
			}

			entry.CategoryID = &id
		}

		if err := saver.Save(cmd.Context(), &entry.Store); err != nil {
			return fmt.Errorf("saving store %q: %w", entry.Name, err)
		}

		for j := range entry.Hours {
			hour := &entry.Hours[j]
			hour.StoreID = entry.ID

			if err := repos.hours.SaveOpeningHour(hour); err != nil {
				return fmt.Errorf("saving hours for %q: %w", entry.Name, err)
			}
		}

		for j := range entry.Images {
			image := &entry.Images[j]
			image.StoreID = entry.ID
			image.Position = j

			if err := repos.images.SaveImage(image); err != nil {
				return fmt.Errorf("saving image for %q: %w", entry.Name, err)
			}
		}

		for j := range entry.Families {
			family := &entry.Families[j]
			family.StoreID = entry.ID

			products := family.Products
			family.Products = nil

			if err := repos.products.SaveFamily(family); err != nil {
				return fmt.Errorf("saving family for %q: %w", entry.Name, err)
			}

			for k := range products {
				products[k].FamilyID = family.ID

				if err := repos.products.SaveProduct(&products[k]); err != nil {
					return fmt.Errorf("saving product for %q: %w", entry.Name, err)
				}
			}
		}
	}

	fmt.Println("Database seeded successfully.")

	return nil
}
