// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/yuumi-shop/yuumi/directory"
)

func newGeocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode",
		Short: "Resolve coordinates for stores that are missing them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repos, err := openRepositories()
			if err != nil {
				return err
			}
			defer repos.Close()

			geocoder, err := newGeocoder(cmd.Context())
			if err != nil {
				return err
			}

			report, err := directory.ReconcileCoordinates(cmd.Context(),
				repos.stores, geocoder, directory.DefaultGeocodeTimeout)
			if err != nil {
				return err
			}

			log.Printf("geocoding pass: %d processed, %d resolved, %d failed, %d skipped",
				report.Processed, report.Resolved, report.Failed, report.Skipped)

			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newGeocodeCmd())
}
