// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuumi-shop/yuumi/directory"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repos, err := openRepositories()
			if err != nil {
				return err
			}
			defer repos.Close()

			geocoder, err := newGeocoder(cmd.Context())
			if err != nil {
				// The server still works without geocoding; saves just skip
				// coordinate resolution.
				log.Printf("geocoder unavailable: %v", err)

				geocoder = nil
			}

			var mailer directory.Mailer

			mailer, err = directory.NewSMTPMailerFromEnv()
			if err != nil {
				return fmt.Errorf("configuring mailer: %w", err)
			}

			secret := os.Getenv("YUUMI_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("YUUMI_JWT_SECRET is not set")
			}

			rng := rand.New(rand.NewSource(time.Now().UnixNano()))

			server := directory.NewServer(
				repos.stores, repos.categories, repos.products, repos.hours,
				repos.images, repos.users,
				directory.NewStoreService(repos.stores, geocoder),
				directory.NewClaimService(repos.stores, mailer),
				directory.NewAuthService(repos.users, []byte(secret)),
				directory.NewMenuBuilder(repos.stores, repos.categories, rng),
				addr)

			log.Printf("yuumi %s listening on %s", Version, addr)

			return server.Run()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "listen address")

	return cmd
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
