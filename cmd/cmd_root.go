// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})

	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "db",
		"directory holding the duckdb database")
}

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "yuumi",
	Short: "annuaire des commerces locaux",
	Long: `
yuumi gère un annuaire de commerces locaux : fiches par département et ville,
menus par catégorie, horaires, produits, et revendication de fiche par les
commerçants.
`,
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
