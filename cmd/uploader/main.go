// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

// Command uploader converts a directory of page images to WebP and pushes
// them to a Mangashelf server.
//
//	uploader push --server https://manga.example.com --token $TOKEN --chapter $ID ./ch12
//	uploader convert ./ch12 ./ch12-webp
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/mangashelf/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:   "uploader",
	Short: "Convert and upload manga chapter pages",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		logging.Init(logging.Config{Level: rootFlags.logLevel, Format: "console"})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
