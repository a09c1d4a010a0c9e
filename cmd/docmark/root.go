package main

import (
	"log/slog"
	"os"

	"github.com/dgallion1/docmark/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docmark",
	Short: "Find and highlight text in documents",
	Long: `docmark marks every case-insensitive occurrence of a query in an HTML,
Markdown, text, CSV, PDF or DOCX document, or in a fetched web page, and
writes the highlighted document or the list of matches.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.Path(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
