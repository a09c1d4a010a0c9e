package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/docmark/internal/config"
	"github.com/dgallion1/docmark/internal/doctree"
	"github.com/dgallion1/docmark/internal/fetch"
	"github.com/dgallion1/docmark/internal/highlight"
	"github.com/dgallion1/docmark/internal/parser"
	"github.com/dgallion1/docmark/internal/pipeline"
	"github.com/spf13/cobra"
)

var highlightCmd = &cobra.Command{
	Use:   "highlight [file]",
	Short: "Highlight a query in a document",
	Long: `Parses a file (or the page at --url), wraps every match of --query in a
<mark> element and prints the result as HTML, JSON or a plain match list.
With no file and no --url the document is read from stdin as HTML.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHighlight,
}

func init() {
	highlightCmd.Flags().StringP("query", "q", "", "text to find (required)")
	highlightCmd.Flags().Bool("regex", false, "treat the query as a regular expression")
	highlightCmd.Flags().String("url", "", "fetch the document from this URL")
	highlightCmd.Flags().StringP("format", "f", "html", "output format: html, json or text")
	highlightCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
	highlightCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(highlightCmd)
}

func runHighlight(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	useRegex, _ := cmd.Flags().GetBool("regex")
	rawURL, _ := cmd.Flags().GetString("url")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	if rawURL != "" && len(args) > 0 {
		return errors.New("pass either a file or --url, not both")
	}
	if format != "html" && format != "json" && format != "text" {
		return fmt.Errorf("unknown format %q: must be html, json or text", format)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	mode := cfg.Mode()
	if useRegex {
		mode = highlight.ModeRegex
	}

	doc, err := loadDocument(cmd.Context(), cfg, args, rawURL, cmd.InOrStdin())
	if err != nil {
		return err
	}

	res, err := pipeline.Highlight(doc, query, mode, nil)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if res.Fallback {
		newLogger().Warn("query is not a valid pattern, matched literally", "query", query)
	}

	out := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return writeResult(out, res, format)
}

func loadDocument(ctx context.Context, cfg config.Config, args []string, rawURL string, stdin io.Reader) (*doctree.Document, error) {
	popts := parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}

	switch {
	case rawURL != "":
		if ctx == nil {
			ctx = context.Background()
		}
		client := fetch.NewClient(fetch.Options{
			Timeout:      cfg.FetchTimeout,
			RPS:          cfg.FetchRPS,
			Burst:        cfg.FetchBurst,
			MaxBytes:     cfg.FetchMaxBytes,
			AllowPrivate: cfg.FetchAllowPrivate,
		}, newLogger())
		defer client.Close()
		ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()

		page, err := client.Fetch(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return parser.ForContentType(page.ContentType, popts).Parse(bytes.NewReader(page.Body), page.Name())

	case len(args) == 1:
		path := args[0]
		p, err := parser.ForFile(path, popts)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return p.Parse(f, filepath.Base(path))

	default:
		return (&parser.HTMLParser{}).Parse(stdin, "stdin.html")
	}
}

func writeResult(w io.Writer, res *pipeline.Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*pipeline.Result
			Total int `json:"total"`
		}{res, len(res.Matches)})
	case "text":
		for _, m := range res.Matches {
			if _, err := fmt.Fprintf(w, "%d\t%s\t%s\n", m.Index, m.Text, m.Excerpt); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "%d matches\n", len(res.Matches))
		return err
	default:
		_, err := w.Write(res.HTML)
		return err
	}
}
