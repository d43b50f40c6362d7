// internal/cli/scrape.go
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DONALDBZR/Crawly/internal/app"
	"github.com/DONALDBZR/Crawly/internal/config"
	"github.com/DONALDBZR/Crawly/internal/engine"
	"github.com/DONALDBZR/Crawly/internal/engine/htmlpage"
	"github.com/DONALDBZR/Crawly/internal/output"
	"github.com/DONALDBZR/Crawly/internal/ui"
	"github.com/DONALDBZR/Crawly/internal/utils/headers"
	"github.com/DONALDBZR/Crawly/internal/utils/urlutil"
	"github.com/DONALDBZR/Crawly/pkg/models"
)

var (
	strategyName   string
	selectorPairs  []string
	headerFlags    []string
	scrapeAttempts int
	scrapeBackoff  time.Duration
	outputPath     string
	outputFormat   string
	storeRecord    bool
	runScripts     bool
	noRobots       bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Scrape a URL into a normalized record",
	Long: `Scrape runs one URL through the selected strategy: fetch with retries and
exponential backoff, extract fields from the payload, and normalize them into
a canonical record.

Only failed fetches are retried, up to --attempts times; extraction and
normalization failures end the run immediately. The record is printed to
stdout unless --output names a file, and stored when --store is set.`,
	Example: `  # Scrape a page with the default html_page strategy
  crawly scrape https://example.com

  # Product JSON endpoint, persisted to the database
  crawly scrape https://api.shop.example/products/42 -s product_api --store

  # JavaScript-heavy page through headless Chrome
  crawly scrape https://spa.example.com -s rendered_page

  # Override extraction selectors
  crawly scrape https://example.com --selector "page_title=h1.headline" --selector "price=.price-tag"

  # Write markdown to a file, passing a custom header
  crawly scrape https://example.com -o article.md -H "Authorization: Bearer token"`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVarP(&strategyName, "strategy", "s", htmlpage.Identifier, "Strategy to scrape with (see 'crawly strategies')")
	scrapeCmd.Flags().StringArrayVar(&selectorPairs, "selector", nil, "Selector override as field=css (repeatable)")
	scrapeCmd.Flags().StringArrayVarP(&headerFlags, "header", "H", nil, "Custom header (e.g., -H \"Authorization: Bearer token\")")
	scrapeCmd.Flags().IntVar(&scrapeAttempts, "attempts", config.DefaultMaxAttempts, "Maximum fetch attempts before giving up")
	scrapeCmd.Flags().DurationVar(&scrapeBackoff, "backoff", config.DefaultBackoffBase, "Base wait before the first retry, doubled for each retry after")
	scrapeCmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Output file path, or - for stdout")
	scrapeCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "Output format: json, pretty, csv or markdown (default from extension)")
	scrapeCmd.Flags().BoolVar(&storeRecord, "store", false, "Persist the normalized record to the database")
	scrapeCmd.Flags().BoolVar(&runScripts, "scripts", false, "Run inline scripts and harvest their globals (html_page only)")
	scrapeCmd.Flags().BoolVar(&noRobots, "no-robots", false, "Skip the robots.txt check")
}

func runScrape(cmd *cobra.Command, args []string) error {
	pageURL := args[0]
	if err := urlutil.Validate(pageURL); err != nil {
		return err
	}

	application := GetApp()
	cfg := application.Config

	strategy, err := engine.New(strategyName)
	if err != nil {
		return err
	}

	selectors, err := parseSelectors(selectorPairs)
	if err != nil {
		return err
	}

	// Per-run overrides on top of the configured retry defaults.
	attempts := cfg.MaxAttempts
	if cmd.Flags().Changed("attempts") {
		attempts = scrapeAttempts
	}
	backoff := cfg.BackoffBase
	if cmd.Flags().Changed("backoff") {
		backoff = scrapeBackoff
	}

	sc := models.ScrapeContext{
		URL:         pageURL,
		Timeout:     cfg.HTTPTimeout,
		MaxAttempts: attempts,
		BackoffBase: backoff,
		Headers:     headers.Parse(headerFlags),
		Selectors:   selectors,
	}

	result, err := engine.NewOrchestrator(strategy).Run(cmd.Context(), sc)
	if err != nil {
		return err
	}

	if storeRecord {
		if err := persistRecord(cmd.Context(), application, result.Record); err != nil {
			return err
		}
	}

	format := resolveFormat(outputFormat, outputPath, cfg.OutputFormat)
	content, err := output.Formatter{BaseURL: pageURL}.Format(result.Record, format)
	if err != nil {
		return err
	}
	if err := output.Write(content, outputPath, cfg.Quiet); err != nil {
		return err
	}

	if !cfg.Quiet {
		fmt.Fprintf(os.Stderr, "%s Scraped %s in %s (%d attempt(s))\n",
			ui.Success("✓"), result.Record.EntityType,
			result.Elapsed.Round(time.Millisecond), len(result.Attempts))
	}
	return nil
}

// persistRecord opens the store on first use and saves the record through a
// pooled, sanitizing handler.
func persistRecord(ctx context.Context, application *app.Application, rec *models.NormalizedRecord) error {
	factory, err := application.EnsureStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	handler := factory.Handler()
	if err := handler.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare schema: %w", err)
	}
	if err := handler.SaveRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}

	if !application.Config.Quiet {
		fmt.Fprintf(os.Stderr, "%s Stored record %s\n", ui.Success("✓"), rec.EntityID)
	}
	return nil
}

// parseSelectors converts repeatable "field=css" flags into a selector map.
func parseSelectors(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	selectors := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		field, sel, ok := strings.Cut(pair, "=")
		field = strings.TrimSpace(field)
		sel = strings.TrimSpace(sel)
		if !ok || field == "" || sel == "" {
			return nil, fmt.Errorf("invalid selector %q: want field=css", pair)
		}
		selectors[field] = sel
	}
	return selectors, nil
}

// resolveFormat picks the output format: the explicit flag wins, then the
// output file extension, then the configured default.
func resolveFormat(flag, path, fallback string) string {
	if flag != "" {
		return flag
	}
	switch {
	case strings.HasSuffix(path, ".json"):
		return "json"
	case strings.HasSuffix(path, ".csv"):
		return "csv"
	case strings.HasSuffix(path, ".md"):
		return "markdown"
	}
	return fallback
}
