package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nilcar/leads-console/internal/ingest"
)

var ingestFlags struct {
	watch    bool
	patterns string
	tail     bool

	live     bool
	url      string
	interval time.Duration
	jitter   float64
	count    int
}

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [file|dir|-]",
	Short: "Import leads into the development database",
	Long: `Import leads into the development database (devapi.db). Supports JSON
(one object or an array) and JSON Lines. Field names follow the lead API:
name, email, phone, vehicle, message, status, temperature, portal, subject.

Each batch that stores at least one lead is announced on the events stream,
so consoles showing the lead list refresh.

Examples:
  # Import a file
  leads-console ingest leads.jsonl

  # Import from stdin
  cat leads.json | leads-console ingest -

  # Import a directory and keep watching it for new lines and files
  leads-console ingest ./incoming --watch

  # Generate 25 random leads, one every 500ms
  leads-console ingest --live --count 25 --interval 500ms

  # Poll a feed that returns one lead per GET
  leads-console ingest --live --url http://localhost:9000/lead`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().BoolVar(&ingestFlags.watch, "watch", false, "Watch the directory and tail JSONL files")
	ingestCmd.Flags().StringVar(&ingestFlags.patterns, "pattern", "*.jsonl,*.json", "Comma-separated glob patterns for directories")
	ingestCmd.Flags().BoolVar(&ingestFlags.tail, "tail", false, "In watch mode, skip lines already present in JSONL files")

	ingestCmd.Flags().BoolVar(&ingestFlags.live, "live", false, "Import a live feed instead of files")
	ingestCmd.Flags().StringVar(&ingestFlags.url, "url", "", "Feed URL returning one lead per GET (empty generates leads)")
	ingestCmd.Flags().DurationVar(&ingestFlags.interval, "interval", 2*time.Second, "Interval between live leads")
	ingestCmd.Flags().Float64Var(&ingestFlags.jitter, "jitter", 0, "Jitter factor 0.0-1.0 applied to --interval")
	ingestCmd.Flags().IntVar(&ingestFlags.count, "count", 0, "Stop after this many live leads (0 = until interrupted)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	logger := newLogger(os.Stderr, "[ingest] ")

	source := "-"
	if len(args) > 0 {
		source = args[0]
	}
	if ingestFlags.live && len(args) > 0 {
		return fmt.Errorf("--live does not take a file argument")
	}

	st, err := openDevStore(config, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	eventBus := openBus(config, logger)
	defer eventBus.Close()

	importer := ingest.NewImporter(ingest.NewParser(), st, eventBus, logger)
	start := time.Now()

	switch {
	case ingestFlags.live:
		li := ingest.NewLiveIngestor(importer, ingest.LiveOptions{
			URL:      ingestFlags.url,
			Interval: ingestFlags.interval,
			Jitter:   ingestFlags.jitter,
			Count:    ingestFlags.count,
			Logger:   logger,
		})
		if err := li.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("live ingest: %w", err)
		}
	case source == "-":
		if err := ingestReader(ctx, importer, os.Stdin, "stdin"); err != nil {
			return err
		}
	default:
		fi := ingest.NewFolderIngestor(importer, ingest.FolderOptions{
			Path:        source,
			Watch:       ingestFlags.watch,
			Patterns:    splitPatterns(ingestFlags.patterns),
			Logger:      logger,
			TailFromEnd: ingestFlags.tail,
		})
		logger.Printf("Importing %s (watch=%v)", source, ingestFlags.watch)
		if err := fi.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("ingest %s: %w", source, err)
		}
	}

	ingested, failed := importer.Totals()
	logger.Printf("Ingestion completed:")
	logger.Printf("  Successfully ingested: %d", ingested)
	logger.Printf("  Failed records: %d", failed)
	logger.Printf("  Processing time: %v", time.Since(start).Round(time.Millisecond))
	if failed > 0 && ingested == 0 {
		return fmt.Errorf("no lead imported (%d failed)", failed)
	}
	return nil
}

// ingestReader imports one JSON or JSON Lines payload read to EOF.
func ingestReader(ctx context.Context, importer *ingest.Importer, r io.Reader, name string) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	records, err := ingest.SplitRecords(body, ingest.DetectFormat(name, body))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	res := importer.Import(ctx, records)
	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "  skipped: %s\n", e)
	}
	return nil
}

func splitPatterns(s string) []string {
	var patterns []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}
