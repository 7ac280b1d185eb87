package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bindery/internal/book"
	"github.com/jackzampolin/bindery/internal/config"
	"github.com/jackzampolin/bindery/internal/merge"
	"github.com/jackzampolin/bindery/internal/pagesource"
	"github.com/jackzampolin/bindery/internal/pipeline"
	"github.com/jackzampolin/bindery/internal/providers"
)

var (
	extractDir     string
	extractOut     string
	extractWorkers int
	extractNoImage bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Correct and merge a directory of OCR'd pages into book.json",
	Long: `Extract reads per-page OCR text files (NNN.txt, with matching page
images alongside) from a directory, corrects and structures each page via
the configured completion endpoint, reassembles paragraphs split across
page boundaries, and writes the assembled book.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		client := providers.NewOpenAICompatClient(providers.OpenAICompatConfig{
			BaseURL:      cfg.API.URL,
			APIKey:       config.ResolveEnvVars(cfg.API.Token),
			DefaultModel: cfg.API.Model,
			Timeout:      time.Duration(cfg.API.TimeoutSeconds) * time.Second,
			MaxRetries:   cfg.Pipeline.MaxRetries,
		})

		workers := cfg.Pipeline.Workers
		if extractWorkers > 0 {
			workers = extractWorkers
		}

		// The limiter is shared with the config watcher so rps edits to the
		// config file take effect mid-run. Other knobs apply on the next run.
		limiter := providers.NewRateLimiter(cfg.Pipeline.RPS)
		cm.OnChange(func(next *config.Config) {
			limiter.SetRate(next.Pipeline.RPS)
			logger.Info("config reloaded", "rps", next.Pipeline.RPS)
		})
		cm.WatchConfig()

		p, err := pipeline.New(pipeline.Config{
			Source:    &pagesource.DirSource{Dir: extractDir, SkipImages: extractNoImage},
			Client:    client,
			Model:     cfg.API.Model,
			Workers:   workers,
			Limiter:   limiter,
			MaxTokens: cfg.Pipeline.MaxTokens,
			Grace:     time.Duration(cfg.Pipeline.GraceSeconds) * time.Second,
			Merge: merge.Options{
				TerminalPunctuation: cfg.Merge.TerminalPunctuation,
				ClosingQuotes:       cfg.Merge.ClosingQuotes,
			},
			Hooks: pipeline.Hooks{
				OnProgress: func(completed int, status string) {
					fmt.Fprintf(os.Stderr, "\r%s", status)
				},
				OnLog: func(msg string) {
					fmt.Fprintf(os.Stderr, "\n%s\n", msg)
				},
			},
			Logger: logger,
		})
		if err != nil {
			return err
		}

		// Ctrl-C cancels cooperatively; completed pages are still written.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, runErr := p.Run(ctx)
		fmt.Fprintln(os.Stderr)
		if b == nil {
			return runErr
		}

		b.Metadata.FillDefaults()
		return writeBook(b, extractOut, runErr)
	},
}

func writeBook(b *book.Book, out string, runErr error) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize book: %w", err)
	}
	if err := os.WriteFile(out, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Printf("wrote %s (%d chapters, %d words)\n",
		out, len(b.Chapters), b.TotalWordCount())
	return runErr
}

func init() {
	extractCmd.Flags().StringVar(&extractDir, "dir", "out", "directory of per-page .txt files with matching images")
	extractCmd.Flags().StringVar(&extractOut, "out", filepath.Join("out", "book.json"), "output path for the assembled book")
	extractCmd.Flags().IntVar(&extractWorkers, "workers", 0, "override worker count from config")
	extractCmd.Flags().BoolVar(&extractNoImage, "no-images", false, "send raw text only, without page images")
}
