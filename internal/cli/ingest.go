package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/consolidator/internal/chunk"
	"github.com/ppiankov/consolidator/internal/engine"
	"github.com/ppiankov/consolidator/internal/extract"
	"github.com/ppiankov/consolidator/internal/ingest"
	"github.com/ppiankov/consolidator/internal/model"
	"github.com/ppiankov/consolidator/internal/score"
)

var (
	ingestStrategy     string
	ingestCategories   []string
	ingestAnalysisType string
	ingestMaxChars     int
	ingestNoChunk      bool
	ingestRawScore     float64
	ingestTimeout      time.Duration
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest documents into the vector store without duplicating chunks",
	Long: `Ingest processes documents concurrently:
- Score each document and attach its confidence to the stored payload
- Split content into chunks with stable zero-based indices
- Check every (document, chunk index) slot for an existing point
- Embed and write only what the merge strategy allows

Re-running with the skip or preserve strategy never changes the point count.

Example:
  consolidator ingest notes/*.md
  consolidator ingest decisions.md --strategy merge --categories decision,architecture
  consolidator ingest big.md --max-chars 800`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestStrategy, "strategy", "skip", "merge strategy (skip, update, merge, preserve)")
	ingestCmd.Flags().StringSliceVar(&ingestCategories, "categories", nil, "categories attached to every document")
	ingestCmd.Flags().StringVar(&ingestAnalysisType, "analysis-type", "", "analysis type attached to every document")
	ingestCmd.Flags().IntVar(&ingestMaxChars, "max-chars", chunk.DefaultMaxChars, "maximum chunk size in characters")
	ingestCmd.Flags().BoolVar(&ingestNoChunk, "no-chunk", false, "ingest each document as a single unit")
	ingestCmd.Flags().Float64Var(&ingestRawScore, "raw-score", 0, "raw relevance score of the documents (any scale)")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 10*time.Minute, "total timeout for ingestion")
}

func runIngest(cmd *cobra.Command, args []string) error {
	strategy, err := model.ParseMergeStrategy(ingestStrategy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()

	e, cfg, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close(context.WithoutCancel(ctx)) }()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Consolidator Ingestion\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Documents:    %d\n", len(args))
	fmt.Fprintf(os.Stderr, "  Strategy:     %s\n", strategy)
	fmt.Fprintf(os.Stderr, "  Store:        %s/%s\n", cfg.VectorStore.Backend, cfg.VectorStore.Collection)
	fmt.Fprintf(os.Stderr, "  Embedding:    %s/%s\n", cfg.Embedding.Provider, cfg.Embedding.Model)
	fmt.Fprintf(os.Stderr, "  Workers:      %d documents, %d chunks each\n", cfg.Concurrency.DocumentWorkers, cfg.Concurrency.ChunkWorkers)
	fmt.Fprintf(os.Stderr, "\n")

	chunker := chunk.New(chunk.WithMaxChars(ingestMaxChars))
	requests := make([]ingest.Request, 0, len(args))
	for _, path := range args {
		req, err := buildRequest(ctx, e, chunker, path, strategy)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
			continue
		}
		requests = append(requests, req)
	}

	reports := e.IngestBatch(ctx, requests)

	var total model.IngestionReport
	for _, r := range reports {
		mark := "✓"
		if r.Failed > 0 {
			mark = "✗"
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", mark, r.Summary())
		if verbose {
			for idx, reason := range r.Failures {
				fmt.Fprintf(os.Stderr, "    chunk %d: %s\n", idx, reason)
			}
		}
		total.Inserted += r.Inserted
		total.Skipped += r.Skipped
		total.Updated += r.Updated
		total.Preserved += r.Preserved
		total.Failed += r.Failed
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Ingestion Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Inserted:   %d\n", total.Inserted)
	fmt.Fprintf(os.Stderr, "  Skipped:    %d\n", total.Skipped)
	fmt.Fprintf(os.Stderr, "  Updated:    %d\n", total.Updated)
	fmt.Fprintf(os.Stderr, "  Preserved:  %d\n", total.Preserved)
	fmt.Fprintf(os.Stderr, "  Failed:     %d\n", total.Failed)
	fmt.Fprintf(os.Stderr, "\n")

	if len(requests) < len(args) {
		return fmt.Errorf("%d of %d documents could not be read", len(args)-len(requests), len(args))
	}
	return nil
}

// buildRequest reads a document, scores it and splits it into chunks
func buildRequest(ctx context.Context, e *engine.Engine, chunker *chunk.Chunker, path string, strategy model.MergeStrategy) (ingest.Request, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ingest.Request{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.Request{}, err
	}
	content := string(data)
	signals := extract.DetectStructure(content)

	doc := model.Document{
		ID:           filepath.ToSlash(filepath.Clean(path)),
		SourceFile:   filepath.Base(path),
		Content:      content,
		Categories:   ingestCategories,
		AnalysisType: ingestAnalysisType,
		UpdatedAt:    info.ModTime().UTC(),
	}
	if strings.TrimSpace(content) == "" {
		return ingest.Request{}, fmt.Errorf("empty document")
	}

	result, err := e.CalculateConfidence(ctx, model.ScoredItem{
		ID:         doc.ID,
		RawScore:   ingestRawScore,
		Categories: doc.Categories,
		Content:    content,
		Path:       path,
		Structure: model.Structure{
			HasHeadings: signals.Headings,
			HasLists:    signals.Lists,
			HasLinks:    signals.Links,
		},
		ModifiedAt: doc.UpdatedAt,
	}, score.Context{})
	if err != nil {
		return ingest.Request{}, fmt.Errorf("score: %w", err)
	}
	doc.Confidence = &result

	req := ingest.Request{Document: doc, Strategy: strategy}
	if !ingestNoChunk {
		req.Chunks = chunker.Split(doc)
	}
	return req, nil
}
