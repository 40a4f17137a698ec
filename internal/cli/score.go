package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/consolidator/internal/model"
	"github.com/ppiankov/consolidator/internal/score"
)

var (
	scoreStrategy   string
	scoreOutput     string
	scoreRaw        float64
	scoreCategories []string
	scoreSource     string
	scoreManual     float64
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score [items-file]",
	Short: "Calculate confidence scores for knowledge items",
	Long: `Score reads knowledge items and prints one confidence result per item:
- Detect the raw score's scale and normalize it to [0,1]
- Apply the selected boost strategy
- Resolve zero scores from structural, contextual and semantic signals
- Aggregate with dynamic weights and label the result

Items are a JSON or YAML list (or a single item). Use "-" for stdin.

Example:
  consolidator score items.json
  consolidator score items.yaml --strategy logarithmic --output yaml
  consolidator score --raw 21.5 --categories insight,decision`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&scoreStrategy, "strategy", "", "force a boost strategy (linear, logarithmic, hybrid, adaptive)")
	scoreCmd.Flags().StringVarP(&scoreOutput, "output", "o", "text", "output format (text, json, yaml)")
	scoreCmd.Flags().Float64Var(&scoreRaw, "raw", 0, "score a single item with this raw score")
	scoreCmd.Flags().StringSliceVar(&scoreCategories, "categories", nil, "categories for --raw")
	scoreCmd.Flags().StringVar(&scoreSource, "source", "", "explicit score source for --raw (normalized, percentage, similarity)")
	scoreCmd.Flags().Float64Var(&scoreManual, "manual-boost", 0, "manual boost override")
}

func runScore(cmd *cobra.Command, args []string) error {

	var items []model.ScoredItem
	switch {
	case cmd.Flags().Changed("raw"):
		items = []model.ScoredItem{{
			ID:          "cli",
			RawScore:    scoreRaw,
			ScoreSource: model.ScoreSource(scoreSource),
			Categories:  scoreCategories,
		}}
	case len(args) == 1:
		loaded, err := readItems(args[0])
		if err != nil {
			return err
		}
		items = loaded
	default:
		return fmt.Errorf("provide an items file or --raw")
	}

	ctx := context.Background()
	e, _, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close(ctx) }()

	sc := score.Context{ForcedStrategy: scoreStrategy}
	if cmd.Flags().Changed("manual-boost") {
		sc.ManualBoost = &scoreManual
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Scoring %d items...\n", len(items))
	}
	results := e.CalculateBatch(ctx, items, sc)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", items[r.Index].ID, r.Err)
		}
	}

	if err := renderResults(os.Stdout, items, results, scoreOutput); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d items failed", failed, len(items))
	}
	return nil
}

// readItems loads a list of items, or a single item, from JSON or YAML
func readItems(path string) ([]model.ScoredItem, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}

	isYAML := strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
	unmarshal := json.Unmarshal
	if isYAML {
		unmarshal = yaml.Unmarshal
	}

	var items []model.ScoredItem
	if err := unmarshal(data, &items); err == nil {
		return items, nil
	}
	var item model.ScoredItem
	if err := unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return []model.ScoredItem{item}, nil
}

func renderResults(w io.Writer, items []model.ScoredItem, results []score.BatchResult, format string) error {
	switch format {
	case "json":
		out := make([]model.ConfidenceResult, 0, len(results))
		for _, r := range results {
			if r.Err == nil {
				out = append(out, r.Result)
			}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)

	case "yaml":
		out := make([]model.ConfidenceResult, 0, len(results))
		for _, r := range results {
			if r.Err == nil {
				out = append(out, r.Result)
			}
		}
		return yaml.NewEncoder(w).Encode(out)

	case "text":
		for _, r := range results {
			if r.Err != nil {
				continue
			}
			res := r.Result
			flag := ""
			if res.IsDegraded() {
				flag = " (degraded)"
			}
			fmt.Fprintf(w, "%-24s %.3f  %-9s base=%.3f strategy=%s%s\n",
				items[r.Index].ID, res.FinalScore, res.Label, res.Breakdown.Base, res.Strategy, flag)
			if verbose {
				for _, f := range res.Factors {
					fmt.Fprintf(w, "    %-22s %.3f  %s\n", f.Name, f.Score, f.Rationale)
				}
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown output format: %s (supported: text, json, yaml)", format)
	}
}
