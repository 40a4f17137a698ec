package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var (
	statsJSON    bool
	statsTimeout time.Duration
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector store collection statistics",
	Long: `Stats walks the configured collection and reports:
- Total points, unique documents and chunked points
- Category and analysis type distribution
- Average stored confidence

Example:
  consolidator stats
  consolidator stats --json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print JSON instead of text")
	statsCmd.Flags().DurationVar(&statsTimeout, "timeout", time.Minute, "timeout for walking the collection")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	e, cfg, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close(context.WithoutCancel(ctx)) }()

	stats, err := e.CollectionStats(ctx)
	if err != nil {
		return fmt.Errorf("collection stats: %w", err)
	}

	if statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Collection %s (%s)\n", cfg.VectorStore.Collection, stats.Backend)
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println()
	fmt.Printf("  Points:              %d\n", stats.Points)
	fmt.Printf("  Documents:           %d\n", stats.Documents)
	fmt.Printf("  Chunked points:      %d\n", stats.Chunked)
	fmt.Printf("  Average confidence:  %.3f\n", stats.AverageConfidence)
	printDistribution("Categories", stats.Categories)
	printDistribution("Analysis types", stats.AnalysisTypes)
	fmt.Println()
	return nil
}

func printDistribution(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	fmt.Println()
	fmt.Printf("  %s:\n", title)
	for _, k := range keys {
		fmt.Printf("    %-28s %d\n", k, counts[k])
	}
}
