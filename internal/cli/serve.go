package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/consolidator/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scoring and ingestion API over HTTP",
	Long: `Serve exposes the engine to collaborators:
  POST /v1/confidence          score one item
  POST /v1/confidence/batch    score many items
  POST /v1/ingest              ingest one document (?chunk=true to chunk content)
  POST /v1/ingest/batch        ingest many documents
  GET  /v1/stats               cache hit rate, breaker states, recent reports
  GET  /v1/collection          collection statistics
  GET  /metrics                Prometheus metrics
  GET  /healthz                liveness

Example:
  consolidator serve
  consolidator serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, cfg, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close(context.WithoutCancel(ctx)) }()

	return server.New(e, cfg.Server.Addr, cfg.Server.ShutdownTimeout).Run(ctx)
}
