package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/nesach/internal/logging"
	"github.com/ppiankov/nesach/internal/pipeline"
	"github.com/ppiankov/nesach/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the extraction HTTP API",
	Long: `Serve exposes:
  GET  /healthz      liveness
  POST /v1/extract   {"source": "s3://bucket/key"} or a raw application/pdf body

When server.jwt_secret (or JWT_SECRET) is set, /v1 routes require an HS256
bearer token.

Example:
  nesach serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addPipelineFlags(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger := logging.NewJSON(cfg.Output.Verbose || verbose)
	defer func() { _ = logger.Sync() }()

	p, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	return server.New(cfg.Server, p, logger, Version).ListenAndServe(ctx)
}
