package cli

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/nesach/internal/pipeline"
	"github.com/ppiankov/nesach/internal/watch"
)

var (
	watchDebounce time.Duration
	watchExisting bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>...",
	Short: "Process PDFs as they are dropped into directories",
	Long: `Watch monitors directories recursively and processes every .pdf file
once it stops changing. Runs until interrupted.

Example:
  nesach watch ./inbox --sink sqlite
  nesach watch ./inbox --existing`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addPipelineFlags(watchCmd)

	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", time.Second, "quiet period before a file is processed")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "also process PDFs already present")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, logger, err := buildPipeline(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()
	defer func() { _ = logger.Sync() }()

	w, err := watch.New(watch.Config{
		Roots:       args,
		InitialScan: watchExisting,
		Debounce:    watchDebounce,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	renderer := pipeline.NewRenderer(false)
	for path := range w.Events() {
		rec, err := p.Process(ctx, path)
		if err != nil {
			logger.Warn("processing failed", zap.String("path", path), zap.Error(err))
			_ = renderer.RenderSummary(cmd.OutOrStdout(), failureSummary(path, err))
			continue
		}
		_ = renderer.RenderSummary(cmd.OutOrStdout(), rec.Summarize())
	}
	return <-errCh
}
