package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/nesach/internal/export"
	"github.com/ppiankov/nesach/internal/pipeline"
	"github.com/ppiankov/nesach/internal/worker"
)

var (
	concurrency  int
	xlsxPath     string
	batchTimeout time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Extract fields from many PDFs listed in a file",
	Long: `Batch reads one source per line (s3://bucket/key or a local path; blank
lines and # comments are skipped) and processes them concurrently.

One summary line per source is printed to stdout in input order.
Use --xlsx to also write a spreadsheet of all results.

Example:
  nesach batch sources.txt
  nesach batch sources.txt --concurrency 8 --xlsx results.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addPipelineFlags(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent documents (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&xlsxPath, "xlsx", "", "write an XLSX summary to this path")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for the batch")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	refs, err := worker.ReadSourcesFromFile(args[0])
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return fmt.Errorf("no sources in %s", args[0])
	}

	p, logger, err := buildPipeline(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()
	defer func() { _ = logger.Sync() }()

	workers := concurrency
	if workers <= 0 {
		workers = p.Config().Concurrency.Workers
	}

	logger.Info("batch started",
		zap.String("file", args[0]),
		zap.Int("sources", len(refs)),
		zap.Int("workers", workers))

	start := time.Now()
	bp := worker.NewBatchProcessor(p, workers)
	done := 0
	bp.OnResult(func(r *worker.DocResult) {
		done++
		if verbose {
			status := "ok"
			if r.Error != nil {
				status = r.Error.Error()
			}
			fmt.Fprintf(os.Stderr, "[%d/%d] %s: %s\n", done, len(refs), r.Ref, status)
		}
	})
	results := bp.ProcessRefs(ctx, refs)

	renderer := pipeline.NewRenderer(false)
	rows := make([]export.Row, len(results))
	for i, r := range results {
		rows[i] = export.Row{Source: r.Ref, Record: r.Record, Err: r.Error}
		if r.Error != nil {
			_ = renderer.RenderSummary(cmd.OutOrStdout(), failureSummary(r.Ref, r.Error))
			continue
		}
		_ = renderer.RenderSummary(cmd.OutOrStdout(), r.Record.Summarize())
	}

	if xlsxPath != "" {
		if err := export.WriteXLSX(xlsxPath, rows); err != nil {
			return err
		}
		logger.Info("wrote XLSX", zap.String("path", xlsxPath))
	}

	failed := worker.Failed(results)
	fmt.Fprintf(os.Stderr, "Processed %d sources in %v: %d ok, %d failed\n",
		len(results), time.Since(start).Round(time.Millisecond), len(results)-len(failed), len(failed))
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d sources failed", len(failed), len(results))
	}
	return nil
}
