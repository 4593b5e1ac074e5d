package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/nesach/internal/model"
	"github.com/ppiankov/nesach/internal/pipeline"
)

var (
	outJSON     string
	outMD       string
	timeout     time.Duration
	pdfEngine   string
	llmProvider string
	llmModel    string
	sinkKind    string
	noCache     bool
	parallel    bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <source>",
	Short: "Extract labeled fields from one PDF",
	Long: `Extract loads one PDF from S3 or the local filesystem, rejects it unless
it is a text PDF containing Hebrew, and extracts the labeled fields.

A one-line JSON summary is printed to stdout. Exit status:
  2  source missing, not a PDF, or too small
  3  PDF could not be parsed
  4  no extractable text (scanned document)
  5  no Hebrew text

Example:
  nesach extract s3://appraisals/2026/zero-report.pdf
  nesach extract ./zero-report.pdf --json out.json --md out.md
  nesach extract ./zero-report.pdf --llm openai --model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	addPipelineFlags(extractCmd)

	extractCmd.Flags().StringVar(&outJSON, "json", "", "write the full record as JSON to this path")
	extractCmd.Flags().StringVar(&outMD, "md", "", "write a Markdown report to this path")
	extractCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall timeout")
}

// addPipelineFlags registers the flags shared by every command that builds
// a pipeline
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&pdfEngine, "engine", "", "PDF text engine (ledongthuc, docconv)")
	cmd.Flags().StringVar(&llmProvider, "llm", "", "enrichment provider (openai, anthropic, ollama, gemini)")
	cmd.Flags().StringVar(&llmModel, "model", "", "enrichment model name")
	cmd.Flags().StringVar(&sinkKind, "sink", "", "record sink (object, postgres, sqlite, none)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the enrichment cache")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "scan pages concurrently")
}

// applyFlags overlays explicitly set flags on cfg
func applyFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Source.PDFEngine = pdfEngine
	}
	if flags.Changed("llm") {
		cfg.LLM.Provider = llmProvider
	}
	if flags.Changed("model") {
		cfg.LLM.Model = llmModel
	}
	if flags.Changed("sink") {
		cfg.Sink.Kind = sinkKind
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if flags.Changed("parallel") {
		cfg.Source.Parallel = parallel
	}
}

func buildPipeline(ctx context.Context, cmd *cobra.Command) (*pipeline.Pipeline, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	applyFlags(cmd, cfg)
	logger := newLogger(cfg)

	p, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, logger, nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	source := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	p, logger, err := buildPipeline(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()
	defer func() { _ = logger.Sync() }()

	renderer := pipeline.NewRenderer(p.Config().Output.Indent)

	rec, err := p.Process(ctx, source)
	if err != nil {
		_ = renderer.RenderSummary(cmd.OutOrStdout(), failureSummary(source, err))
		return err
	}

	if outJSON != "" {
		if err := renderer.RenderJSON(rec, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		logger.Info("wrote JSON", zap.String("path", outJSON))
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(rec, outMD); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		logger.Info("wrote Markdown", zap.String("path", outMD))
	}

	if verbose {
		for _, m := range rec.Matches {
			fmt.Fprintf(os.Stderr, "  %-18s %s  (%s, page %d line %d)\n", m.Key, m.Value, m.Provenance, m.Page, m.Line)
		}
	}
	return renderer.RenderSummary(cmd.OutOrStdout(), rec.Summarize())
}

func failureSummary(source string, err error) model.Summary {
	return model.Summary{Status: "ERROR", Key: source, Error: err.Error()}
}
