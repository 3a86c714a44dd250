package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/attachment-triage/internal/config"
	"github.com/mikey/attachment-triage/internal/core"
	"github.com/mikey/attachment-triage/internal/di"
	"github.com/mikey/attachment-triage/internal/extract"
	"github.com/mikey/attachment-triage/internal/runner"
)

func newClassifyCmd() *cobra.Command {
	var (
		inputDir    string
		outputDir   string
		provider    string
		workers     int
		maxAttempts int
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify attachments for every .eml file in a directory",
		Long: `Read every .eml file in the input directory, classify its attachments via
the configured LLM provider, and write one attachments_<id>.json prediction
file per email to the output directory. Failed emails are reported in the
run summary and never abort the batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			v := cfg.GetViper()
			if cmd.Flags().Changed("input") {
				v.Set("io.input_dir", inputDir)
			}
			if cmd.Flags().Changed("output") {
				v.Set("io.output_dir", outputDir)
			}
			if cmd.Flags().Changed("provider") {
				v.Set("llm.provider", provider)
			}
			if cmd.Flags().Changed("workers") {
				v.Set("runner.workers", workers)
			}
			if cmd.Flags().Changed("max-attempts") {
				v.Set("retry.max_attempts", maxAttempts)
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			return runClassify(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", "examples", "Directory of .eml files to classify")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "output", "Directory for prediction files")
	cmd.Flags().StringVar(&provider, "provider", "openai", "LLM provider (openai, gemini, bedrock)")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent classification workers")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 5, "Per-email provider call budget")
	return cmd
}

func runClassify(ctx context.Context, cfg *config.Config) error {
	container, err := di.BuildContainer(cfg, cfg.GetString("io.output_dir"))
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return container.Invoke(func(
		logger *zap.Logger,
		batch *runner.BatchRunner,
		llm core.LLMClient,
		cache core.VerdictCache,
	) error {
		defer logger.Sync()
		defer func() {
			if closer, ok := llm.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					logger.Error("Failed to close LLM client", zap.Error(err))
				}
			}
			if stopper, ok := cache.(interface{ Stop() }); ok {
				stopper.Stop()
			}
		}()

		pattern, err := extract.NewNamePattern(cfg.GetString("extract.name_pattern"))
		if err != nil {
			return err
		}
		records, err := extract.LoadDir(cfg.GetString("io.input_dir"), pattern, logger)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			logger.Warn("No .eml files found", zap.String("dir", cfg.GetString("io.input_dir")))
			return nil
		}

		summary, err := batch.Run(ctx, records)
		if err != nil {
			return err
		}
		printSummary(summary)
		if !summary.Succeeded() {
			return fmt.Errorf("%d of %d emails failed: %w", summary.Failed, summary.Total, errPartialFailure)
		}
		return nil
	})
}

func printSummary(summary *runner.RunSummary) {
	fmt.Printf("\n=== Run Summary ===\n")
	fmt.Printf("Run ID:     %s\n", summary.RunID)
	fmt.Printf("Emails:     %d\n", summary.Total)
	fmt.Printf("Written:    %d\n", summary.Written)
	fmt.Printf("Failed:     %d\n", summary.Failed)
	fmt.Printf("Cache hits: %d\n", summary.CacheHits)
	fmt.Printf("Elapsed:    %v\n", summary.Elapsed)
	for kind, n := range summary.FailuresByKind {
		fmt.Printf("  %s: %d\n", kind, n)
	}
}
