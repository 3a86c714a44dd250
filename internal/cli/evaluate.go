package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/attachment-triage/internal/eval"
	"github.com/mikey/attachment-triage/internal/logging"
	"github.com/mikey/attachment-triage/internal/store"
)

func newEvaluateCmd() *cobra.Command {
	var (
		predictionsDir string
		groundTruthDir string
		reportFile     string
		missingPolicy  string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score predictions against ground truth",
		Long: `Load every prediction and ground-truth file, compute per-file confusion
counts and precision/recall/F1/accuracy, and print the macro-averaged
summary (with the pooled micro average as a secondary diagnostic). Missing
or unreadable predictions become flagged rows, never abort the report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := eval.ParseMissingPolicy(missingPolicy)
			if err != nil {
				return err
			}
			logger, err := logging.InitConsoleLogger(false, false)
			if err != nil {
				return err
			}
			defer logger.Sync()

			truth, truthErrs, err := store.LoadDir(groundTruthDir)
			if err != nil {
				return err
			}
			for id, loadErr := range truthErrs {
				logger.Warn("Skipping unreadable ground truth file",
					zap.String("email_id", id), zap.Error(loadErr))
			}
			if len(truth) == 0 {
				return fmt.Errorf("no ground truth files found in %s", groundTruthDir)
			}

			preds, predErrs, err := store.LoadDir(predictionsDir)
			if err != nil {
				return err
			}

			report := eval.Evaluate(preds, truth, predErrs, policy)
			report.WriteText(cmd.OutOrStdout())

			if reportFile != "" {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode report: %w", err)
				}
				if err := os.WriteFile(reportFile, append(data, '\n'), 0o644); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
			}

			if report.HasFailures() {
				return fmt.Errorf("evaluation covered the ground truth only partially: %w", errPartialFailure)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&predictionsDir, "predictions", "p", "output", "Directory of prediction files")
	cmd.Flags().StringVarP(&groundTruthDir, "ground-truth", "g", "ground_truth", "Directory of ground-truth files")
	cmd.Flags().StringVar(&reportFile, "report", "", "Optional path for a JSON copy of the report")
	cmd.Flags().StringVar(&missingPolicy, "missing-policy", "zero", "Missing-prediction policy (zero, exclude)")
	return cmd
}
