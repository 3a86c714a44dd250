// Package cli defines the attachment-triage command tree. Exit codes: 0 when
// every item succeeded, 1 for fatal configuration or setup errors, 2 when the
// batch completed but some items failed.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errPartialFailure marks a run that completed with per-item failures.
var errPartialFailure = errors.New("completed with per-item failures")

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attachment-triage",
		Short: "Classifies email attachments as relevant or irrelevant using an LLM",
		Long: `attachment-triage reads .eml files, asks a text-reasoning service to
partition each email's attachments into "relevant" and "irrelevant" based
only on the HTML body, writes one prediction file per email, and scores
predictions against labeled ground truth.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newClassifyCmd())
	cmd.AddCommand(newEvaluateCmd())
	return cmd
}

// Execute runs the root command and maps its outcome to a process exit code.
func Execute() int {
	err := newRootCmd().Execute()
	if err == nil {
		return 0
	}
	if errors.Is(err, errPartialFailure) {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return 2
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}
