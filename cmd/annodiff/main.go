package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/annodiff/internal/compare"
	"github.com/ironsheep/annodiff/internal/config"
	"github.com/ironsheep/annodiff/internal/logger"
)

// Exit codes.
const (
	exitFailure = 1
	exitConfig  = 2
)

var rootCmd = &cobra.Command{
	Use:           "annodiff",
	Short:         "Compare two annotated datasets",
	Version:       GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `annodiff compares two annotated datasets (for example ground truth and model
predictions) item by item. Annotations are paired by overlap, and the result
reports matches, label mismatches, unmatched annotations and a label
confusion table.

Logs go to stderr; set ANNODIFF_LOG_LEVEL=debug or pass -v for more detail.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("verbose") {
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting verbose flag: %v\n", err)
				return
			}
			logger.SetVerbose(verbose)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.SetFlagErrorFunc(flagError)
}

// flagError marks flag parsing failures as configuration errors.
func flagError(_ *cobra.Command, err error) error {
	return fmt.Errorf("%w: %v", config.ErrInvalid, err)
}

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	if errors.Is(err, config.ErrInvalid) ||
		errors.Is(err, compare.ErrInvalidThreshold) ||
		errors.Is(err, compare.ErrIncompatibleVocabulary) {
		return exitConfig
	}
	return exitFailure
}

func main() {
	rootCmd.SetVersionTemplate(GetVersionInfo() + "\n")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
