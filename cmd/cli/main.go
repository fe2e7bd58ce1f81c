package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hamed0406/tileprobe/internal/probe"
)

// errProbeFailed is returned when a probe ran but the page never became
// ready. The status line has already been printed.
var errProbeFailed = errors.New("readiness condition not observed")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errProbeFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tileprobe",
		Short:         "Screenshot a tile map page once it reports its tiles loaded",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newBatchCommand())
	cmd.AddCommand(newAddCommand())
	cmd.AddCommand(newInstallCommand())
	return cmd
}

func newInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Download the playwright driver and Chromium",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := probe.InstallChromium(); err != nil {
				return fmt.Errorf("install chromium: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "chromium installed")
			return nil
		},
	}
}
