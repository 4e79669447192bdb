// Package main is the photoproof analyst CLI: local analysis of single
// images or folders, plus evidence upload to object storage.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "photoproof: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photoproof",
		Short: "Image authenticity analysis CLI",
		Long: `photoproof analyzes photographs for signs of manipulation: content hashing,
EXIF metadata extraction, Error Level Analysis and an ordered authenticity
policy. Analysis runs entirely locally; the upload command additionally pushes
accepted evidence and its report to object storage.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newAnalyzeCmd(),
		newBatchCmd(),
		newUploadCmd(),
	)
	return cmd
}
