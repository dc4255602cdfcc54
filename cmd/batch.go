package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tanq16/dw/internal/output"
	"github.com/tanq16/dw/internal/scheduler"
	"github.com/tanq16/dw/internal/utils"
)

// connections summed over all workers never exceed this
const maxTotalConnections = 64

func newBatchCmd(opts *options) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE] [OPTIONS]",
		Short: "Process multiple downloads from a YAML file",
		Long: `Process multiple downloads from a YAML file holding a list of entries:

  - link: https://example.com/file.iso
    op: downloads/file.iso   # optional output path`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if workers < 1 {
				output.PrintError("--workers must be at least 1")
				os.Exit(1)
			}
			cfg, err := opts.transferConfig(cmd)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			entries, err := utils.ReadBatchFile(args[0])
			if err != nil {
				output.PrintError(fmt.Sprintf("Error reading batch file: %v", err))
				os.Exit(1)
			}
			if len(entries) == 0 {
				output.PrintError("No valid jobs found in the batch file")
				os.Exit(1)
			}
			jobs := buildJobs(entries, cfg, workers)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			// a single progressbar cannot share the terminal with other workers
			progress := output.ProgressFactory(opts.quiet || workers > 1)
			summary, err := scheduler.Run(ctx, jobs, workers, progress)
			summary.ShowSummary()
			if err != nil {
				output.PrintError("Encountered failed operation(s)")
				stop()
				os.Exit(1)
			}
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Number of links to download in parallel")
	return cmd
}

func buildJobs(entries []utils.BatchEntry, cfg utils.TransferConfig, workers int) []utils.TransferJob {
	perLink := cfg
	if workers*cfg.MaxConnections > maxTotalConnections {
		perLink.MaxConnections = max(maxTotalConnections/workers, 1)
	}
	jobs := make([]utils.TransferJob, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, utils.TransferJob{
			URL:        entry.URL,
			OutputPath: entry.OutputPath,
			Config:     perLink,
			Metadata:   make(map[string]any),
		})
	}
	return jobs
}
