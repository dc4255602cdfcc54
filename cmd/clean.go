package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tanq16/dw/internal/output"
	"github.com/tanq16/dw/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [path...]",
		Short: "Remove files left behind by failed downloads",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			failed := false
			for _, path := range args {
				if err := utils.RemovePartial(path); err != nil {
					output.PrintError(fmt.Sprintf("Error cleaning %s: %v", path, err))
					failed = true
					continue
				}
				output.PrintSuccess(fmt.Sprintf("Cleaned %s", path))
			}
			if failed {
				os.Exit(1)
			}
		},
	}
}
