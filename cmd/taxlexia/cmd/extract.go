package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf>",
	Short: "Extract the text of one PDF without calling the model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		res, err := newExtractor(cfg, logger).Extract(cmd.Context(), data, filepath.Base(args[0]))
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "method: %s\npages: %d\nduration: %s\n", res.Method, res.Pages, res.Duration)
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		fmt.Fprintf(out, "\n%s\n", res.Text)
		return err
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
