package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/subtext/internal/transcript"
)

var detectCmd = &cobra.Command{
	Use:   "detect [file]",
	Short: "Print the detected transcript format",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), transcript.DetectFormat(text))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
