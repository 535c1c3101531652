package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/docrefine/internal/output"
	"github.com/jmylchreest/docrefine/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if format == "" {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
			return nil
		}
		f, err := output.ParseFormat(format)
		if err != nil {
			return err
		}
		w, err := output.NewWriter(cmd.OutOrStdout(), f, output.WithTitle("docrefine"))
		if err != nil {
			return err
		}
		if err := w.Write(version.Get()); err != nil {
			return err
		}
		return w.Close()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().String("format", "", "structured output: json, yaml, markdown")
	rootCmd.Version = version.String()
}
