package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/docrefine/internal/logger"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <file.md>",
	Short: "Polish a cleaned document with a language model",
	Long: `Send a document through the rewrite fallback chain.

Backends are tried in the order of the selected policy (--order-key), or of
rewrite.fallback_order. When every backend fails the input is written
unchanged.

Examples:
  docrefine rewrite lecture.clean.md -o lecture.md
  docrefine rewrite lecture.clean.md --order-key local`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRewrite,
}

func init() {
	rootCmd.AddCommand(rewriteCmd)
	rewriteCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	rewriteCmd.Flags().Bool("show-chain", false, "print the backends that would be tried and exit")
}

func runRewrite(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	orch := buildRewriter(cfg)
	if show, _ := cmd.Flags().GetBool("show-chain"); show {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(orch.Order(cfg.Rewrite.OrderKey), " -> "))
		return nil
	}
	if len(args) == 0 {
		return cmd.Help()
	}

	doc, err := readInput(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	outcome := orch.Rewrite(ctx, doc, cfg.Rewrite.OrderKey)
	if outcome.Fallback {
		logger.Warn("no rewrite produced, writing input unchanged", "error", outcome.Err)
	}

	outPath, _ := cmd.Flags().GetString("output")
	return writeText(outPath, outcome.Text)
}
