package commands

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/docrefine/internal/logger"
	"github.com/jmylchreest/docrefine/pkg/cleaner"
	"github.com/jmylchreest/docrefine/pkg/imagefilter"
	"github.com/jmylchreest/docrefine/pkg/judgment"
	"github.com/jmylchreest/docrefine/pkg/mathmask"
)

var cleanCmd = &cobra.Command{
	Use:   "clean <file.md>",
	Short: "Clean a document without touching its math",
	Long: `Mask LaTeX math, run the structural cleaner and restore the math.

The structural cleaner normalizes image paths, drops placeholder lines,
collapses repeated lines and sections and normalizes blank lines.`,
	Args: cobra.ExactArgs(1),
	RunE: runClean,
}

var stripLogosCmd = &cobra.Command{
	Use:   "strip-logos <file.md>",
	Short: "Remove \"logo\" lines and the image that follows them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		return runCleaner(cmd, args[0], cleaner.NewLogoBlockStripper())
	},
}

var captionsCmd = &cobra.Command{
	Use:   "captions <file.md>",
	Short: "Remove lines holding only a bare caption word",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runCleaner(cmd, args[0], cleaner.NewCaptionTokenRemover(cfg.Cleaner.CaptionTokens))
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter <file.md>",
	Short: "Apply a judgment report to a document",
	Long: `Remove references to images judged useless and point references to
useful images at their resolved path. The report is the JSON written by
"docrefine classify" or kept by "docrefine convert --keep-report".`,
	Args: cobra.ExactArgs(1),
	RunE: runFilter,
}

func init() {
	for _, c := range []*cobra.Command{cleanCmd, stripLogosCmd, captionsCmd, filterCmd} {
		c.Flags().StringP("output", "o", "", "output file (default: stdout)")
		rootCmd.AddCommand(c)
	}
	filterCmd.Flags().StringP("report", "r", "", "judgment report (JSON)")
	_ = filterCmd.MarkFlagRequired("report")
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	doc, err := readInput(args[0])
	if err != nil {
		return err
	}

	masked, masks := mathmask.Mask(doc)
	cleaned, err := cleaner.NewStructural(cfg.StructuralConfig()).Clean(masked)
	if err != nil {
		return err
	}
	logger.Debug("document cleaned", "math_spans", masks.Len(), "before", len(doc), "after", len(cleaned))

	outPath, _ := cmd.Flags().GetString("output")
	return writeText(outPath, mathmask.Restore(cleaned, masks))
}

func runCleaner(cmd *cobra.Command, path string, cl cleaner.Cleaner) error {
	doc, err := readInput(path)
	if err != nil {
		return err
	}
	out, err := cl.Clean(doc)
	if err != nil {
		return err
	}
	logger.Debug("cleaner applied", "cleaner", cl.Name(), "before", len(doc), "after", len(out))

	outPath, _ := cmd.Flags().GetString("output")
	return writeText(outPath, out)
}

func runFilter(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	doc, err := readInput(args[0])
	if err != nil {
		return err
	}
	reportPath, _ := cmd.Flags().GetString("report")
	report, err := judgment.ReadFile(reportPath)
	if err != nil {
		return err
	}

	out, stats := imagefilter.Apply(doc, report)
	logger.Info("images filtered",
		"removed", stats.Removed,
		"rewritten", stats.Rewritten,
		"unjudged", stats.Unjudged)

	outPath, _ := cmd.Flags().GetString("output")
	return writeText(outPath, out+"\n")
}
