package commands

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/docrefine/internal/logger"
	"github.com/jmylchreest/docrefine/internal/output"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <file.md>",
	Short: "Judge the images referenced by a document",
	Long: `Ask a vision model whether each local image in a document is useful.

Relative references resolve against the document's directory; remote images
are not classified. The JSON output is the judgment report consumed by
"docrefine filter".

Examples:
  docrefine classify lecture.md -o judgments.json
  docrefine classify lecture.md --format markdown`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	formats := make([]string, 0, len(output.Formats()))
	for _, f := range output.Formats() {
		formats = append(formats, string(f))
	}

	flags := classifyCmd.Flags()
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: "+strings.Join(formats, ", "))
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	cl, err := buildClassifier(cfg)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}

	report, err := cl.ClassifyFile(ctx, args[0])
	if err != nil {
		return err
	}

	outPath, _ := cmd.Flags().GetString("output")
	w, closeFn, err := openOutput(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	writer, err := output.NewWriter(w, format,
		output.WithArray(true),
		output.WithTitle("Image judgments: "+filepath.Base(args[0])))
	if err != nil {
		return err
	}

	if format == output.FormatMarkdown {
		err = writer.Write(report)
	} else {
		err = writer.WriteAll(output.Items(report))
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return closeFn()
}
