package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/jmylchreest/docrefine/internal/logger"
	"github.com/jmylchreest/docrefine/pkg/docrefine"
)

var convertCmd = &cobra.Command{
	Use:   "convert <source>...",
	Short: "Refine documents into clean Markdown",
	Long: `Run the refinement pipeline on one or more documents.

Markdown and HTML sources are handled directly. Other formats (PDF, PPTX)
need an extraction engine configured under extract.command.

The full pipeline classifies images, filters the useless ones, cleans the
text and rewrites it with a language model. --raw stops after cleaning and
also removes bare caption words.

Examples:
  # One document to stdout
  docrefine convert lecture.md

  # Several documents into a directory, two at a time
  docrefine convert slides/*.md -o refined/ -c 2

  # Deterministic output only
  docrefine convert --raw lecture.md -o lecture.clean.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	flags := convertCmd.Flags()
	flags.Bool("raw", false, "run the raw pipeline (no rewrite, caption cleanup)")
	flags.StringP("output", "o", "", "output file, or directory for several sources (default: stdout for one source)")
	flags.IntP("concurrency", "c", 1, "documents processed at once")
	flags.Bool("skip-images", false, "keep every image instead of classifying them")
}

// convertJob is one source and where its result goes.
type convertJob struct {
	source string
	output string
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	raw, _ := cmd.Flags().GetBool("raw")
	skipImages, _ := cmd.Flags().GetBool("skip-images")
	outPath, _ := cmd.Flags().GetString("output")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	mode := docrefine.ModeFull
	if raw {
		mode = docrefine.ModeRaw
	}

	r, err := buildRefiner(cfg, mode, skipImages)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}

	jobs, err := planOutputs(args, outPath)
	if err != nil {
		return err
	}

	logger.Info("starting conversion",
		"documents", len(jobs),
		"mode", string(mode),
		"concurrency", concurrency)

	start := time.Now()
	sem := semaphore.NewWeighted(int64(concurrency))
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
		bytes  uint64
	)
	for _, job := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(job convertJob) {
			defer wg.Done()
			defer sem.Release(1)

			n, err := convertOne(ctx, r, job, mode)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				logger.Error("conversion failed", "source", job.source, "error", err)
				return
			}
			bytes += n
		}(job)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return fmt.Errorf("conversion interrupted: %w", ctx.Err())
	}

	logger.Info("conversion complete",
		"documents", len(jobs),
		"failed", failed,
		"written", humanize.Bytes(bytes),
		"duration", time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(jobs))
	}
	return nil
}

func convertOne(ctx context.Context, r *docrefine.Refiner, job convertJob, mode docrefine.Mode) (uint64, error) {
	res, err := r.RefineFile(ctx, job.source, mode)
	if err != nil {
		return 0, err
	}
	if res.Rewrite != nil && res.Rewrite.Fallback {
		logger.Warn("rewrite unavailable, wrote cleaned document", "source", job.source)
	}
	if err := writeText(job.output, res.Text); err != nil {
		return 0, err
	}
	if job.output != "" {
		logger.Info("document written", "source", job.source, "output", job.output)
	}
	return uint64(len(res.Text)), nil
}

// planOutputs decides where each source's result goes. One source with no
// output goes to stdout; an output that is a directory (or ends in a path
// separator) receives <stem>.md per source; several sources with no output
// are written next to each source as <stem>.refined.md.
func planOutputs(sources []string, out string) ([]convertJob, error) {
	jobs := make([]convertJob, 0, len(sources))

	toDir := strings.HasSuffix(out, "/") || strings.HasSuffix(out, string(os.PathSeparator))
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		toDir = true
	}
	if out != "" && !toDir && len(sources) > 1 {
		return nil, fmt.Errorf("output %s must be a directory when converting %d sources", out, len(sources))
	}

	for _, src := range sources {
		stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		job := convertJob{source: src}
		switch {
		case toDir:
			job.output = filepath.Join(out, stem+".md")
		case out != "":
			job.output = out
		case len(sources) > 1:
			job.output = filepath.Join(filepath.Dir(src), stem+".refined.md")
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
