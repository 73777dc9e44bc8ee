// Command fmripipe is the CLI entrypoint for the fMRI connectome
// pipeline.
//
// It parses flags, validates configuration and input paths, and either
// runs tool diagnostics (--check) or the preprocessing → registration →
// nuisance → timeseries → connectome pipeline, with optional S3 fetch of
// inputs and push of derivatives.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/neurodata/fmripipe/internal/bids"
	"github.com/neurodata/fmripipe/internal/cloud"
	"github.com/neurodata/fmripipe/internal/config"
	"github.com/neurodata/fmripipe/internal/display"
	"github.com/neurodata/fmripipe/internal/fsl"
	"github.com/neurodata/fmripipe/internal/logging"
	"github.com/neurodata/fmripipe/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Phase 1: Bootstrap — the logger doesn't exist yet, so errors go
	// directly to stderr via fmt. Once NewLogger succeeds, all output
	// goes through the logger for consistent formatting and log-file
	// capture.
	cfg := config.DefaultConfig()
	if err := config.ParseFlags(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "fmripipe: %v\n", err)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "fmripipe: %v\n", err)
		return 1
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fmripipe: %v\n", err)
		return 1
	}
	defer log.Close()

	// Phase 2: Logger available — all output goes through log from here on.
	display.PrintBanner()

	if cfg.CheckOnly {
		fsl.RunCheck(log)
		return 0
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		log.Error("Cannot create output directory: %s", cfg.OutDir)
		return 1
	}

	log.Info("=== fmripipe v%s ===", config.Version())
	log.Info("Functional: %s", cfg.Func)
	log.Info("Anatomical: %s", cfg.T1w)
	log.Info("Out: %s", cfg.OutDir)
	if cfg.DryRun {
		log.Warn("DRY RUN — no external tools will be invoked")
	}
	log.Info("")

	// Fail fast if the FSL tools the stages shell out to are missing.
	if !cfg.DryRun {
		if err := fsl.CheckTools(fsl.PipelineTools...); err != nil {
			log.Error("%v", err)
			return 1
		}
	}

	// Phase 3: Signal handling — cancel context on SIGINT/SIGTERM so the
	// pipeline can stop between stages without leaving partial output.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("Received interrupt, finishing current stage…")
		cancel()
	}()

	// Phase 4: Optional input fetch from S3.
	if cfg.FetchLocation != "" {
		if err := fetchInputs(ctx, &cfg, log); err != nil {
			log.Error("%v", err)
			return 1
		}
	}

	// Phase 5: Run the pipeline. Internal failure is logged inside the
	// run boundary and does not change the exit code; whatever
	// derivatives exist still get pushed.
	stats := pipeline.Run(ctx, &cfg, log)
	logSummary(log, &cfg, stats)

	// Phase 6: Optional derivative push to S3.
	if cfg.PushLocation != "" && !cfg.DryRun {
		if err := pushDerivatives(ctx, &cfg, log); err != nil {
			log.Error("%v", err)
		}
	}

	return 0
}

// fetchInputs pulls the subject's subtree behind --fetch down to the
// local dataset root, so the positional paths resolve after the
// transfer. When the subject directory cannot be located in the
// functional path, the whole location is fetched.
func fetchInputs(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	loc, err := cloud.ParseS3URI(cfg.FetchLocation)
	if err != nil {
		return err
	}

	tr := &cloud.Transfer{Region: cfg.S3Region, NoSign: cfg.S3NoSign, Verbose: cfg.Verbose}
	if !cfg.S3NoSign {
		api, err := cloud.NewBucketLister(ctx, cfg.S3Region)
		if err != nil {
			return err
		}
		if err := cloud.EnsureBucket(ctx, api, loc.Bucket); err != nil {
			return err
		}
	}

	subject, dest := fetchTarget(cfg)
	log.Info("Fetching %s -> %s", loc, dest)
	if err := tr.Fetch(ctx, loc, subject, dest); err != nil {
		return err
	}
	log.Success("Fetch complete")
	return nil
}

// fetchTarget derives the subject directory to narrow the fetch to and
// the local dataset root it should land in. The root is the parent of
// the sub-* component in the functional path.
func fetchTarget(cfg *config.Config) (subject, dest string) {
	tok, err := bids.ParseTokens(cfg.Func, cfg.Atlas)
	if err != nil {
		return "", filepath.Dir(filepath.Dir(cfg.Func))
	}
	dir := filepath.Dir(cfg.Func)
	for dir != "/" && dir != "." {
		if filepath.Base(dir) == tok.Sub {
			return tok.Sub, filepath.Dir(dir)
		}
		dir = filepath.Dir(dir)
	}
	return "", filepath.Dir(filepath.Dir(cfg.Func))
}

func pushDerivatives(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	loc, err := cloud.ParseS3URI(cfg.PushLocation)
	if err != nil {
		return err
	}
	tr := &cloud.Transfer{Region: cfg.S3Region, NoSign: cfg.S3NoSign, Verbose: cfg.Verbose}
	log.Info("Pushing %s -> %s", cfg.OutDir, loc)
	if err := tr.Push(ctx, cfg.OutDir, loc); err != nil {
		return err
	}
	log.Success("Push complete")
	return nil
}

func logSummary(log *logging.Logger, cfg *config.Config, stats pipeline.RunStats) {
	log.Info("==============================")
	if stats.Failed {
		log.Error("Done with errors: %d stages completed, %d derivatives", stats.Stages, stats.Derivatives)
	} else {
		log.Info("Done: %d stages, %d derivatives in %ds", stats.Stages, stats.Derivatives, int(stats.Elapsed.Seconds()))
	}
	if cfg.DryRun {
		log.Info("Output size: n/a (dry run)")
		return
	}
	if size, err := dirSize(cfg.OutDir); err == nil {
		log.Info("Output size: %s", display.FormatBytes(size))
	}
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
