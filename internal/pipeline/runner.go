// Package pipeline sequences the per-subject stages and owns the
// swallowing error boundary around them.
package pipeline

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/neurodata/fmripipe/internal/bids"
	"github.com/neurodata/fmripipe/internal/config"
	"github.com/neurodata/fmripipe/internal/logging"
)

// Run is the top-level entry point for one subject. It is the single
// swallow point in the program: stage errors and panics are logged here
// and never propagate, so a failed subject still lets the caller push
// whatever derivatives exist.
func Run(ctx context.Context, cfg *config.Config, log *logging.Logger) (stats RunStats) {
	start := time.Now()
	defer func() {
		stats.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			stats.Failed = true
			log.Error("Pipeline panicked: %v", r)
			for _, line := range strings.Split(strings.TrimSpace(string(debug.Stack())), "\n") {
				log.Error("  %s", line)
			}
		}
	}()

	namer, err := bids.NewNamer(cfg.Func, cfg.T1w, cfg.Atlas, cfg.OutDir)
	if err != nil {
		stats.Failed = true
		log.Error("Pipeline failed: %v", err)
		return stats
	}

	logHeader(cfg, log, namer)

	if err := Worker(ctx, cfg, log, namer, &stats); err != nil {
		stats.Failed = true
		log.Error("Pipeline failed: %v", err)
	}
	return stats
}

func logHeader(cfg *config.Config, log *logging.Logger, n *bids.Namer) {
	tok := n.Tokens()
	log.Info("Subject: %s", tok.Sub)
	if tok.Ses.OK {
		log.Info("Session: %s", tok.Ses.Value)
	}
	log.Info("Template: %s", n.TemplateSpace())
	log.Info("Output: %s", n.OutDir())
	log.Info("Connectome format: %s", cfg.Format)
	log.Info("Slice timing: %s", cfg.STC)
	if cfg.Clean {
		log.Info("Cleanup: removing intermediates after run")
	}
	if cfg.DryRun {
		log.Info("Dry run: no external tools will be invoked")
	}
}
