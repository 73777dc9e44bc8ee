package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/neurodata/fmripipe/internal/bids"
	"github.com/neurodata/fmripipe/internal/config"
	"github.com/neurodata/fmripipe/internal/display"
	"github.com/neurodata/fmripipe/internal/graph"
	"github.com/neurodata/fmripipe/internal/logging"
	"github.com/neurodata/fmripipe/internal/nuis"
	"github.com/neurodata/fmripipe/internal/preproc"
	"github.com/neurodata/fmripipe/internal/qa"
	"github.com/neurodata/fmripipe/internal/reg"
	"github.com/neurodata/fmripipe/internal/timeseries"
)

// Worker runs the full stage sequence for one subject: functional and
// anatomical preprocessing, self and template alignment, nuisance
// correction, voxel and per-label ROI timeseries, connectome
// construction, QA stats, and cleanup. Stage outputs feed the next stage
// by the paths fixed in the DerivativePlan.
func Worker(ctx context.Context, cfg *config.Config, log *logging.Logger, n *bids.Namer, stats *RunStats) error {
	plan, err := BuildPlan(n, cfg.Format, cfg.Labels)
	if err != nil {
		return err
	}

	tok := n.Tokens()
	stats.Subject = tok.Sub
	col := qa.NewCollector(tok.Sub, tok.Ses.Value)

	if cfg.DryRun {
		logDryRun(log, plan)
		return nil
	}

	env := []string{"FSLOUTPUTTYPE=" + cfg.FSLOutputType}

	// --- Functional preprocessing ---
	fn := &preproc.Func{
		Input:   cfg.Func,
		Preproc: plan.PreprocFunc,
		Motion:  plan.MotionCorrected,
		TmpDir:  plan.TmpBase,
		STC:     cfg.STC,
		STCFile: cfg.STCFile,
		Env:     env,
		Verbose: cfg.Verbose,
	}
	if err := runStage(ctx, log, stats, col, "preproc-func", func() (map[string]float64, error) {
		if err := fn.Run(ctx); err != nil {
			return nil, err
		}
		return motionMetrics(fn.MotionParams), nil
	}); err != nil {
		return err
	}
	stats.Derivatives += 2

	// --- Anatomical preprocessing ---
	an := &preproc.Anat{
		Input:   cfg.T1w,
		Brain:   plan.PreprocBrain,
		TmpDir:  plan.TmpBase,
		Env:     env,
		Verbose: cfg.Verbose,
	}
	if err := runStage(ctx, log, stats, col, "preproc-anat", func() (map[string]float64, error) {
		return nil, an.Run(ctx)
	}); err != nil {
		return err
	}
	stats.Derivatives++

	// --- Registration ---
	ep := &reg.EPI{
		Func:        plan.PreprocFunc,
		T1w:         cfg.T1w,
		T1wBrain:    plan.PreprocBrain,
		Atlas:       cfg.Atlas,
		AtlasBrain:  cfg.AtlasBrain,
		AtlasMask:   cfg.AtlasMask,
		AlignedFunc: plan.AlignedFunc,
		AlignedT1w:  plan.AlignedT1w,
		TmpDir:      plan.TmpBase,
		Env:         env,
		Verbose:     cfg.Verbose,
	}
	if err := runStage(ctx, log, stats, col, "register-self", func() (map[string]float64, error) {
		return nil, ep.SelfAlign(ctx)
	}); err != nil {
		return err
	}
	if err := runStage(ctx, log, stats, col, "register-template", func() (map[string]float64, error) {
		return nil, ep.TemplateAlign(ctx)
	}); err != nil {
		return err
	}
	stats.Derivatives += 2

	// --- Nuisance correction ---
	nc := &nuis.Correct{
		Input:        plan.AlignedFunc,
		BrainMask:    cfg.AtlasMask,
		LVMask:       cfg.LVMask,
		MotionParams: fn.MotionParams,
		Output:       plan.Clean,
	}
	if err := runStage(ctx, log, stats, col, "nuisance", func() (map[string]float64, error) {
		if err := nc.Run(); err != nil {
			return nil, err
		}
		return map[string]float64{"regressors": float64(nc.Regressors)}, nil
	}); err != nil {
		return err
	}
	stats.Derivatives++

	// --- Voxel timeseries ---
	vox := &timeseries.Voxel{
		Input:  plan.Clean,
		Mask:   cfg.AtlasMask,
		Masked: plan.VoxelNIfTI,
		Output: plan.VoxelNpy,
	}
	if err := runStage(ctx, log, stats, col, "voxel-timeseries", func() (map[string]float64, error) {
		if err := vox.Run(); err != nil {
			return nil, err
		}
		return map[string]float64{"voxels": float64(vox.Voxels)}, nil
	}); err != nil {
		return err
	}
	stats.Derivatives += 2

	// --- Per-label ROI timeseries and connectomes ---
	for _, label := range cfg.Labels {
		name := bids.GetLabel(label)
		roi := &timeseries.ROI{
			Input:  plan.Clean,
			Labels: label,
			Output: plan.ROINpy[name],
		}
		err := runStage(ctx, log, stats, col, "connectome-"+name, func() (map[string]float64, error) {
			series, err := roi.Run()
			if err != nil {
				return nil, err
			}
			g, err := graph.FromTimeseries(series, roi.RegionIDs)
			if err != nil {
				return nil, err
			}
			if err := g.Save(plan.Connectome[name], cfg.Format); err != nil {
				return nil, err
			}
			return g.Summary(), nil
		})
		if err != nil {
			return err
		}
		stats.Derivatives += 2
	}

	// --- QA stats ---
	// QA is a side channel: a failed stats dump is reported but never
	// fails the run.
	if err := col.Save(plan.QAStats); err != nil {
		log.Warn("QA stats not saved: %v", err)
	} else {
		log.Info("QA stats: %s", plan.QAStats)
		stats.Derivatives++
	}

	cleanup(cfg, log, plan)
	log.Success("Subject %s done in %ds (%d derivatives)",
		tok.Sub, int(col.TotalSeconds()), stats.Derivatives)
	return nil
}

// runStage times one stage, records its QA snapshot, and stops early on
// context cancellation.
func runStage(
	ctx context.Context,
	log *logging.Logger,
	stats *RunStats,
	col *qa.Collector,
	name string,
	fn func() (map[string]float64, error),
) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	log.Stage("=== %s ===", name)

	start := time.Now()
	metrics, err := fn()
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	col.Record(name, elapsed, metrics)
	stats.Stages++
	log.Success("%s done in %ds", name, int(elapsed.Seconds()))
	return nil
}

// motionMetrics summarizes the mcflirt .par file: maximum absolute
// rotation (first three columns, radians) and translation (last three,
// mm). A missing or malformed file yields no metrics rather than a
// failed stage.
func motionMetrics(parPath string) map[string]float64 {
	rows, err := nuis.ReadMotionParams(parPath, -1)
	if err != nil {
		return nil
	}
	var maxRot, maxTrans float64
	for _, row := range rows {
		for j, v := range row {
			a := math.Abs(v)
			if j < 3 {
				maxRot = math.Max(maxRot, a)
			} else {
				maxTrans = math.Max(maxTrans, a)
			}
		}
	}
	return map[string]float64{
		"volumes":            float64(len(rows)),
		"max_rotation_rad":   maxRot,
		"max_translation_mm": maxTrans,
	}
}

// cleanup removes scratch space after a successful run. The tmp scope
// always goes; intermediate output directories go only under --clean.
func cleanup(cfg *config.Config, log *logging.Logger, plan *DerivativePlan) {
	var freed int64
	freed += dirSize(plan.TmpBase)
	if err := os.RemoveAll(plan.TmpBase); err != nil {
		log.Warn("Cannot remove tmp dir %s: %v", plan.TmpBase, err)
	}
	if cfg.Clean {
		for _, dir := range plan.CleanupDirs {
			freed += dirSize(dir)
			if err := os.RemoveAll(dir); err != nil {
				log.Warn("Cannot remove %s: %v", dir, err)
			}
		}
	}
	log.Info("Cleanup freed %s", display.FormatBytesWithSign(-freed))
}

// dirSize totals the file sizes under root; 0 for a missing tree.
func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

func logDryRun(log *logging.Logger, plan *DerivativePlan) {
	log.Info("[DRY] Would write:")
	paths := []string{
		plan.MotionCorrected,
		plan.PreprocFunc,
		plan.PreprocBrain,
		plan.AlignedFunc,
		plan.AlignedT1w,
		plan.Clean,
		plan.VoxelNIfTI,
		plan.VoxelNpy,
	}
	for _, name := range plan.LabelNames() {
		paths = append(paths, plan.ROINpy[name], plan.Connectome[name])
	}
	paths = append(paths, plan.QAStats)
	for _, p := range paths {
		log.Info("  %s", p)
	}
}
