package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neurodata/fmripipe/internal/bids"
	"github.com/neurodata/fmripipe/internal/config"
	"github.com/neurodata/fmripipe/internal/logging"
)

func testNamer(t *testing.T, outDir string) *bids.Namer {
	t.Helper()
	n, err := bids.NewNamer(
		"/data/sub-01/ses-1/func/sub-01_ses-1_task-rest_bold.nii.gz",
		"/data/sub-01/ses-1/anat/sub-01_ses-1_T1w.nii.gz",
		"/atlas/MNI152_res-2x2x2_T1w.nii.gz",
		outDir,
	)
	if err != nil {
		t.Fatalf("NewNamer: %v", err)
	}
	return n
}

func TestBuildPlanFilenames(t *testing.T) {
	out := t.TempDir()
	n := testNamer(t, out)

	plan, err := BuildPlan(n, config.FormatEdgelist, []string{"/labels/desikan_res-2x2x2.nii.gz"})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	base := filepath.Join(out, "sub-01", "ses-1")
	cases := []struct {
		got  string
		want string
	}{
		{plan.PreprocFunc, filepath.Join(base, "func/preproc",
			"sub-01_ses-1_task-rest_bold_preproc.nii.gz")},
		{plan.MotionCorrected, filepath.Join(base, "tmp", "func/preproc",
			"sub-01_ses-1_task-rest_bold_variant-mc_preproc.nii.gz")},
		{plan.PreprocBrain, filepath.Join(base, "anat/preproc",
			"sub-01_ses-1_T1w_preproc_variant-brain.nii.gz")},
		{plan.AlignedFunc, filepath.Join(base, "func/registered",
			"sub-01_ses-1_task-rest_bold_space-MNI152_res-2x2x2_registered.nii.gz")},
		{plan.AlignedT1w, filepath.Join(base, "anat/registered",
			"sub-01_ses-1_T1w_space-MNI152_res-2x2x2_registered.nii.gz")},
		{plan.Clean, filepath.Join(base, "func/clean",
			"sub-01_ses-1_task-rest_bold_space-MNI152_res-2x2x2_clean.nii.gz")},
		{plan.VoxelNpy, filepath.Join(base, "func/voxel-timeseries",
			"sub-01_ses-1_task-rest_bold_space-MNI152_res-2x2x2_timeseries.npy")},
		{plan.ROINpy["label-desikan"], filepath.Join(base, "func/roi-timeseries", "label-desikan",
			"sub-01_ses-1_task-rest_bold_label-desikan_variant-mean_timeseries.npy")},
		{plan.Connectome["label-desikan"], filepath.Join(base, "func/connectomes", "label-desikan",
			"sub-01_ses-1_task-rest_bold_label-desikan_measure-correlation.edgelist")},
		{plan.QAStats, filepath.Join(base, "qa",
			"sub-01_ses-1_task-rest_bold_stats.json")},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("got  %s\nwant %s", c.got, c.want)
		}
	}

	if plan.TmpBase != filepath.Join(base, "tmp") {
		t.Errorf("TmpBase = %s", plan.TmpBase)
	}
	for _, dir := range plan.CleanupDirs {
		rel, err := filepath.Rel(out, dir)
		if err != nil {
			t.Fatalf("cleanup dir %s outside output tree: %v", dir, err)
		}
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if part == "tmp" {
				t.Errorf("cleanup dir %s is in the tmp scope", dir)
			}
		}
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			t.Errorf("cleanup dir %s not created", dir)
		}
	}
	if len(plan.CleanupDirs) != 5 {
		t.Errorf("got %d cleanup dirs, want 5", len(plan.CleanupDirs))
	}
}

func TestBuildPlanGraphMLExtension(t *testing.T) {
	n := testNamer(t, t.TempDir())
	plan, err := BuildPlan(n, config.FormatGraphML, []string{"/labels/aal.nii.gz"})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	want := "_measure-correlation.graphml"
	if !strings.HasSuffix(plan.Connectome["label-aal"], want) {
		t.Errorf("connectome path %s lacks %s", plan.Connectome["label-aal"], want)
	}
}

func TestLabelNamesSorted(t *testing.T) {
	n := testNamer(t, t.TempDir())
	plan, err := BuildPlan(n, config.FormatEdgelist,
		[]string{"/labels/desikan.nii.gz", "/labels/aal.nii.gz"})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	got := plan.LabelNames()
	if len(got) != 2 || got[0] != "label-aal" || got[1] != "label-desikan" {
		t.Errorf("LabelNames = %v", got)
	}
}

func TestRunDryRun(t *testing.T) {
	out := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Func = "/data/sub-01_task-rest_bold.nii.gz"
	cfg.T1w = "/data/sub-01_T1w.nii.gz"
	cfg.Atlas = "/atlas/MNI152.nii.gz"
	cfg.AtlasBrain = "/atlas/MNI152_brain.nii.gz"
	cfg.AtlasMask = "/atlas/MNI152_mask.nii.gz"
	cfg.LVMask = "/atlas/LV_mask.nii.gz"
	cfg.OutDir = out
	cfg.Labels = []string{"/labels/desikan.nii.gz"}
	cfg.DryRun = true
	cfg.ColorMode = config.ColorNever

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer log.Close()

	stats := Run(context.Background(), &cfg, log)
	if stats.Failed {
		t.Fatal("dry run reported failure")
	}
	if stats.Subject != "sub-01" {
		t.Errorf("subject = %q", stats.Subject)
	}
	// Dry run still lays out the directory tree.
	want := filepath.Join(out, "sub-01", "func", "connectomes", "label-desikan")
	if fi, err := os.Stat(want); err != nil || !fi.IsDir() {
		t.Errorf("expected directory %s", want)
	}
}

func TestRunBadInput(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Func = "/data/no-subject-token_bold.nii.gz"
	cfg.T1w = "/data/T1w.nii.gz"
	cfg.Atlas = "/atlas/MNI152.nii.gz"
	cfg.OutDir = t.TempDir()
	cfg.ColorMode = config.ColorNever

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer log.Close()

	// The run boundary swallows the error and reports it via stats.
	stats := Run(context.Background(), &cfg, log)
	if !stats.Failed {
		t.Fatal("expected failure for functional path without sub- token")
	}
}

func TestCleanup(t *testing.T) {
	newPlan := func(t *testing.T) (*config.Config, *DerivativePlan) {
		t.Helper()
		n := testNamer(t, t.TempDir())
		plan, err := BuildPlan(n, config.FormatEdgelist, []string{"/labels/desikan.nii.gz"})
		if err != nil {
			t.Fatalf("BuildPlan: %v", err)
		}
		if err := os.WriteFile(plan.MotionCorrected, []byte("scratch"), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg := config.DefaultConfig()
		cfg.ColorMode = config.ColorNever
		return &cfg, plan
	}

	log, err := logging.NewLogger(&config.Config{ColorMode: config.ColorNever})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer log.Close()

	t.Run("tmp always removed", func(t *testing.T) {
		cfg, plan := newPlan(t)
		cleanup(cfg, log, plan)
		if _, err := os.Stat(plan.TmpBase); !os.IsNotExist(err) {
			t.Errorf("tmp scope survived cleanup: %v", err)
		}
		for _, dir := range plan.CleanupDirs {
			if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
				t.Errorf("intermediate dir %s removed without --clean", dir)
			}
		}
	})

	t.Run("clean removes intermediates", func(t *testing.T) {
		cfg, plan := newPlan(t)
		cfg.Clean = true
		cleanup(cfg, log, plan)
		for _, dir := range plan.CleanupDirs {
			if _, err := os.Stat(dir); !os.IsNotExist(err) {
				t.Errorf("intermediate dir %s survived --clean: %v", dir, err)
			}
		}
		// Final derivative dirs are not intermediates and stay.
		roiDir := filepath.Dir(plan.ROINpy["label-desikan"])
		if fi, err := os.Stat(roiDir); err != nil || !fi.IsDir() {
			t.Errorf("roi-timeseries dir %s removed by --clean", roiDir)
		}
	})
}

func TestMotionMetrics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bold_mc.par")
	content := "0.01 -0.02 0.005 0.3 -0.8 0.1\n0.02 0.01 0 0.1 0.4 -1.2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m := motionMetrics(path)
	if m == nil {
		t.Fatal("no metrics")
	}
	if m["volumes"] != 2 {
		t.Errorf("volumes = %v", m["volumes"])
	}
	if m["max_rotation_rad"] != 0.02 {
		t.Errorf("max rotation = %v", m["max_rotation_rad"])
	}
	if m["max_translation_mm"] != 1.2 {
		t.Errorf("max translation = %v", m["max_translation_mm"])
	}

	if motionMetrics(filepath.Join(dir, "missing.par")) != nil {
		t.Error("expected nil metrics for missing file")
	}
}
