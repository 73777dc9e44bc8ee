package pipeline

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/neurodata/fmripipe/internal/bids"
	"github.com/neurodata/fmripipe/internal/config"
)

// Derivative directory suffixes, keyed by the stage keyword used
// throughout the worker.
var derivativeDirs = map[string]string{
	"prep_f":   "func/preproc",
	"prep_a":   "anat/preproc",
	"reg_f":    "func/registered",
	"reg_a":    "anat/registered",
	"nuis_f":   "func/clean",
	"ts_voxel": "func/voxel-timeseries",
	"ts_roi":   "func/roi-timeseries",
	"conn":     "func/connectomes",
}

// Keywords whose directories fan out per parcellation label.
var labelDirs = []string{"ts_roi", "conn"}

// Keywords whose output directories hold intermediates that --clean
// removes after a successful run.
var intermediateKeys = []string{"prep_f", "prep_a", "reg_f", "reg_a", "nuis_f"}

// DerivativePlan fixes every derivative path for one subject before any
// stage runs. All paths are deterministic functions of the namer, the
// connectome format, and the parcellation labels.
type DerivativePlan struct {
	MotionCorrected string // tmp: functional after mcflirt only.
	PreprocFunc     string
	PreprocBrain    string
	AlignedFunc     string
	AlignedT1w      string
	Clean           string
	VoxelNIfTI      string
	VoxelNpy        string
	ROINpy          map[string]string // label name → .npy path
	Connectome      map[string]string // label name → graph path
	QAStats         string

	TmpBase     string   // removed after every successful run
	CleanupDirs []string // removed only under --clean
}

// BuildPlan creates the directory tree on disk and computes every
// derivative path.
func BuildPlan(n *bids.Namer, format config.GraphFormat, labels []string) (*DerivativePlan, error) {
	if err := n.AddDirs(derivativeDirs, labels, labelDirs); err != nil {
		return nil, fmt.Errorf("derivative plan: %w", err)
	}

	out := n.Dirs[bids.ScopeOutput]
	tmp := n.Dirs[bids.ScopeTmp]
	qa := n.Dirs[bids.ScopeQA]

	mod := n.ModSource()
	anat := n.AnatSource()
	sp := n.TemplateSpace()

	p := &DerivativePlan{
		MotionCorrected: filepath.Join(tmp.Dirs["prep_f"], mod+"_variant-mc_preproc.nii.gz"),
		PreprocFunc:     filepath.Join(out.Dirs["prep_f"], mod+"_preproc.nii.gz"),
		PreprocBrain:    filepath.Join(out.Dirs["prep_a"], anat+"_preproc_variant-brain.nii.gz"),
		AlignedFunc:     filepath.Join(out.Dirs["reg_f"], mod+"_"+sp+"_registered.nii.gz"),
		AlignedT1w:      filepath.Join(out.Dirs["reg_a"], anat+"_"+sp+"_registered.nii.gz"),
		Clean:           filepath.Join(out.Dirs["nuis_f"], mod+"_"+sp+"_clean.nii.gz"),
		VoxelNIfTI:      filepath.Join(out.Dirs["ts_voxel"], mod+"_"+sp+"_timeseries.nii.gz"),
		VoxelNpy:        filepath.Join(out.Dirs["ts_voxel"], mod+"_"+sp+"_timeseries.npy"),
		ROINpy:          make(map[string]string, len(labels)),
		Connectome:      make(map[string]string, len(labels)),
		QAStats:         filepath.Join(qa.Base, mod+"_stats.json"),
		TmpBase:         tmp.Base,
	}

	for _, label := range labels {
		name := bids.GetLabel(label)
		p.ROINpy[name] = filepath.Join(out.LabelDirs["ts_roi"][name],
			mod+"_"+name+"_variant-mean_timeseries.npy")
		p.Connectome[name] = filepath.Join(out.LabelDirs["conn"][name],
			mod+"_"+name+"_measure-correlation."+string(format))
	}

	for _, k := range intermediateKeys {
		p.CleanupDirs = append(p.CleanupDirs, out.Dirs[k])
	}
	sort.Strings(p.CleanupDirs)
	return p, nil
}

// LabelNames returns the plan's label names sorted, for deterministic
// iteration.
func (p *DerivativePlan) LabelNames() []string {
	names := make([]string, 0, len(p.ROINpy))
	for name := range p.ROINpy {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
