// Package reg wraps the alignment stages: self alignment of the
// functional volume to the subject's anatomical image, and template
// alignment of both into atlas space.
package reg

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/neurodata/fmripipe/internal/fsl"
)

// EPI aligns a preprocessed functional volume to its anatomical image and
// then into template space, applying the combined transform to the
// functional data. Intermediate matrices live in TmpDir.
type EPI struct {
	Func     string // Preprocessed 4D EPI.
	T1w      string // Raw anatomical.
	T1wBrain string // Brain-extracted anatomical.

	Atlas      string // Template, full head.
	AtlasBrain string // Template, brain only.
	AtlasMask  string // Binary template brain mask.

	AlignedFunc string // Output: functional volume in template space.
	AlignedT1w  string // Output: anatomical volume in template space.
	TmpDir      string

	Env     []string
	Verbose bool

	selfMat string // func→t1w matrix, set by SelfAlign.
	tempMat string // t1w→template matrix, set by TemplateAlign.
}

// SelfAlign registers the functional volume to the anatomical image with
// epi_reg, producing the func→t1w transform consumed by TemplateAlign.
func (r *EPI) SelfAlign(ctx context.Context) error {
	out := filepath.Join(r.TmpDir, "func2t1w")
	cmd := fsl.Command{
		Tool: "epi_reg",
		Args: []string{
			"--epi=" + r.Func,
			"--t1=" + r.T1w,
			"--t1brain=" + r.T1wBrain,
			"--out=" + out,
		},
		Env: r.Env,
	}
	if res := fsl.Execute(ctx, cmd, r.Verbose); res.Err != nil {
		return fmt.Errorf("self alignment: %w", res.Err)
	}
	r.selfMat = out + ".mat"
	return nil
}

// TemplateAlign registers the anatomical image to the template with flirt,
// concatenates the func→t1w and t1w→template transforms, and resamples the
// functional volume into template space. SelfAlign must have run first.
func (r *EPI) TemplateAlign(ctx context.Context) error {
	if r.selfMat == "" {
		return fmt.Errorf("template alignment: self alignment has not run")
	}

	r.tempMat = filepath.Join(r.TmpDir, "t1w2temp.mat")
	anat := fsl.Command{
		Tool: "flirt",
		Args: []string{
			"-in", r.T1wBrain,
			"-ref", r.AtlasBrain,
			"-omat", r.tempMat,
			"-out", trimNiftiExt(r.AlignedT1w),
		},
		Env: r.Env,
	}
	if res := fsl.Execute(ctx, anat, r.Verbose); res.Err != nil {
		return fmt.Errorf("template alignment (anat): %w", res.Err)
	}

	combined := filepath.Join(r.TmpDir, "func2temp.mat")
	cat := fsl.Command{
		Tool: "convert_xfm",
		Args: []string{"-omat", combined, "-concat", r.tempMat, r.selfMat},
		Env:  r.Env,
	}
	if res := fsl.Execute(ctx, cat, r.Verbose); res.Err != nil {
		return fmt.Errorf("template alignment (concat): %w", res.Err)
	}

	apply := fsl.Command{
		Tool: "flirt",
		Args: []string{
			"-in", r.Func,
			"-ref", r.AtlasBrain,
			"-out", trimNiftiExt(r.AlignedFunc),
			"-init", combined,
			"-applyxfm",
		},
		Env: r.Env,
	}
	if res := fsl.Execute(ctx, apply, r.Verbose); res.Err != nil {
		return fmt.Errorf("template alignment (func): %w", res.Err)
	}
	return nil
}

func trimNiftiExt(path string) string {
	path = strings.TrimSuffix(path, ".gz")
	return strings.TrimSuffix(path, ".nii")
}
