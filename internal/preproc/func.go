package preproc

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/neurodata/fmripipe/internal/config"
	"github.com/neurodata/fmripipe/internal/fsl"
)

// Func preprocesses a 4D functional volume: motion correction via mcflirt,
// then optional slice-timing correction via slicetimer, then a copy of the
// final volume to the preproc derivative path.
type Func struct {
	Input   string // Raw 4D EPI.
	Preproc string // Final preprocessed derivative path.
	Motion  string // Motion-corrected intermediate path (tmp scope).
	TmpDir  string

	STC     config.STCMode
	STCFile string

	Env     []string
	Verbose bool

	// MotionParams is the mcflirt .par file path, available after Run.
	// Six columns (three rotations, three translations), one row per
	// volume; consumed by the nuisance stage.
	MotionParams string
}

// Run executes the functional preprocessing chain.
func (p *Func) Run(ctx context.Context) error {
	mcOut := trimNiftiExt(p.Motion)
	mc := fsl.Command{
		Tool: "mcflirt",
		Args: []string{"-in", p.Input, "-out", mcOut, "-plots"},
		Env:  p.Env,
	}
	if res := fsl.Execute(ctx, mc, p.Verbose); res.Err != nil {
		return fmt.Errorf("motion correction: %w", res.Err)
	}
	p.MotionParams = mcOut + ".par"

	current := p.Motion
	if p.STC != config.STCNone {
		stcOut := trimNiftiExt(p.Motion) + "_stc"
		st := fsl.Command{
			Tool: "slicetimer",
			Args: slicetimerArgs(current, stcOut, p.STC, p.STCFile),
			Env:  p.Env,
		}
		if res := fsl.Execute(ctx, st, p.Verbose); res.Err != nil {
			return fmt.Errorf("slice-timing correction: %w", res.Err)
		}
		current = stcOut + ".nii.gz"
	}

	if err := copyFile(current, p.Preproc); err != nil {
		return fmt.Errorf("write preproc derivative: %w", err)
	}
	return nil
}

// slicetimerArgs maps an STCMode onto slicetimer flags. Sequential
// bottom-up ("up") is slicetimer's default and needs no direction flag.
func slicetimerArgs(in, out string, mode config.STCMode, orderFile string) []string {
	args := []string{"-i", in, "-o", out}
	switch mode {
	case config.STCInterleaved:
		args = append(args, "--odd")
	case config.STCDown:
		args = append(args, "--down")
	case config.STCFile:
		args = append(args, "--ocustom="+orderFile)
	}
	return args
}

// trimNiftiExt strips a trailing .nii or .nii.gz so the path can be handed
// to tools that append their own extension per FSLOUTPUTTYPE.
func trimNiftiExt(path string) string {
	path = strings.TrimSuffix(path, ".gz")
	return strings.TrimSuffix(path, ".nii")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
