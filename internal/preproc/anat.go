package preproc

import (
	"context"
	"fmt"

	"github.com/neurodata/fmripipe/internal/fsl"
)

// Anat preprocesses the anatomical T1w volume: brain extraction via bet
// with bias-field and neck cleanup.
type Anat struct {
	Input   string // Raw T1w.
	Brain   string // Brain-extracted derivative path.
	TmpDir  string
	Env     []string
	Verbose bool
}

// Run executes anatomical preprocessing.
func (p *Anat) Run(ctx context.Context) error {
	cmd := fsl.Command{
		Tool: "bet",
		Args: []string{p.Input, trimNiftiExt(p.Brain), "-B"},
		Env:  p.Env,
	}
	if res := fsl.Execute(ctx, cmd, p.Verbose); res.Err != nil {
		return fmt.Errorf("brain extraction: %w", res.Err)
	}
	return nil
}
