// Package nuis removes nuisance signal from an aligned functional volume:
// scanner drift, head motion, and cerebrospinal fluid signal are modeled
// in a voxelwise GLM and the fitted component subtracted, leaving each
// voxel's mean intact.
package nuis

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gonum/matrix/mat64"

	"github.com/neurodata/fmripipe/internal/volume"
)

// Correct is the nuisance-correction stage for one subject.
type Correct struct {
	Input        string // Aligned functional volume.
	BrainMask    string // Binary mask restricting the regression.
	LVMask       string // Lateral-ventricle mask for the CSF regressor.
	MotionParams string // mcflirt .par file (6 columns, one row per volume).
	Output       string // Clean derivative path.

	// Regressors reports the design-matrix width after Run.
	Regressors int
}

// Run fits the nuisance model and writes the cleaned volume. Voxels
// outside the brain mask pass through unchanged.
func (c *Correct) Run() error {
	img, err := volume.Load(c.Input)
	if err != nil {
		return fmt.Errorf("nuisance correction: %w", err)
	}
	mask, err := volume.Load(c.BrainMask)
	if err != nil {
		return fmt.Errorf("nuisance correction: %w", err)
	}
	lv, err := volume.Load(c.LVMask)
	if err != nil {
		return fmt.Errorf("nuisance correction: %w", err)
	}

	_, _, _, nt := img.Dims()
	if nt < 2 {
		return fmt.Errorf("nuisance correction: %s is not a 4D volume", c.Input)
	}
	motion, err := ReadMotionParams(c.MotionParams, nt)
	if err != nil {
		return fmt.Errorf("nuisance correction: %w", err)
	}
	csf := img.MeanSeries(lv.MaskIndices())

	design := buildDesign(nt, motion, csf)
	_, k := design.Dims()
	c.Regressors = k

	voxels := mask.MaskIndices()
	if len(voxels) == 0 {
		return fmt.Errorf("nuisance correction: mask %s selects no voxels", c.BrainMask)
	}
	series := img.TimeseriesMatrix(voxels) // voxels × T
	clean, err := regressOut(design, series)
	if err != nil {
		return fmt.Errorf("nuisance correction: %w", err)
	}

	out := volume.New(img, nt)
	copyVolume(img, out)
	for i, vox := range voxels {
		for t := 0; t < nt; t++ {
			out.Set(vox.X, vox.Y, vox.Z, t, clean.At(i, t))
		}
	}
	out.Save(c.Output)
	return nil
}

// buildDesign assembles the T×k design matrix: intercept, linear and
// quadratic drift, six motion parameters, and the CSF mean signal. All
// non-intercept columns are demeaned so the intercept carries exactly the
// voxel mean and the subtraction in regressOut leaves it untouched.
func buildDesign(nt int, motion [][]float64, csf []float64) *mat64.Dense {
	k := 3 + len(motion[0]) + 1
	m := mat64.NewDense(nt, k, nil)
	for t := 0; t < nt; t++ {
		lin := float64(t) / float64(nt-1)
		m.Set(t, 0, 1)
		m.Set(t, 1, lin)
		m.Set(t, 2, lin*lin)
		for j, v := range motion[t] {
			m.Set(t, 3+j, v)
		}
		m.Set(t, k-1, csf[t])
	}
	for j := 1; j < k; j++ {
		var mean float64
		for t := 0; t < nt; t++ {
			mean += m.At(t, j)
		}
		mean /= float64(nt)
		for t := 0; t < nt; t++ {
			m.Set(t, j, m.At(t, j)-mean)
		}
	}
	return m
}

// regressOut fits series' = design·beta by least squares and subtracts the
// fitted nuisance component from each voxel, keeping the intercept
// contribution (the voxel mean). series is voxels × T; the returned matrix
// has the same shape.
func regressOut(design *mat64.Dense, series *mat64.Dense) (*mat64.Dense, error) {
	nv, nt := series.Dims()

	// Y is T × voxels.
	y := mat64.NewDense(nt, nv, nil)
	for i := 0; i < nv; i++ {
		for t := 0; t < nt; t++ {
			y.Set(t, i, series.At(i, t))
		}
	}

	// beta = (XᵀX)⁻¹ Xᵀ Y
	var xtx, inv, pinv, beta mat64.Dense
	xtx.Mul(design.T(), design)
	if err := inv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("design matrix is singular: %w", err)
	}
	pinv.Mul(&inv, design.T())
	beta.Mul(&pinv, y)

	// Zero the intercept row so the subtraction leaves voxel means intact.
	for i := 0; i < nv; i++ {
		beta.Set(0, i, 0)
	}

	var fitted mat64.Dense
	fitted.Mul(design, &beta)

	out := mat64.NewDense(nv, nt, nil)
	for i := 0; i < nv; i++ {
		for t := 0; t < nt; t++ {
			out.Set(i, t, series.At(i, t)-fitted.At(t, i))
		}
	}
	return out, nil
}

// ReadMotionParams parses a mcflirt .par file: whitespace-separated
// floats, six per row, one row per volume. nt < 0 skips the row-count
// check.
func ReadMotionParams(path string, nt int) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("motion parameters: %w", err)
	}
	defer f.Close()

	var rows [][]float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		row := make([]float64, 0, len(fields))
		for _, fstr := range fields {
			v, err := strconv.ParseFloat(fstr, 64)
			if err != nil {
				return nil, fmt.Errorf("motion parameters %s: %w", path, err)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("motion parameters %s: %w", path, err)
	}
	if nt >= 0 && len(rows) != nt {
		return nil, fmt.Errorf("motion parameters %s: %d rows for %d volumes", path, len(rows), nt)
	}
	return rows, nil
}

func copyVolume(src, dst *volume.Volume) {
	nx, ny, nz, nt := src.Dims()
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				for t := 0; t < nt; t++ {
					dst.Set(uint32(x), uint32(y), uint32(z), t, src.At(uint32(x), uint32(y), uint32(z), t))
				}
			}
		}
	}
}
