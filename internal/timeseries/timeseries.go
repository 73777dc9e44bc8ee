package timeseries

import (
	"fmt"

	"github.com/gonum/matrix/mat64"
	"github.com/kshedden/gonpy"

	"github.com/neurodata/fmripipe/internal/volume"
)

// Voxel extracts the timeseries of every brain voxel. It writes a masked
// copy of the functional volume and the voxels×T matrix as a .npy array.
type Voxel struct {
	Input  string // Cleaned functional volume.
	Mask   string // Binary brain mask.
	Masked string // Masked NIfTI derivative path.
	Output string // .npy derivative path.

	// Voxels reports how many voxels fell inside the mask after Run.
	Voxels int
}

func (v *Voxel) Run() error {
	img, err := volume.Load(v.Input)
	if err != nil {
		return fmt.Errorf("voxel timeseries: %w", err)
	}
	mask, err := volume.Load(v.Mask)
	if err != nil {
		return fmt.Errorf("voxel timeseries: %w", err)
	}

	voxels := mask.MaskIndices()
	v.Voxels = len(voxels)
	if len(voxels) == 0 {
		return fmt.Errorf("voxel timeseries: mask %s selects no voxels", v.Mask)
	}
	_, _, _, nt := img.Dims()

	masked := volume.New(img, nt)
	for _, vox := range voxels {
		for t := 0; t < nt; t++ {
			masked.Set(vox.X, vox.Y, vox.Z, t, img.At(vox.X, vox.Y, vox.Z, t))
		}
	}
	masked.Save(v.Masked)

	series := img.TimeseriesMatrix(voxels)
	if err := writeNpy(v.Output, series); err != nil {
		return fmt.Errorf("voxel timeseries: %w", err)
	}
	return nil
}

// ROI averages the functional signal over each labeled region of a
// parcellation volume. Run returns the regions×T matrix so the connectome
// stage can consume it without a round trip through disk; the same matrix
// is written to Output as a .npy array.
type ROI struct {
	Input  string // Cleaned functional volume.
	Labels string // Parcellation volume with integer region labels.
	Output string // .npy derivative path.

	// RegionIDs holds the sorted label values found in the parcellation
	// after Run. Row i of the returned matrix corresponds to RegionIDs[i].
	RegionIDs []int
}

func (r *ROI) Run() (*mat64.Dense, error) {
	img, err := volume.Load(r.Input)
	if err != nil {
		return nil, fmt.Errorf("roi timeseries: %w", err)
	}
	parc, err := volume.Load(r.Labels)
	if err != nil {
		return nil, fmt.Errorf("roi timeseries: %w", err)
	}

	ids, regions := parc.Labels()
	if len(ids) == 0 {
		return nil, fmt.Errorf("roi timeseries: parcellation %s has no labeled regions", r.Labels)
	}
	r.RegionIDs = ids
	_, _, _, nt := img.Dims()

	series := mat64.NewDense(len(ids), nt, nil)
	for i, id := range ids {
		mean := img.MeanSeries(regions[id])
		for t := 0; t < nt; t++ {
			series.Set(i, t, mean[t])
		}
	}
	if err := writeNpy(r.Output, series); err != nil {
		return nil, fmt.Errorf("roi timeseries: %w", err)
	}
	return series, nil
}

// writeNpy stores a dense matrix as a 2-D float64 .npy array in C order.
func writeNpy(path string, m *mat64.Dense) error {
	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return err
	}
	rows, cols := m.Dims()
	w.Shape = []int{rows, cols}
	w.Version = 2
	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, m.At(i, j))
		}
	}
	return w.WriteFloat64(data)
}

// ReadNpy loads a 2-D float64 .npy array written by writeNpy. Used by the
// quality-control stage to recompute summary statistics from derivatives.
func ReadNpy(path string) (*mat64.Dense, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, err
	}
	data, err := r.GetFloat64()
	if err != nil {
		return nil, err
	}
	if len(r.Shape) != 2 {
		return nil, fmt.Errorf("%s: expected a 2-D array, got shape %v", path, r.Shape)
	}
	return mat64.NewDense(r.Shape[0], r.Shape[1], data), nil
}
