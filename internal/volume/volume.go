// Package volume provides typed access to NIfTI volumes: dimension
// handling, masked voxel indexing, and timeseries matrix extraction.
package volume

import (
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/KyungWonPark/nifti"
	"github.com/gonum/matrix/mat64"
)

// Voxel is one spatial coordinate.
type Voxel struct {
	X, Y, Z uint32
}

// Volume wraps a loaded NIfTI image with explicit dimensions.
type Volume struct {
	img            *nifti.Nifti1Image
	nx, ny, nz, nt int
}

// Load reads a NIfTI volume from disk, including voxel data. The path is
// stat'd first so a missing file surfaces as an error rather than a
// library abort.
func Load(path string) (*Volume, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load volume: %w", err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("load volume: %s is a directory", path)
	}

	var img nifti.Nifti1Image
	img.LoadImage(path, true)
	return fromImage(&img), nil
}

// New creates an in-memory volume of the given dimensions, carrying the
// header of src so spatial metadata survives into derivatives.
func New(src *Volume, nt int) *Volume {
	img := nifti.NewImg(src.nx, src.ny, src.nz, nt)
	img.SetNewHeader(src.img.GetHeader())
	img.SetHeaderDim(src.nx, src.ny, src.nz, nt)
	setHeaderNT(img, nt)
	return &Volume{img: img, nx: src.nx, ny: src.ny, nz: src.nz, nt: nt}
}

// NewEmpty creates a blank volume of the given dimensions with a default
// header. Used for masks and synthetic inputs.
func NewEmpty(nx, ny, nz, nt int) *Volume {
	img := nifti.NewImg(nx, ny, nz, nt)
	img.SetHeaderDim(nx, ny, nz, nt)
	setHeaderNT(img, nt)
	return &Volume{img: img, nx: nx, ny: ny, nz: nz, nt: nt}
}

// setHeaderNT records the time dimension in the header. The library's
// SetHeaderDim sets Dim[1..3] but never Dim[4], so without this a saved
// 4D volume reloads with nt = 0.
func setHeaderNT(img *nifti.Nifti1Image, nt int) {
	hdr := img.GetHeader()
	hdr.Dim[4] = int16(nt)
	img.SetNewHeader(hdr)
}

func fromImage(img *nifti.Nifti1Image) *Volume {
	hdr := img.GetHeader()
	nx, ny, nz, nt := int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3]), int(hdr.Dim[4])
	if nt < 1 {
		nt = 1
	}
	return &Volume{img: img, nx: nx, ny: ny, nz: nz, nt: nt}
}

// Dims returns the spatial and temporal dimensions.
func (v *Volume) Dims() (nx, ny, nz, nt int) {
	return v.nx, v.ny, v.nz, v.nt
}

// At returns the value at a voxel and timepoint.
func (v *Volume) At(x, y, z uint32, t int) float64 {
	return float64(v.img.GetAt(x, y, z, uint32(t)))
}

// Set writes a value at a voxel and timepoint.
func (v *Volume) Set(x, y, z uint32, t int, val float64) {
	v.img.SetAt(x, y, z, uint32(t), float32(val))
}

// Save writes the volume to path. The underlying library always writes
// gzip-compressed data to its argument plus a ".gz" suffix, so the
// wrapper absorbs the suffix: a path ending in ".gz" is written directly,
// any other path is decompressed into place.
func (v *Volume) Save(path string) {
	base := strings.TrimSuffix(path, ".gz")
	v.img.Save(base)
	if base == path {
		decompress(path+".gz", path)
	}
}

// decompress gunzips src into dst and removes src. Save has no error
// return, so failures panic, matching the library's own Save behavior.
func decompress(src, dst string) {
	in, err := os.Open(src)
	if err != nil {
		panic(err)
	}
	defer in.Close()
	zr, err := gzip.NewReader(in)
	if err != nil {
		panic(err)
	}
	defer zr.Close()
	out, err := os.Create(dst)
	if err != nil {
		panic(err)
	}
	defer out.Close()
	if _, err := io.Copy(out, zr); err != nil {
		panic(err)
	}
	if err := os.Remove(src); err != nil {
		panic(err)
	}
}

// MaskIndices returns the coordinates of every voxel whose value at t=0 is
// above zero, in x-fastest scan order. Used for binary masks.
func (v *Volume) MaskIndices() []Voxel {
	var out []Voxel
	for z := 0; z < v.nz; z++ {
		for y := 0; y < v.ny; y++ {
			for x := 0; x < v.nx; x++ {
				if v.At(uint32(x), uint32(y), uint32(z), 0) > 0 {
					out = append(out, Voxel{uint32(x), uint32(y), uint32(z)})
				}
			}
		}
	}
	return out
}

// Labels returns the voxel coordinates of every positive integer label in
// a parcellation volume, with label IDs sorted ascending.
func (v *Volume) Labels() ([]int, map[int][]Voxel) {
	byLabel := map[int][]Voxel{}
	for z := 0; z < v.nz; z++ {
		for y := 0; y < v.ny; y++ {
			for x := 0; x < v.nx; x++ {
				id := int(math.Round(v.At(uint32(x), uint32(y), uint32(z), 0)))
				if id > 0 {
					byLabel[id] = append(byLabel[id], Voxel{uint32(x), uint32(y), uint32(z)})
				}
			}
		}
	}
	ids := make([]int, 0, len(byLabel))
	for id := range byLabel {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, byLabel
}

// TimeseriesMatrix extracts the (len(voxels) × nt) timeseries matrix for
// the given coordinates.
func (v *Volume) TimeseriesMatrix(voxels []Voxel) *mat64.Dense {
	m := mat64.NewDense(len(voxels), v.nt, nil)
	for i, vox := range voxels {
		for t := 0; t < v.nt; t++ {
			m.Set(i, t, v.At(vox.X, vox.Y, vox.Z, t))
		}
	}
	return m
}

// MeanSeries returns the spatial mean across the given voxels at each
// timepoint. Used for the CSF nuisance regressor.
func (v *Volume) MeanSeries(voxels []Voxel) []float64 {
	out := make([]float64, v.nt)
	if len(voxels) == 0 {
		return out
	}
	for t := 0; t < v.nt; t++ {
		var acc float64
		for _, vox := range voxels {
			acc += v.At(vox.X, vox.Y, vox.Z, t)
		}
		out[t] = acc / float64(len(voxels))
	}
	return out
}
