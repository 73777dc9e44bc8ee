// Package timeseries extracts voxelwise and region-of-interest time
// series from a cleaned functional volume and writes them as .npy
// arrays alongside the NIfTI derivatives.
package timeseries
