// Package bids derives derivative file names and the output directory
// layout from BIDS (Brain Imaging Data Structure) filename conventions.
// ParseTokens extracts the sub-/ses-/run- entities from a functional scan
// path and the space/resolution entities from a template path; Namer turns
// them into per-subject derivative names and the output, tmp, and qa
// directory trees. Sweep discovers paired functional and anatomical inputs
// under a BIDS root.
package bids
