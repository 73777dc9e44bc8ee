package fsl

import "regexp"

// FailureKind classifies a failed tool invocation from its stderr output.
type FailureKind int

const (
	FailureUnknown      FailureKind = iota
	FailureMissingInput             // Input image path does not exist.
	FailureNotNifti                 // Input exists but is not a readable NIfTI volume.
	FailureOutOfMemory              // Tool was killed or ran out of memory.
	FailureBadTransform             // Transform matrix missing or unreadable.
)

// Pre-compiled regexes for classifying FSL tool stderr into failure
// categories. Checked in order by [Classify]; first match wins.
var (
	reMissingInput = regexp.MustCompile(
		`(?i)Cannot open volume .* for reading|` +
			`does not exist|No such file or directory`)

	reNotNifti = regexp.MustCompile(
		`(?i)Error: failed to open file|` +
			`not a supported file format|` +
			`unrecognised file type|` +
			`could not open image|` +
			`Inconsistent .* dimensions`)

	reOutOfMemory = regexp.MustCompile(
		`(?i)out of memory|std::bad_alloc|Killed`)

	reBadTransform = regexp.MustCompile(
		`(?i)Could not open matrix file|` +
			`is not a valid affine matrix`)
)

// Classify maps tool stderr to a FailureKind.
func Classify(stderr string) FailureKind {
	switch {
	case reMissingInput.MatchString(stderr):
		return FailureMissingInput
	case reNotNifti.MatchString(stderr):
		return FailureNotNifti
	case reOutOfMemory.MatchString(stderr):
		return FailureOutOfMemory
	case reBadTransform.MatchString(stderr):
		return FailureBadTransform
	}
	return FailureUnknown
}

// Describe returns a short human-readable description of the failure kind.
func (k FailureKind) Describe() string {
	switch k {
	case FailureMissingInput:
		return "input image not found"
	case FailureNotNifti:
		return "input is not a readable NIfTI volume"
	case FailureOutOfMemory:
		return "tool ran out of memory"
	case FailureBadTransform:
		return "transform matrix missing or invalid"
	}
	return "tool failed (see stderr)"
}
