// Package preproc wraps the functional and anatomical preprocessing
// stages: motion correction, optional slice-timing correction, and brain
// extraction. Each stage decides the tool argv; execution goes through the
// fsl package.
package preproc
