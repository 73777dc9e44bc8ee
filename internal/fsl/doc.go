// Package fsl runs external FSL neuroimaging tools (mcflirt, slicetimer,
// bet, epi_reg, flirt, convert_xfm) as child processes: argv construction,
// execution with stderr capture, failure classification, and availability
// checks.
package fsl
