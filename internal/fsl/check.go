package fsl

import (
	"fmt"
	"os/exec"
	"strings"
)

// PipelineTools are the external tools the functional pipeline shells out
// to, in stage order.
var PipelineTools = []string{"mcflirt", "slicetimer", "bet", "epi_reg", "flirt", "convert_xfm"}

// CheckTools verifies that every named tool is on PATH. Returns an error
// listing all missing tools, or nil.
func CheckTools(tools ...string) error {
	var missing []string
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tools not found on PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Logger is the minimal logging interface needed by RunCheck. Defined here
// (rather than importing the logging package) so that fsl stays
// dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
}

// RunCheck runs the interactive --check flow: prints availability of each
// pipeline tool plus the aws CLI. Informational only; it does not stop on
// failure.
func RunCheck(log Logger) {
	log.Info("=== Tool Check ===")
	for _, tool := range append(append([]string{}, PipelineTools...), "aws") {
		path, err := exec.LookPath(tool)
		if err != nil {
			log.Error("%s: not found on PATH", tool)
			continue
		}
		log.Success("%s: %s", tool, path)
	}
}
