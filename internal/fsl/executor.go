package fsl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command is one external tool invocation.
type Command struct {
	Tool string
	Args []string
	Env  []string // Extra environment entries (e.g. FSLOUTPUTTYPE=NIFTI_GZ).
}

// String renders the command the way it would be typed in a shell, for
// logging.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Tool
	}
	return c.Tool + " " + strings.Join(c.Args, " ")
}

// ExecResult holds the outcome of a single tool invocation.
type ExecResult struct {
	Stderr string
	Err    error
}

// Execute runs cmd. When verbose, tool output is streamed to os.Stderr in
// real time; otherwise stderr is captured silently for failure
// classification. The exit status is always checked: a failing tool
// surfaces as a non-nil Err wrapping the classified failure kind.
func Execute(ctx context.Context, cmd Command, verbose bool) ExecResult {
	c := exec.CommandContext(ctx, cmd.Tool, cmd.Args...)
	c.Env = append(os.Environ(), cmd.Env...)

	var stderrBuf bytes.Buffer
	if verbose {
		c.Stdout = os.Stderr
		c.Stderr = io.MultiWriter(&stderrBuf, os.Stderr)
	} else {
		c.Stderr = &stderrBuf
	}

	err := c.Run()
	res := ExecResult{Stderr: stderrBuf.String()}
	if err != nil {
		res.Err = fmt.Errorf("%s: %w: %s", cmd.Tool, err, Classify(res.Stderr).Describe())
	}
	return res
}
