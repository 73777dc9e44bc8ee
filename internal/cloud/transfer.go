package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Transfer shells out to the aws CLI for recursive dataset copies.
type Transfer struct {
	Region  string // Optional; forwarded as --region.
	NoSign  bool   // Unsigned requests for public buckets.
	Verbose bool   // Stream aws output to stderr.
}

// FetchArgs builds the aws argv for pulling a dataset (or one subject of
// it) down to dest.
func (t *Transfer) FetchArgs(loc Location, subject, dest string) []string {
	src := loc.String()
	if subject != "" {
		src += "/" + subject
		dest = filepath.Join(dest, subject)
	}
	args := []string{"s3", "cp", src, dest, "--recursive"}
	return t.appendCommonFlags(args)
}

// PushArgs builds the aws argv for uploading derivatives, skipping
// scratch files.
func (t *Transfer) PushArgs(outDir string, loc Location) []string {
	args := []string{"s3", "cp", outDir, loc.String(), "--recursive",
		"--exclude", "tmp/*"}
	if !t.NoSign {
		args = append(args, "--acl", "public-read")
	}
	return t.appendCommonFlags(args)
}

func (t *Transfer) appendCommonFlags(args []string) []string {
	if t.NoSign {
		args = append(args, "--no-sign-request")
	}
	if t.Region != "" {
		args = append(args, "--region", t.Region)
	}
	return args
}

// Fetch downloads a dataset from S3. subject may narrow the copy to a
// single subject directory ("sub-01"); empty fetches everything under
// the location.
func (t *Transfer) Fetch(ctx context.Context, loc Location, subject, dest string) error {
	target := dest
	if subject != "" {
		target = filepath.Join(dest, subject)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("fetch %s: %w", loc, err)
	}
	if err := t.run(ctx, t.FetchArgs(loc, subject, dest)); err != nil {
		return fmt.Errorf("fetch %s: %w", loc, err)
	}
	return nil
}

// Push uploads the output directory to S3. Unsigned pushes are refused:
// uploading needs credentials.
func (t *Transfer) Push(ctx context.Context, outDir string, loc Location) error {
	if t.NoSign {
		return fmt.Errorf("push %s: uploads require signed requests", loc)
	}
	if err := t.run(ctx, t.PushArgs(outDir, loc)); err != nil {
		return fmt.Errorf("push %s: %w", loc, err)
	}
	return nil
}

// run executes the aws CLI with the exit status checked. Stderr is
// captured so a failing transfer reports what aws printed.
func (t *Transfer) run(ctx context.Context, args []string) error {
	c := exec.CommandContext(ctx, "aws", args...)
	var stderr bytes.Buffer
	if t.Verbose {
		c.Stdout = os.Stderr
		c.Stderr = io.MultiWriter(&stderr, os.Stderr)
	} else {
		c.Stderr = &stderr
	}
	if err := c.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("aws %s: %w: %s", args[0], err, firstLine(msg))
		}
		return fmt.Errorf("aws %s: %w", args[0], err)
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
