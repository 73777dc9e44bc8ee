// Package config holds runtime configuration: defaults, CLI flag parsing,
// the optional YAML settings file, and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// --- Enum types for validated string fields ---

// STCMode selects slice-timing correction behavior.
type STCMode string

const (
	STCNone        STCMode = "none"        // Skip slice-timing correction (default).
	STCInterleaved STCMode = "interleaved" // Interleaved (odd-first) acquisition.
	STCUp          STCMode = "up"          // Sequential bottom-up acquisition.
	STCDown        STCMode = "down"        // Sequential top-down acquisition.
	STCFile        STCMode = "file"        // Custom slice-order file via --stc-file.
)

// GraphFormat is the connectome serialization format.
type GraphFormat string

const (
	FormatEdgelist GraphFormat = "edgelist" // Weighted edge list (default).
	FormatGraphML  GraphFormat = "graphml"  // GraphML XML.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig],
// optionally overlaid by [LoadSettings], and then mutated by [ParseFlags]
// before being passed (by pointer) to packages that need it.
type Config struct {
	// Input images (set from positional args).
	Func       string // 4D fMRI EPI volume.
	T1w        string // 3D anatomical T1w volume.
	Atlas      string // Reference atlas, full head.
	AtlasBrain string // Reference atlas, brain extracted.
	AtlasMask  string // Binary brain mask in atlas space.
	LVMask     string // Lateral-ventricle mask in atlas space.
	OutDir     string // Base derivative output directory.
	Labels     []string // Parcellation label volumes in atlas space.

	// Slice-timing correction.
	STC     STCMode
	STCFile string // Slice-order file, required when STC == "file".

	// Behavior flags.
	Clean   bool        // Delete intermediate derivatives when finished.
	Format  GraphFormat // Default: "edgelist".
	DryRun  bool        // Resolve names and log, but run no stages.
	Verbose bool

	// Display and logging.
	ColorMode ColorMode // Default: "auto".
	LogFile   string    // Optional log file path.
	CheckOnly bool      // Run --check diagnostics and exit.

	// Cloud transfer (optional; empty disables).
	FetchLocation string // s3://bucket/prefix to pull inputs from.
	PushLocation  string // s3://bucket/prefix to push the output tree to.
	S3Region      string // Default: "us-east-1".
	S3NoSign      bool   // Unsigned (public-bucket) requests.

	// External tool settings.
	FSLOutputType string // Default: "NIFTI_GZ". Exported as FSLOUTPUTTYPE.
}

// DefaultConfig returns a Config with all defaults applied. Used as the
// base before [LoadSettings] and [ParseFlags] apply overrides.
func DefaultConfig() Config {
	return Config{
		STC:           STCNone,
		Format:        FormatEdgelist,
		ColorMode:     ColorAuto,
		S3Region:      "us-east-1",
		FSLOutputType: "NIFTI_GZ",
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an
// empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and, when not in CheckOnly mode, that every
// input image argument names an existing file. Invalid input files are a
// hard error: main exits non-zero on them.
func (c *Config) Validate() error {
	switch c.STC {
	case STCNone, STCInterleaved, STCUp, STCDown, STCFile:
		// valid
	default:
		return fmt.Errorf("invalid stc mode %q (use none, interleaved, up, down, or file)", c.STC)
	}

	switch c.Format {
	case FormatEdgelist, FormatGraphML:
		// valid
	default:
		return fmt.Errorf("invalid connectome format %q (use edgelist or graphml)", c.Format)
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use auto, always, or never)")
	}

	if c.CheckOnly {
		return nil
	}

	if c.STC == STCFile {
		if c.STCFile == "" {
			return errors.New("stc mode 'file' selected but no --stc-file provided")
		}
		if !isFile(c.STCFile) {
			return fmt.Errorf("invalid slice-timing file: %s", c.STCFile)
		}
	}

	for _, in := range []struct{ name, path string }{
		{"func", c.Func},
		{"t1w", c.T1w},
		{"atlas", c.Atlas},
		{"atlas_brain", c.AtlasBrain},
		{"atlas_mask", c.AtlasMask},
		{"lv_mask", c.LVMask},
	} {
		if in.path == "" {
			return fmt.Errorf("missing required %s image argument", in.name)
		}
		// Inputs may still be remote when an S3 fetch is configured.
		if c.FetchLocation == "" && !isFile(in.path) {
			return fmt.Errorf("invalid %s image: %s", in.name, in.path)
		}
	}

	if c.OutDir == "" {
		return errors.New("missing output directory argument")
	}
	if len(c.Labels) == 0 {
		return errors.New("at least one parcellation label image is required")
	}
	if c.FetchLocation == "" {
		for _, lab := range c.Labels {
			if !isFile(lab) {
				return fmt.Errorf("invalid label image: %s", lab)
			}
		}
	}
	return nil
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
