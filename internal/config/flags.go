package config

// This file implements CLI flag parsing and help text. The pipeline takes
// its image inputs as positional arguments (func, t1w, atlas triple,
// ventricle mask, output dir, stc mode, labels...) and everything else as
// flags. Override flags (e.g. --no-color) are applied after Parse so
// Config defaults hold unless set.

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// version is shown in --version and help; override at build time with
// -ldflags "-X github.com/neurodata/fmripipe/internal/config.version=...".
var version = "1.0.0-dev"

// Version returns the build version string.
func Version() string { return version }

// ParseFlags parses os.Args into cfg. On --help or --version it prints and
// exits. On error it returns non-nil (e.g. unknown flag, missing positional
// args).
func ParseFlags(cfg *Config) error {
	return parseArgs(cfg, os.Args[1:])
}

// parseArgs is the testable core of [ParseFlags].
func parseArgs(cfg *Config, argv []string) error {
	fs := flag.NewFlagSet("fmripipe", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	var over overrideFlags

	defineBehaviorFlags(fs, cfg, &over)
	defineCloudFlags(fs, cfg, &over)
	defineDisplayFlags(fs, cfg, &over)
	defineUtilityFlags(fs, &over)

	if err := fs.Parse(argv); err != nil {
		return err
	}

	if over.showHelp {
		printUsage(fs)
		os.Exit(0)
	}
	if over.showVersion {
		fmt.Fprintln(os.Stdout, "fmripipe v"+version)
		os.Exit(0)
	}

	if over.settingsFile != "" {
		if err := LoadSettings(over.settingsFile, cfg); err != nil {
			return err
		}
	}
	applyOverrideFlags(cfg, &over)

	return parsePositionalArgs(fs, cfg)
}

// overrideFlags holds flag values that are applied after Parse, so that
// defaults (and YAML settings) hold unless the user passes the flag.
type overrideFlags struct {
	forceColor   bool
	noColor      bool
	noSign       bool
	region       string
	settingsFile string
	showVersion  bool
	showHelp     bool
}

// defineBehaviorFlags registers -s/--stc-file, -c/--clean, -f/--fmt,
// -d/--dry-run.
func defineBehaviorFlags(fs *flag.FlagSet, cfg *Config, over *overrideFlags) {
	fs.StringVar(&cfg.STCFile, "stc-file", "", "Slice-order file for stc mode 'file'")
	fs.StringVar(&cfg.STCFile, "s", "", "Same as --stc-file")
	fs.BoolVar(&cfg.Clean, "clean", false, "Delete intermediate derivatives when finished")
	fs.BoolVar(&cfg.Clean, "c", false, "Same as --clean")
	fs.Var(&graphFormatValue{&cfg.Format}, "fmt", "Connectome format: edgelist | graphml")
	fs.Var(&graphFormatValue{&cfg.Format}, "f", "Same as --fmt")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Resolve derivative names only; run no stages")
	fs.BoolVar(&cfg.DryRun, "d", false, "Same as --dry-run")
	fs.StringVar(&over.settingsFile, "settings", "", "YAML settings file for cloud/tool defaults")
}

// defineCloudFlags registers --fetch, --push, --region, --no-sign.
func defineCloudFlags(fs *flag.FlagSet, cfg *Config, over *overrideFlags) {
	fs.StringVar(&cfg.FetchLocation, "fetch", "", "s3://bucket/prefix to pull input data from")
	fs.StringVar(&cfg.PushLocation, "push", "", "s3://bucket/prefix to push derivatives to")
	fs.StringVar(&over.region, "region", "", "AWS region for S3 transfers (default: us-east-1)")
	fs.BoolVar(&over.noSign, "no-sign", false, "Unsigned S3 requests (public buckets)")
}

// defineDisplayFlags registers --color, --no-color, verbose, --check, --log.
func defineDisplayFlags(fs *flag.FlagSet, cfg *Config, over *overrideFlags) {
	fs.BoolVar(&over.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&over.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Verbose output (tee external tool stderr)")
	fs.BoolVar(&cfg.Verbose, "v", false, "Same as --verbose")
	fs.BoolVar(&cfg.CheckOnly, "check", false, "Check external tool availability and exit")
	fs.StringVar(&cfg.LogFile, "log", "", "Append logs to file")
	fs.StringVar(&cfg.LogFile, "l", "", "Same as --log")
}

// defineUtilityFlags registers --version and --help (exit after printing).
func defineUtilityFlags(fs *flag.FlagSet, over *overrideFlags) {
	fs.BoolVar(&over.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&over.showVersion, "V", false, "Same as --version")
	fs.BoolVar(&over.showHelp, "help", false, "Show this help and exit")
	fs.BoolVar(&over.showHelp, "h", false, "Same as --help")
}

// applyOverrideFlags copies override flag values into cfg.
func applyOverrideFlags(cfg *Config, over *overrideFlags) {
	if over.noColor {
		cfg.ColorMode = ColorNever
	} else if over.forceColor {
		cfg.ColorMode = ColorAlways
	}
	if over.region != "" {
		cfg.S3Region = over.region
	}
	if over.noSign {
		cfg.S3NoSign = true
	}
}

// parsePositionalArgs fills the image inputs from the positional args when
// not in CheckOnly mode. Order matches the pipeline's call contract:
//
//	func t1w atlas atlas_brain atlas_mask lv_mask outdir stc label [label...]
func parsePositionalArgs(fs *flag.FlagSet, cfg *Config) error {
	args := fs.Args()
	if cfg.CheckOnly {
		return nil
	}
	if len(args) < 9 {
		return fmt.Errorf(
			"need func t1w atlas atlas_brain atlas_mask lv_mask outdir stc and at least one label (got %d args)",
			len(args))
	}
	cfg.Func = args[0]
	cfg.T1w = args[1]
	cfg.Atlas = args[2]
	cfg.AtlasBrain = args[3]
	cfg.AtlasMask = args[4]
	cfg.LVMask = args[5]
	cfg.OutDir = NormalizeDirArg(args[6])
	cfg.STC = STCMode(strings.ToLower(args[7]))
	cfg.Labels = args[8:]
	return nil
}

// printUsage writes the help text to stderr. Column-aligned for readability.
func printUsage(fs *flag.FlagSet) {
	const col1 = 28 // width of "  -x, --long-name <arg>  "
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "fmripipe v" + version + " - end-to-end fMRI connectome estimation"},
		{"", ""},
		{"  fmripipe [OPTIONS] <func> <t1w> <atlas> <atlas_brain> <atlas_mask> <lv_mask> <outdir> <stc> <label>...", ""},
		{"", ""},
		{"Positional", ""},
		{"  func", "NIfTI fMRI 4D EPI volume"},
		{"  t1w", "NIfTI anatomical T1w volume"},
		{"  atlas", "NIfTI T1 atlas, full head"},
		{"  atlas_brain", "NIfTI T1 atlas, brain only"},
		{"  atlas_mask", "NIfTI binary brain mask in atlas space"},
		{"  lv_mask", "NIfTI lateral-ventricle mask in atlas space"},
		{"  outdir", "Base directory for derivatives"},
		{"  stc", "Slice timing: none | interleaved | up | down | file"},
		{"  label...", "NIfTI parcellation labels in atlas space"},
		{"", ""},
		{"Behavior", ""},
		{"  -s, --stc-file <path>", "Slice-order file (required for stc 'file')"},
		{"  -c, --clean", "Delete intermediate derivatives when finished"},
		{"  -f, --fmt <format>", "Connectome format: edgelist | graphml (default: edgelist)"},
		{"  -d, --dry-run", "Resolve derivative names only; run no stages"},
		{"  --settings <path>", "YAML settings file for cloud/tool defaults"},
		{"", ""},
		{"Cloud", ""},
		{"  --fetch <s3-uri>", "Pull input data from s3://bucket/prefix before running"},
		{"  --push <s3-uri>", "Push derivatives to s3://bucket/prefix when finished"},
		{"  --region <name>", "AWS region for S3 transfers (default: us-east-1)"},
		{"  --no-sign", "Unsigned S3 requests (public buckets)"},
		{"", ""},
		{"Display", ""},
		{"  --color", "Force colored logs"},
		{"  --no-color", "Disable colored logs"},
		{"  -v, --verbose", "Verbose output"},
		{"", ""},
		{"Utility", ""},
		{"  -l, --log <path>", "Append logs to file"},
		{"  --check", "Check external tool availability and exit"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(os.Stderr)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(os.Stderr, l.flags)
			continue
		}
		if l.flags == "" {
			fmt.Fprintln(os.Stderr, l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(os.Stderr, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}

// flag.Value adapter so the GraphFormat enum works with flag.Var.

type graphFormatValue struct{ p *GraphFormat }

func (g *graphFormatValue) String() string { return string(*g.p) }

func (g *graphFormatValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "edgelist":
		*g.p = FormatEdgelist
	case "graphml":
		*g.p = FormatGraphML
	default:
		return fmt.Errorf("invalid connectome format %q (use edgelist or graphml)", s)
	}
	return nil
}
