package bids

import (
	"os"
	"path/filepath"
	"sort"
)

// Scope names within a Namer's directory tree.
const (
	ScopeOutput = "output" // Permanent derivatives.
	ScopeTmp    = "tmp"    // Intermediates, removed after the run.
	ScopeQA     = "qa"     // Quality-assessment artifacts.
)

var scopes = []string{ScopeOutput, ScopeTmp, ScopeQA}

// Scope is one branch of the derivative directory tree: a base directory,
// flat per-derivative directories, and per-derivative trees with one
// subdirectory per parcellation label.
type Scope struct {
	Base      string
	Dirs      map[string]string
	LabelDirs map[string]map[string]string
}

// DirTree maps scope name (output, tmp, qa) to its Scope.
type DirTree map[string]*Scope

// Flatten returns every directory in the tree, sorted for deterministic
// creation and logging order.
func (t DirTree) Flatten() []string {
	var all []string
	for _, sc := range t {
		all = append(all, sc.Base)
		for _, d := range sc.Dirs {
			all = append(all, d)
		}
		for _, byLabel := range sc.LabelDirs {
			for _, d := range byLabel {
				all = append(all, d)
			}
		}
	}
	sort.Strings(all)
	return all
}

// Namer derives BIDS-style derivative names and the output directory
// layout for a single subject. Every derivative path is a deterministic
// function of (subject, session, modality source, template, label); the
// Namer is immutable after AddDirs.
type Namer struct {
	tokens     Tokens
	modSource  string // functional image stem
	anatSource string // anatomical image stem
	basePath   string
	outDir     string // <basePath>/<sub>[/<ses>]

	// Dirs is populated by AddDirs.
	Dirs DirTree
}

// NewNamer builds a Namer from the raw input paths. The per-subject output
// directory gains a session segment only when the functional filename
// carries a ses- entity.
func NewNamer(funcPath, t1wPath, templatePath, outDir string) (*Namer, error) {
	tok, err := ParseTokens(funcPath, templatePath)
	if err != nil {
		return nil, err
	}

	n := &Namer{
		tokens:     tok,
		modSource:  Stem(funcPath),
		anatSource: Stem(t1wPath),
		basePath:   outDir,
	}

	parts := []string{outDir, tok.Sub}
	if tok.Ses.OK {
		parts = append(parts, tok.Ses.Value)
	}
	n.outDir = filepath.Join(parts...)
	return n, nil
}

// AddDirs builds the output/tmp/qa directory tree for the given derivative
// suffix map and physically creates every directory. Keys listed in
// labelDirs gain one subdirectory per parcellation label. Idempotent:
// re-invoking with the same inputs yields the same path set.
func (n *Namer) AddDirs(paths map[string]string, labels []string, labelDirs []string) error {
	labelled := make(map[string]bool, len(labelDirs))
	for _, k := range labelDirs {
		labelled[k] = true
	}

	tree := make(DirTree, len(scopes))
	for _, scope := range scopes {
		addstr := ""
		if scope != ScopeOutput {
			addstr = scope
		}
		sc := &Scope{
			Base:      filepath.Join(n.outDir, addstr),
			Dirs:      make(map[string]string),
			LabelDirs: make(map[string]map[string]string),
		}
		for kwd, suffix := range paths {
			dir := filepath.Join(n.outDir, addstr, suffix)
			if labelled[kwd] {
				byLabel := make(map[string]string, len(labels))
				for _, label := range labels {
					name := GetLabel(label)
					byLabel[name] = filepath.Join(dir, name)
				}
				sc.LabelDirs[kwd] = byLabel
			} else {
				sc.Dirs[kwd] = dir
			}
		}
		tree[scope] = sc
	}

	for _, dir := range tree.Flatten() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	n.Dirs = tree
	return nil
}

// NameDerivative joins a directory from the tree with a derivative file name.
func (n *Namer) NameDerivative(dir, file string) string {
	return filepath.Join(dir, file)
}

// OutDir returns the per-subject output directory (with session
// granularity when present).
func (n *Namer) OutDir() string { return n.outDir }

// ModSource returns the functional image source stem.
func (n *Namer) ModSource() string { return n.modSource }

// AnatSource returns the anatomical image source stem.
func (n *Namer) AnatSource() string { return n.anatSource }

// Tokens returns the parsed BIDS entities.
func (n *Namer) Tokens() Tokens { return n.tokens }

// TemplateSpace returns the spatial identity of the registration template:
// "space-<name>", with the resolution entity appended when the template
// filename carries one.
func (n *Namer) TemplateSpace() string {
	s := "space-" + n.tokens.Space
	if n.tokens.Res.OK {
		s += "_" + n.tokens.Res.Value
	}
	return s
}
