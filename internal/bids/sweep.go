package bids

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Filter narrows a Sweep to specific entities. Empty fields match
// everything. Values are given without the entity prefix (e.g. "0025864",
// not "sub-0025864").
type Filter struct {
	Sub  string
	Ses  string
	Task string
	Run  string
}

var reTask = regexp.MustCompile(`(task-[a-zA-Z0-9]+)_`)

// imageEntry is one NIfTI file found during the sweep, keyed by the
// entities recovered from its path.
type imageEntry struct {
	path string
	sub  string
	ses  Token
}

// Sweep crawls a BIDS-formatted dataset for *_bold.nii[.gz] and
// *_T1w.nii[.gz] images and pairs every functional bold image with the
// anatomical T1w image of the same subject (and session, when both carry
// one). A session-level bold with no session-level T1w falls back to the
// subject-level T1w. Returns parallel slices of functional and anatomical
// paths, sorted by functional path.
func Sweep(root string, f Filter) ([]string, []string, error) {
	var bolds []imageEntry
	anats := map[string][]imageEntry{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Derivative trees are not inputs.
			if d.Name() == "derivatives" {
				return filepath.SkipDir
			}
			return nil
		}
		if !isNifti(path) {
			return nil
		}

		sub := lastMatch(reSub, path)
		if !sub.OK {
			return nil
		}
		entry := imageEntry{path: path, sub: sub.Value, ses: lastMatch(reSes, path)}

		switch {
		case strings.Contains(filepath.Base(path), "_bold."):
			if matchesFilter(path, entry, f) {
				bolds = append(bolds, entry)
			}
		case strings.Contains(filepath.Base(path), "_T1w."):
			anats[entry.sub] = append(anats[entry.sub], entry)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(bolds, func(i, j int) bool { return bolds[i].path < bolds[j].path })

	var funcs, t1ws []string
	for _, b := range bolds {
		anat, ok := findAnat(anats[b.sub], b.ses)
		if !ok {
			continue
		}
		funcs = append(funcs, b.path)
		t1ws = append(t1ws, anat)
	}
	return funcs, t1ws, nil
}

// findAnat picks the T1w matching the bold's session, falling back to a
// session-less subject-level T1w, then to the first candidate.
func findAnat(candidates []imageEntry, ses Token) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].path < candidates[j].path })
	for _, c := range candidates {
		if c.ses == ses {
			return c.path, true
		}
	}
	for _, c := range candidates {
		if !c.ses.OK {
			return c.path, true
		}
	}
	return candidates[0].path, true
}

func matchesFilter(path string, e imageEntry, f Filter) bool {
	if f.Sub != "" && e.sub != "sub-"+f.Sub {
		return false
	}
	if f.Ses != "" && (!e.ses.OK || e.ses.Value != "ses-"+f.Ses) {
		return false
	}
	if f.Task != "" {
		task := lastMatch(reTask, path)
		if !task.OK || task.Value != "task-"+f.Task {
			return false
		}
	}
	if f.Run != "" {
		run := lastMatch(reRun, path)
		if !run.OK || run.Value != "run-"+f.Run {
			return false
		}
	}
	return true
}

func isNifti(path string) bool {
	return strings.HasSuffix(path, ".nii") || strings.HasSuffix(path, ".nii.gz")
}
