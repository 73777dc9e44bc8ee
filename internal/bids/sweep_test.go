package bids

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTree creates empty files under root.
func writeTree(t *testing.T, root string, files []string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSweep(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, []string{
		"sub-01/ses-1/func/sub-01_ses-1_task-rest_bold.nii.gz",
		"sub-01/ses-1/anat/sub-01_ses-1_T1w.nii.gz",
		"sub-01/ses-2/func/sub-01_ses-2_task-rest_bold.nii.gz",
		"sub-01/anat/sub-01_T1w.nii.gz", // subject-level fallback for ses-2
		"sub-02/func/sub-02_task-rest_bold.nii.gz",
		"sub-02/anat/sub-02_T1w.nii.gz",
		"sub-03/func/sub-03_task-rest_bold.nii.gz", // no anat: dropped
		"derivatives/sub-01/func/sub-01_ses-9_bold.nii.gz",
	})

	funcs, anats, err := Sweep(root, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(funcs) != 3 || len(anats) != 3 {
		t.Fatalf("Sweep() = %d funcs, %d anats, want 3 and 3\nfuncs: %v", len(funcs), len(anats), funcs)
	}

	// ses-1 bold pairs with the ses-1 anat.
	if filepath.Base(anats[0]) != "sub-01_ses-1_T1w.nii.gz" {
		t.Errorf("ses-1 anat = %s", anats[0])
	}
	// ses-2 bold has no ses-2 anat and falls back to the subject-level one.
	if filepath.Base(anats[1]) != "sub-01_T1w.nii.gz" {
		t.Errorf("ses-2 anat fallback = %s", anats[1])
	}
}

func TestSweep_Filter(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, []string{
		"sub-01/func/sub-01_task-rest_run-1_bold.nii.gz",
		"sub-01/func/sub-01_task-rest_run-2_bold.nii.gz",
		"sub-01/func/sub-01_task-lang_run-1_bold.nii.gz",
		"sub-01/anat/sub-01_T1w.nii.gz",
		"sub-02/func/sub-02_task-rest_run-1_bold.nii.gz",
		"sub-02/anat/sub-02_T1w.nii.gz",
	})

	cases := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no filter", Filter{}, 4},
		{"by subject", Filter{Sub: "01"}, 3},
		{"by task", Filter{Task: "rest"}, 3},
		{"by subject and run", Filter{Sub: "01", Run: "2"}, 1},
		{"no match", Filter{Sub: "09"}, 0},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			funcs, _, err := Sweep(root, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(funcs) != tt.want {
				t.Errorf("got %d funcs, want %d: %v", len(funcs), tt.want, funcs)
			}
		})
	}
}
