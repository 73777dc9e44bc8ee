package bids

import "testing"

func TestParseTokens(t *testing.T) {
	cases := []struct {
		name     string
		funcPath string
		tempPath string

		wantSub   string
		wantSes   Token
		wantRun   Token
		wantSpace string
		wantRes   Token
		wantErr   bool
	}{
		{
			name:      "full entity set",
			funcPath:  "/data/sub-0025864/ses-1/func/sub-0025864_ses-1_task-rest_run-2_bold.nii.gz",
			tempPath:  "/atlas/MNI152NLin6_res-2x2x2_T1w.nii.gz",
			wantSub:   "sub-0025864",
			wantSes:   Token{Value: "ses-1", OK: true},
			wantRun:   Token{Value: "run-2", OK: true},
			wantSpace: "MNI152NLin6",
			wantRes:   Token{Value: "res-2x2x2", OK: true},
		},
		{
			name:      "no session",
			funcPath:  "/data/sub-017/func/sub-017_task-rest_bold.nii.gz",
			tempPath:  "/atlas/MNI152NLin6_res-2x2x2_T1w.nii.gz",
			wantSub:   "sub-017",
			wantSes:   Token{},
			wantRun:   Token{},
			wantSpace: "MNI152NLin6",
			wantRes:   Token{Value: "res-2x2x2", OK: true},
		},
		{
			name:      "no resolution entity",
			funcPath:  "/data/sub-017/func/sub-017_bold.nii.gz",
			tempPath:  "/atlas/MNI152.nii.gz",
			wantSub:   "sub-017",
			wantSpace: "MNI152",
		},
		{
			name:      "last sub occurrence wins",
			funcPath:  "/scratch/sub-999_copy/sub-0025864_ses-1_bold.nii.gz",
			tempPath:  "/atlas/MNI152_T1w.nii.gz",
			wantSub:   "sub-0025864",
			wantSes:   Token{Value: "ses-1", OK: true},
			wantSpace: "MNI152",
		},
		{
			name:     "missing subject is an error",
			funcPath: "/data/task-rest_bold.nii.gz",
			tempPath: "/atlas/MNI152.nii.gz",
			wantErr:  true,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := ParseTokens(tt.funcPath, tt.tempPath)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTokens() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tok.Sub != tt.wantSub {
				t.Errorf("Sub = %q, want %q", tok.Sub, tt.wantSub)
			}
			if tok.Ses != tt.wantSes {
				t.Errorf("Ses = %+v, want %+v", tok.Ses, tt.wantSes)
			}
			if tok.Run != tt.wantRun {
				t.Errorf("Run = %+v, want %+v", tok.Run, tt.wantRun)
			}
			if tok.Space != tt.wantSpace {
				t.Errorf("Space = %q, want %q", tok.Space, tt.wantSpace)
			}
			if tok.Res != tt.wantRes {
				t.Errorf("Res = %+v, want %+v", tok.Res, tt.wantRes)
			}
		})
	}
}

func TestGetLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/atlases/label/desikan_space-MNI152NLin6_res-2x2x2.nii.gz", "label-desikan"},
		{"aal.nii.gz", "label-aal"},
		{"CPAC200.nii", "label-CPAC200"},
		{"/deep/path/harvard-oxford.nii.gz", "label-harvard-oxford"},
	}
	for _, tt := range cases {
		if got := GetLabel(tt.in); got != tt.want {
			t.Errorf("GetLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStem(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/data/sub-017_task-rest_bold.nii.gz", "sub-017_task-rest_bold"},
		{"sub-017_T1w.nii", "sub-017_T1w"},
		{"noext", "noext"},
	}
	for _, tt := range cases {
		if got := Stem(tt.in); got != tt.want {
			t.Errorf("Stem(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
