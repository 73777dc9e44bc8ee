package graph

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gonum/matrix/mat64"

	"github.com/neurodata/fmripipe/internal/config"
)

func testSeries(t *testing.T) (*mat64.Dense, []int) {
	t.Helper()
	// Region 20 is region 10 scaled and shifted (r = 1); region 30 is
	// region 10 negated (r = -1).
	series := mat64.NewDense(3, 5, []float64{
		1, 2, 3, 4, 5,
		12, 14, 16, 18, 20,
		5, 4, 3, 2, 1,
	})
	return series, []int{10, 20, 30}
}

func TestFromTimeseries(t *testing.T) {
	series, ids := testSeries(t)
	g, err := FromTimeseries(series, ids)
	if err != nil {
		t.Fatalf("FromTimeseries: %v", err)
	}
	if g.Nodes() != 3 {
		t.Fatalf("nodes = %d, want 3", g.Nodes())
	}
	cases := []struct {
		i, j int
		want float64
	}{
		{0, 0, 1},
		{0, 1, 1},
		{0, 2, -1},
		{1, 2, -1},
	}
	for _, c := range cases {
		if got := g.Weight(c.i, c.j); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("weight(%d,%d) = %v, want %v", c.i, c.j, got, c.want)
		}
		if got := g.Weight(c.j, c.i); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("weight(%d,%d) = %v, want %v", c.j, c.i, got, c.want)
		}
	}
}

func TestFromTimeseriesConstantSeries(t *testing.T) {
	series := mat64.NewDense(2, 4, []float64{
		7, 7, 7, 7,
		1, 2, 3, 4,
	})
	g, err := FromTimeseries(series, []int{1, 2})
	if err != nil {
		t.Fatalf("FromTimeseries: %v", err)
	}
	// Zero-variance series correlate with nothing.
	if w := g.Weight(0, 1); w != 0 {
		t.Errorf("weight = %v, want 0 for constant series", w)
	}
}

func TestFromTimeseriesMismatch(t *testing.T) {
	series := mat64.NewDense(2, 4, nil)
	if _, err := FromTimeseries(series, []int{1, 2, 3}); err == nil {
		t.Error("expected error for id/series count mismatch")
	}
	short := mat64.NewDense(2, 1, nil)
	if _, err := FromTimeseries(short, []int{1, 2}); err == nil {
		t.Error("expected error for single-timepoint series")
	}
}

func TestSummary(t *testing.T) {
	series, ids := testSeries(t)
	g, err := FromTimeseries(series, ids)
	if err != nil {
		t.Fatalf("FromTimeseries: %v", err)
	}
	s := g.Summary()
	if s["nodes"] != 3 || s["edges"] != 3 {
		t.Errorf("nodes/edges = %v/%v, want 3/3", s["nodes"], s["edges"])
	}
	if math.Abs(s["max_weight"]-1) > 1e-9 || math.Abs(s["min_weight"]+1) > 1e-9 {
		t.Errorf("min/max = %v/%v, want -1/1", s["min_weight"], s["max_weight"])
	}
}

func TestSaveEdgelist(t *testing.T) {
	series, ids := testSeries(t)
	g, err := FromTimeseries(series, ids)
	if err != nil {
		t.Fatalf("FromTimeseries: %v", err)
	}
	path := filepath.Join(t.TempDir(), "conn.edgelist")
	if err := g.Save(path, config.FormatEdgelist); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0] != "10 20 1.000000" {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestSaveGraphML(t *testing.T) {
	series, ids := testSeries(t)
	g, err := FromTimeseries(series, ids)
	if err != nil {
		t.Fatalf("FromTimeseries: %v", err)
	}
	path := filepath.Join(t.TempDir(), "conn.graphml")
	if err := g.Save(path, config.FormatGraphML); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`<graphml`,
		`edgedefault="undirected"`,
		`<node id="10">`,
		`source="10" target="20"`,
		`>1.000000<`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
