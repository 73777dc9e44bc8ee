package graph

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"math"
	"os"

	"github.com/gonum/matrix/mat64"

	"github.com/neurodata/fmripipe/internal/config"
)

// Graph is a functional connectome over the regions of one parcellation.
// The adjacency matrix is symmetric with a unit diagonal.
type Graph struct {
	// IDs are the parcellation label values, one per node, in the same
	// order as the matrix rows.
	IDs []int

	adj *mat64.Dense
}

type statistic struct {
	avg float64
	std float64
}

// FromTimeseries correlates every pair of region timeseries. series is
// regions×T; ids names the region behind each row.
func FromTimeseries(series *mat64.Dense, ids []int) (*Graph, error) {
	rows, cols := series.Dims()
	if rows != len(ids) {
		return nil, fmt.Errorf("connectome: %d series for %d region ids", rows, len(ids))
	}
	if cols < 2 {
		return nil, fmt.Errorf("connectome: need at least 2 timepoints, got %d", cols)
	}

	stats := make([]statistic, rows)
	for i := 0; i < rows; i++ {
		var accVal, accSqrVal float64
		for t := 0; t < cols; t++ {
			value := series.At(i, t)
			accVal += value
			accSqrVal += value * value
		}
		avg := accVal / float64(cols)
		stats[i].avg = avg
		stats[i].std = math.Sqrt(accSqrVal/float64(cols) - avg*avg)
	}

	adj := mat64.NewDense(rows, rows, nil)
	for from := 0; from < rows; from++ {
		adj.Set(from, from, 1)
		for to := from + 1; to < rows; to++ {
			var accProd float64
			for t := 0; t < cols; t++ {
				accProd += series.At(from, t) * series.At(to, t)
			}
			cov := accProd/float64(cols) - stats[from].avg*stats[to].avg
			denom := stats[from].std * stats[to].std
			var r float64
			if denom > 0 {
				r = cov / denom
			}
			adj.Set(from, to, r)
			adj.Set(to, from, r)
		}
	}

	return &Graph{IDs: append([]int(nil), ids...), adj: adj}, nil
}

// Nodes returns the number of regions.
func (g *Graph) Nodes() int { return len(g.IDs) }

// Weight returns the correlation between nodes i and j by matrix index.
func (g *Graph) Weight(i, j int) float64 { return g.adj.At(i, j) }

// Summary aggregates edge statistics for quality control. The diagonal
// is excluded.
func (g *Graph) Summary() map[string]float64 {
	n := g.Nodes()
	var sum, min, max float64
	min = math.Inf(1)
	max = math.Inf(-1)
	edges := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := g.adj.At(i, j)
			sum += w
			min = math.Min(min, w)
			max = math.Max(max, w)
			edges++
		}
	}
	s := map[string]float64{"nodes": float64(n), "edges": float64(edges)}
	if edges > 0 {
		s["mean_weight"] = sum / float64(edges)
		s["min_weight"] = min
		s["max_weight"] = max
	}
	return s
}

// Save writes the connectome in the requested format.
func (g *Graph) Save(path string, format config.GraphFormat) error {
	switch format {
	case config.FormatEdgelist:
		return g.saveEdgelist(path)
	case config.FormatGraphML:
		return g.saveGraphML(path)
	default:
		return fmt.Errorf("connectome: unknown format %q", format)
	}
}

// saveEdgelist writes one "<id_i> <id_j> <weight>" line per undirected
// edge, upper triangle only.
func (g *Graph) saveEdgelist(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	n := g.Nodes()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			fmt.Fprintf(w, "%d %d %.6f\n", g.IDs[i], g.IDs[j], g.adj.At(i, j))
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type graphmlDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	Xmlns   string       `xml:"xmlns,attr"`
	Key     graphmlKey   `xml:"key"`
	Graph   graphmlGraph `xml:"graph"`
}

type graphmlKey struct {
	ID   string `xml:"id,attr"`
	For  string `xml:"for,attr"`
	Name string `xml:"attr.name,attr"`
	Type string `xml:"attr.type,attr"`
}

type graphmlGraph struct {
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphmlNode `xml:"node"`
	Edges       []graphmlEdge `xml:"edge"`
}

type graphmlNode struct {
	ID string `xml:"id,attr"`
}

type graphmlEdge struct {
	Source string      `xml:"source,attr"`
	Target string      `xml:"target,attr"`
	Data   graphmlData `xml:"data"`
}

type graphmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

func (g *Graph) saveGraphML(path string) error {
	doc := graphmlDoc{
		Xmlns: "http://graphml.graphdrawing.org/xmlns",
		Key:   graphmlKey{ID: "w", For: "edge", Name: "weight", Type: "double"},
		Graph: graphmlGraph{EdgeDefault: "undirected"},
	}
	n := g.Nodes()
	for i := 0; i < n; i++ {
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphmlNode{ID: fmt.Sprintf("%d", g.IDs[i])})
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			doc.Graph.Edges = append(doc.Graph.Edges, graphmlEdge{
				Source: fmt.Sprintf("%d", g.IDs[i]),
				Target: fmt.Sprintf("%d", g.IDs[j]),
				Data:   graphmlData{Key: "w", Value: fmt.Sprintf("%.6f", g.adj.At(i, j))},
			})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(xml.Header); err != nil {
		f.Close()
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
