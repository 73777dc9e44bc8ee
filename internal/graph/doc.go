// Package graph builds functional connectomes: weighted undirected
// graphs whose nodes are parcellation regions and whose edge weights
// are Pearson correlations between region timeseries.
package graph
