// Package qa accumulates per-stage quality metrics and timings for one
// subject and writes them as a JSON stats derivative.
package qa

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StageStats is the record for one completed pipeline stage.
type StageStats struct {
	Name    string             `json:"name"`
	Seconds float64            `json:"seconds"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Collector gathers stage records as a subject moves through the
// pipeline. Not safe for concurrent use; each subject gets its own.
type Collector struct {
	Subject string       `json:"subject"`
	Session string       `json:"session,omitempty"`
	Started time.Time    `json:"started"`
	Stages  []StageStats `json:"stages"`
}

func NewCollector(subject, session string) *Collector {
	return &Collector{Subject: subject, Session: session, Started: time.Now()}
}

// Record appends one stage record. metrics may be nil.
func (c *Collector) Record(stage string, elapsed time.Duration, metrics map[string]float64) {
	c.Stages = append(c.Stages, StageStats{
		Name:    stage,
		Seconds: elapsed.Seconds(),
		Metrics: metrics,
	})
}

// TotalSeconds sums the recorded stage durations.
func (c *Collector) TotalSeconds() float64 {
	var total float64
	for _, s := range c.Stages {
		total += s.Seconds
	}
	return total
}

// Save writes the collected stats as indented JSON.
func (c *Collector) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("qa stats: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("qa stats: %w", err)
	}
	return nil
}
