// Package batch drives the transcription service over an entire labeled
// dataset. Rows are independent units of work: any per-row failure is
// recorded as an empty result and the run always completes.
package batch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/voxlab/cv-transcriber/internal/dataset"
	"github.com/voxlab/cv-transcriber/internal/metrics"
)

type Driver struct {
	client    *Client
	audioRoot string
	workers   int
}

// rowResult is the explicit per-row outcome; failures are data, not
// control flow.
type rowResult struct {
	text     string
	duration string
	skipped  bool
	err      error
}

var emptyResult = rowResult{text: "", duration: "0.0", skipped: true}

func NewDriver(client *Client, audioRoot string, workers int) *Driver {
	if workers < 1 {
		workers = 1
	}
	return &Driver{client: client, audioRoot: audioRoot, workers: workers}
}

// Run transcribes every row of the table and appends (or overwrites) the
// generated_text and duration columns in place. The output has exactly the
// input's row count and order regardless of worker scheduling.
func (d *Driver) Run(ctx context.Context, table *dataset.Table, name string) (*metrics.RunMetrics, error) {
	m := metrics.NewRunMetrics(name)

	results := make([]rowResult, len(table.Rows))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < d.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = d.processRow(ctx, table, i)
			}
		}()
	}

	for i := range table.Rows {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	texts := make([]string, len(results))
	durations := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.text
		durations[i] = r.duration
		switch {
		case r.err != nil:
			m.AddFailed()
		case r.skipped:
			m.AddSkipped()
		default:
			if secs, err := strconv.ParseFloat(r.duration, 64); err == nil {
				m.AddTranscribed(secs)
			} else {
				m.AddTranscribed(0)
			}
		}
	}

	if err := table.SetColumn("generated_text", texts); err != nil {
		return nil, err
	}
	if err := table.SetColumn("duration", durations); err != nil {
		return nil, err
	}

	m.Finalize()
	return m, nil
}

func (d *Driver) processRow(ctx context.Context, table *dataset.Table, i int) rowResult {
	ref, ok := table.AudioRef(i)
	if !ok {
		log.Printf("Row %d: no audio reference column set, skipping", i)
		return emptyResult
	}

	audioPath := filepath.Join(d.audioRoot, ref)
	if _, err := os.Stat(audioPath); err != nil {
		log.Printf("Row %d: %s not found, skipping", i, audioPath)
		return emptyResult
	}

	tr, err := d.client.Transcribe(ctx, audioPath)
	if err != nil {
		log.Printf("Row %d: error for %s: %v", i, audioPath, err)
		return rowResult{text: "", duration: "0.0", err: err}
	}
	return rowResult{text: tr.Text, duration: tr.Duration}
}
