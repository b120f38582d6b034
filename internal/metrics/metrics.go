package metrics

import (
	"fmt"
	"sync"
	"time"
)

// RunMetrics accumulates counters for one batch transcription run. Safe for
// concurrent workers.
type RunMetrics struct {
	Dataset      string
	StartTime    time.Time
	EndTime      time.Time
	Rows         int
	Transcribed  int
	SkippedRows  int // missing reference or missing file
	FailedRows   int // request or decode failures
	AudioSeconds float64
	mu           sync.Mutex
}

func NewRunMetrics(dataset string) *RunMetrics {
	return &RunMetrics{
		Dataset:   dataset,
		StartTime: time.Now(),
	}
}

func (m *RunMetrics) AddTranscribed(audioSeconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rows++
	m.Transcribed++
	m.AudioSeconds += audioSeconds
}

func (m *RunMetrics) AddSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rows++
	m.SkippedRows++
}

func (m *RunMetrics) AddFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rows++
	m.FailedRows++
}

func (m *RunMetrics) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndTime = time.Now()
}

func (m *RunMetrics) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := m.EndTime.Sub(m.StartTime)
	rtf := 0.0
	if m.AudioSeconds > 0 {
		rtf = duration.Seconds() / m.AudioSeconds
	}

	return fmt.Sprintf(
		"Dataset: %s\n"+
			"Duration: %v\n"+
			"Rows: %d\n"+
			"Transcribed: %d\n"+
			"Skipped (no audio): %d\n"+
			"Failed: %d\n"+
			"Audio Transcribed: %.2f seconds\n"+
			"Real-time Factor: %.2fx\n",
		m.Dataset,
		duration,
		m.Rows,
		m.Transcribed,
		m.SkippedRows,
		m.FailedRows,
		m.AudioSeconds,
		rtf,
	)
}
