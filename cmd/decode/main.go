package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/voxlab/cv-transcriber/internal/batch"
	"github.com/voxlab/cv-transcriber/internal/dataset"
)

func main() {
	var (
		csvPath  string
		audioDir string
		api      string
		outPath  string
		workers  int
		timeout  time.Duration
	)
	flag.StringVar(&csvPath, "csv", "", "Path to the dataset CSV (required)")
	flag.StringVar(&audioDir, "audio-dir", "", "Root directory containing the audio files (required)")
	flag.StringVar(&api, "api", "http://localhost:8001/asr", "ASR API endpoint")
	flag.StringVar(&outPath, "out", "", "Output CSV path (default: overwrite input)")
	flag.IntVar(&workers, "workers", 1, "Concurrent transcription requests")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "Per-request timeout")
	flag.Parse()

	if csvPath == "" || audioDir == "" {
		flag.Usage()
		log.Fatal("Both -csv and -audio-dir are required")
	}
	if outPath == "" {
		outPath = csvPath
	}

	table, err := dataset.ReadFile(csvPath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", csvPath, err)
	}
	log.Printf("Transcribing %d rows against %s", len(table.Rows), api)

	driver := batch.NewDriver(batch.NewClient(api, timeout), audioDir, workers)
	metrics, err := driver.Run(context.Background(), table, csvPath)
	if err != nil {
		log.Fatalf("Batch run failed: %v", err)
	}

	if err := table.WriteFile(outPath); err != nil {
		log.Fatalf("Failed to write %s: %v", outPath, err)
	}

	log.Printf("Saved updated CSV to %s", outPath)
	log.Printf("Run summary:\n%s", metrics.Summary())
}
