package main

import (
	"context"
	"flag"
	"log"
	"os"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"

	"github.com/voxlab/cv-transcriber/internal/dataset"
	"github.com/voxlab/cv-transcriber/internal/index"
)

func main() {
	var (
		csvPath    string
		esURL      string
		indexName  string
		flushBytes int
	)
	flag.StringVar(&csvPath, "csv", "", "Path to the enriched dataset CSV (required)")
	flag.StringVar(&esURL, "es", defaultESHost(), "Elasticsearch URL")
	flag.StringVar(&indexName, "index", "cv-transcriptions", "Destination index")
	flag.IntVar(&flushBytes, "flush-bytes", 0, "Bulk flush threshold in bytes (0 = client default)")
	flag.Parse()

	if csvPath == "" {
		flag.Usage()
		log.Fatal("-csv is required")
	}

	table, err := dataset.ReadFile(csvPath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", csvPath, err)
	}
	log.Printf("Indexing %d rows into %s at %s", len(table.Rows), indexName, esURL)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{esURL}})
	if err != nil {
		log.Fatalf("Failed to create Elasticsearch client: %v", err)
	}

	pipeline := index.NewPipeline(es, indexName, flushBytes)
	report, err := pipeline.Run(context.Background(), table)
	if err != nil {
		log.Fatalf("Indexing failed: %v", err)
	}

	index.LogReport(report)
}

func defaultESHost() string {
	if v := os.Getenv("ES_HOST"); v != "" {
		return v
	}
	return "http://localhost:9200"
}
