// Package index loads enriched datasets into an Elasticsearch index. Each
// run drops and recreates the index with a fixed mapping, then bulk-upserts
// every row under a stable identity so repeated runs replace rather than
// duplicate.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/voxlab/cv-transcriber/internal/dataset"
)

// indexBody is the fixed schema: exact-match sub-field on generated_text,
// keyword fields for the facets, integers for vote counts.
const indexBody = `{
  "settings": {"number_of_shards": 2, "number_of_replicas": 1},
  "mappings": {
    "properties": {
      "generated_text": {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "duration": {"type": "float"},
      "duration_bucket": {"type": "keyword"},
      "age": {"type": "keyword"},
      "gender": {"type": "keyword"},
      "accent": {"type": "keyword"},
      "path": {"type": "keyword"},
      "client_id": {"type": "keyword"},
      "text": {"type": "text"},
      "up_votes": {"type": "integer"},
      "down_votes": {"type": "integer"}
    }
  }
}`

// DocError records one document that the engine rejected during the bulk
// load.
type DocError struct {
	ID     string
	Reason string
}

// Report summarizes a pipeline run.
type Report struct {
	Indexed int64
	Failed  int64
	Total   int64 // document count in the index after refresh
	Errors  []DocError
}

type Pipeline struct {
	es         *elasticsearch.Client
	index      string
	flushBytes int
}

func NewPipeline(es *elasticsearch.Client, index string, flushBytes int) *Pipeline {
	return &Pipeline{es: es, index: index, flushBytes: flushBytes}
}

// Run recreates the index and bulk-loads every row of the table. Document
// failures are collected, never fatal: the remaining batches still commit.
func (p *Pipeline) Run(ctx context.Context, table *dataset.Table) (*Report, error) {
	if err := p.recreateIndex(ctx); err != nil {
		return nil, err
	}

	report := &Report{}
	var mu sync.Mutex

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     p.es,
		Index:      p.index,
		FlushBytes: p.flushBytes,
		OnError: func(ctx context.Context, err error) {
			log.Printf("Bulk flush error: %v", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating bulk indexer: %w", err)
	}

	for i := range table.Rows {
		doc, id := BuildDocument(table, i)
		body, err := json.Marshal(doc)
		if err != nil {
			mu.Lock()
			report.Errors = append(report.Errors, DocError{ID: id, Reason: err.Error()})
			mu.Unlock()
			continue
		}

		item := esutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(body),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				reason := res.Error.Reason
				if reason == "" && err != nil {
					reason = err.Error()
				}
				mu.Lock()
				report.Errors = append(report.Errors, DocError{ID: item.DocumentID, Reason: reason})
				mu.Unlock()
			},
		}
		// An empty id lets the engine assign one; such rows cannot be
		// deduplicated on re-runs.
		if id != "" {
			item.DocumentID = id
		}

		if err := bi.Add(ctx, item); err != nil {
			return nil, fmt.Errorf("adding document %q: %w", id, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return nil, fmt.Errorf("draining bulk indexer: %w", err)
	}

	stats := bi.Stats()
	report.Indexed = int64(stats.NumAdded) - int64(stats.NumFailed)
	report.Failed = int64(stats.NumFailed)

	if err := p.refresh(ctx); err != nil {
		return nil, err
	}
	total, err := p.count(ctx)
	if err != nil {
		return nil, err
	}
	report.Total = total
	return report, nil
}

// recreateIndex deletes any existing index of the same name and creates a
// fresh one with the fixed mapping, making the run idempotent with respect
// to schema.
func (p *Pipeline) recreateIndex(ctx context.Context) error {
	res, err := p.es.Indices.Exists([]string{p.index}, p.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("checking index %s: %w", p.index, err)
	}
	drain(res)

	if res.StatusCode == 200 {
		log.Printf("Index %s already exists; deleting and recreating", p.index)
		del, err := p.es.Indices.Delete([]string{p.index}, p.es.Indices.Delete.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("deleting index %s: %w", p.index, err)
		}
		defer drain(del)
		if del.IsError() {
			return fmt.Errorf("deleting index %s: %s", p.index, del.String())
		}
	}

	create, err := p.es.Indices.Create(p.index,
		p.es.Indices.Create.WithBody(strings.NewReader(indexBody)),
		p.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("creating index %s: %w", p.index, err)
	}
	defer drain(create)
	if create.IsError() {
		return fmt.Errorf("creating index %s: %s", p.index, create.String())
	}
	return nil
}

// refresh forces the index to become immediately queryable.
func (p *Pipeline) refresh(ctx context.Context) error {
	res, err := p.es.Indices.Refresh(
		p.es.Indices.Refresh.WithIndex(p.index),
		p.es.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("refreshing index %s: %w", p.index, err)
	}
	defer drain(res)
	if res.IsError() {
		return fmt.Errorf("refreshing index %s: %s", p.index, res.String())
	}
	return nil
}

func (p *Pipeline) count(ctx context.Context) (int64, error) {
	res, err := p.es.Count(
		p.es.Count.WithIndex(p.index),
		p.es.Count.WithContext(ctx),
	)
	if err != nil {
		return 0, fmt.Errorf("counting index %s: %w", p.index, err)
	}
	defer drain(res)
	if res.IsError() {
		return 0, fmt.Errorf("counting index %s: %s", p.index, res.String())
	}

	var out struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decoding count: %w", err)
	}
	return out.Count, nil
}

// LogReport writes the run summary the way the operator expects it: counts
// first, then up to three sample errors to adjust the dataset or mapping.
func LogReport(r *Report) {
	log.Printf("Indexed/updated: %d; total docs now: %d", r.Indexed, r.Total)
	if len(r.Errors) == 0 {
		return
	}
	log.Printf("Some documents failed to index (showing up to first 3):")
	for i, e := range r.Errors {
		if i == 3 {
			break
		}
		log.Printf("  %s: %s", e.ID, e.Reason)
	}
}

// drain consumes and closes a response body so the transport can reuse the
// connection.
func drain(res *esapi.Response) {
	if res != nil && res.Body != nil {
		io.Copy(io.Discard, res.Body)
		res.Body.Close()
	}
}
