package asr

import (
	"context"
	"errors"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// unreachableCache returns a ResultCache backed by a Redis that is not
// there, for exercising the degraded paths.
func unreachableCache() *ResultCache {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	return NewResultCache(client, "asr-test:", time.Minute)
}

func TestContentKeyStable(t *testing.T) {
	a := ContentKey([]byte("same bytes"))
	b := ContentKey([]byte("same bytes"))
	if a != b {
		t.Errorf("Expected identical keys for identical bytes, got %q and %q", a, b)
	}
	if c := ContentKey([]byte("other bytes")); c == a {
		t.Errorf("Expected distinct key for distinct bytes, got %q twice", c)
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(a))
	}
}

func TestCacheErrorsSurfaceWithoutPanic(t *testing.T) {
	cache := unreachableCache()
	ctx := context.Background()

	if _, err := cache.Lookup(ctx, "deadbeef"); err == nil {
		t.Error("Expected Lookup against unreachable Redis to fail")
	}
	if err := cache.Store(ctx, "deadbeef", Result{Text: "hi", Duration: 1.5}); err == nil {
		t.Error("Expected Store against unreachable Redis to fail")
	}
}

func TestTranscribeSucceedsWhenCacheUnavailable(t *testing.T) {
	norm := &fakeNormalizer{}
	engine := &fakeEngine{text: "from the engine"}
	svc := NewService(norm, engine).WithTempDir(t.TempDir()).WithCache(unreachableCache())

	// Lookup and Store failures are logged, never fatal: the request still
	// goes through the engine.
	res, err := svc.Transcribe(context.Background(), upload("clip.mp3", "bytes"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if res.Text != "from the engine" {
		t.Errorf("Expected engine text, got %q", res.Text)
	}
	if engine.calls != 1 {
		t.Errorf("Expected one engine call, got %d", engine.calls)
	}
}

func TestTranscribeChecksFormatBeforeCache(t *testing.T) {
	// A broken cache must not dilute the format check: unsupported uploads
	// are rejected before the cache or the engine is consulted.
	engine := &fakeEngine{text: "never reached"}
	svc := NewService(&fakeNormalizer{}, engine).WithTempDir(t.TempDir()).WithCache(unreachableCache())

	_, err := svc.Transcribe(context.Background(), upload("notes.txt", "plain text"))
	var invalid *InvalidRequestError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidRequestError, got %v", err)
	}
	if engine.calls != 0 {
		t.Errorf("Expected no engine calls, got %d", engine.calls)
	}
}

// hitStore always reports a cached result; storeStore records the key of a
// stored result for miss-path assertions.
type hitStore struct {
	res Result
}

func (h *hitStore) Lookup(ctx context.Context, key string) (*Result, error) { return &h.res, nil }
func (h *hitStore) Store(ctx context.Context, key string, res Result) error { return nil }

type missStore struct {
	storedKey string
	storedRes Result
}

func (m *missStore) Lookup(ctx context.Context, key string) (*Result, error) { return nil, nil }
func (m *missStore) Store(ctx context.Context, key string, res Result) error {
	m.storedKey = key
	m.storedRes = res
	return nil
}

func TestTranscribeReturnsCachedResult(t *testing.T) {
	engine := &fakeEngine{text: "never reached"}
	store := &hitStore{res: Result{Text: "cached text", Duration: 2.5}}
	svc := NewService(&fakeNormalizer{}, engine).WithTempDir(t.TempDir()).WithCache(store)

	res, err := svc.Transcribe(context.Background(), upload("clip.mp3", "bytes"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if res.Text != "cached text" || res.Duration != 2.5 {
		t.Errorf("Expected cached result, got %+v", res)
	}
	if engine.calls != 0 {
		t.Errorf("Expected cache hit to skip the engine, got %d calls", engine.calls)
	}
}

func TestTranscribeStoresOnMiss(t *testing.T) {
	engine := &fakeEngine{text: "fresh text"}
	store := &missStore{}
	svc := NewService(&fakeNormalizer{}, engine).WithTempDir(t.TempDir()).WithCache(store)

	if _, err := svc.Transcribe(context.Background(), upload("clip.mp3", "bytes")); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if store.storedKey != ContentKey([]byte("bytes")) {
		t.Errorf("Expected content-hash key, got %q", store.storedKey)
	}
	if store.storedRes.Text != "fresh text" {
		t.Errorf("Expected fresh result stored, got %+v", store.storedRes)
	}
}
