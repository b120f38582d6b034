package transcriber

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/voxlab/cv-transcriber/internal/audio"
)

// Lazy defers the expensive backend load until the first Transcribe call
// and guarantees it runs at most once for the process lifetime, no matter
// how many requests race on first use. A load failure is latched so later
// calls fail fast instead of re-triggering a broken load.
//
// Inference itself is serialized with a mutex: the underlying engines are
// not reentrant.
type Lazy struct {
	factory func() (Engine, error)

	once    sync.Once
	loadErr error
	engine  Engine

	mu sync.Mutex // serializes Transcribe on the shared engine
}

// NewLazy wraps a backend factory. The factory is invoked once, on demand.
func NewLazy(factory func() (Engine, error)) *Lazy {
	return &Lazy{factory: factory}
}

// New builds the configured backend behind a Lazy wrapper.
func New(cfg Config) (*Lazy, error) {
	var factory func() (Engine, error)
	switch cfg.Provider {
	case "vosk":
		factory = func() (Engine, error) {
			return NewVoskEngine(cfg.ServerURL, cfg.SampleRate)
		}
	case "http":
		factory = func() (Engine, error) {
			return NewHTTPEngine(cfg.ServerURL, cfg.Model, cfg.SampleRate), nil
		}
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	return NewLazy(factory), nil
}

func (l *Lazy) load() error {
	l.once.Do(func() {
		start := time.Now()
		engine, err := l.factory()
		// Publish under mu so Close, which does not go through the once
		// barrier, sees a consistent engine.
		l.mu.Lock()
		l.engine, l.loadErr = engine, err
		l.mu.Unlock()
		if err == nil {
			log.Printf("Transcription engine loaded in %v", time.Since(start))
		}
	})
	return l.loadErr
}

func (l *Lazy) Transcribe(ctx context.Context, buf *audio.Buffer) (string, error) {
	if err := l.load(); err != nil {
		return "", fmt.Errorf("engine load: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine.Transcribe(ctx, buf)
}

func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.engine == nil {
		return nil
	}
	return l.engine.Close()
}
