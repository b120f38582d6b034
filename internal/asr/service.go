package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/voxlab/cv-transcriber/internal/audio"
	"github.com/voxlab/cv-transcriber/internal/transcriber"
)

// Upload is one audio file handed to the service.
type Upload struct {
	Filename string
	Data     io.Reader
}

// Result is the immutable outcome of a successful transcription.
type Result struct {
	Text     string
	Duration float64
}

// Normalizer decodes a staged file into a mono buffer at the target rate.
// Satisfied by *audio.Normalizer.
type Normalizer interface {
	Normalize(ctx context.Context, path string) (*audio.Buffer, error)
}

// ResultStore memoizes results keyed by content hash. Satisfied by
// *ResultCache. Lookup returns (nil, nil) on a miss.
type ResultStore interface {
	Lookup(ctx context.Context, key string) (*Result, error)
	Store(ctx context.Context, key string, res Result) error
}

// Service turns one uploaded audio file into text plus duration. It owns
// the staging of the upload to a scoped temp directory and guarantees the
// directory is released on every exit path. The engine is shared process
// state; the service itself keeps no cross-call state.
type Service struct {
	normalizer Normalizer
	engine     transcriber.Engine
	cache      ResultStore // optional
	tempDir    string      // base for staging dirs, "" means system temp
}

func NewService(normalizer Normalizer, engine transcriber.Engine) *Service {
	return &Service{normalizer: normalizer, engine: engine}
}

// WithCache enables result memoization. A nil cache leaves it disabled.
func (s *Service) WithCache(cache ResultStore) *Service {
	s.cache = cache
	return s
}

// WithTempDir overrides the staging location, mainly for tests.
func (s *Service) WithTempDir(dir string) *Service {
	s.tempDir = dir
	return s
}

// Transcribe validates, stages, normalizes and transcribes one upload.
// Failures are always one of InvalidRequestError, TranscriptionError or
// CleanupError. A cleanup failure is reported even when transcription
// succeeded, so a leaking staging directory is never silent.
func (s *Service) Transcribe(ctx context.Context, up Upload) (Result, error) {
	// Name-based format check, before any bytes are read or staged.
	if !audio.SupportedFormat(up.Filename) {
		return Result{}, NewUnsupportedFormatError(&audio.ErrUnsupportedFormat{Filename: up.Filename})
	}

	data, err := io.ReadAll(up.Data)
	if err != nil {
		return Result{}, &TranscriptionError{Cause: fmt.Errorf("reading upload: %w", err)}
	}

	var cacheKey string
	if s.cache != nil {
		cacheKey = ContentKey(data)
		if cached, err := s.cache.Lookup(ctx, cacheKey); err != nil {
			log.Printf("Result cache lookup failed: %v", err)
		} else if cached != nil {
			return *cached, nil
		}
	}

	res, terr := s.stageAndTranscribe(ctx, up.Filename, data)
	if terr != nil {
		return Result{}, terr
	}

	if s.cache != nil {
		if err := s.cache.Store(ctx, cacheKey, res); err != nil {
			log.Printf("Result cache store failed: %v", err)
		}
	}
	return res, nil
}

func (s *Service) stageAndTranscribe(ctx context.Context, filename string, data []byte) (Result, error) {
	tmpdir, err := os.MkdirTemp(s.tempDir, "asr_")
	if err != nil {
		return Result{}, &TranscriptionError{Cause: fmt.Errorf("staging dir: %w", err)}
	}
	tmpPath := filepath.Join(tmpdir, filepath.Base(filename))

	res, terr := func() (Result, error) {
		if err := os.WriteFile(tmpPath, data, 0644); err != nil {
			return Result{}, &TranscriptionError{Cause: fmt.Errorf("staging upload: %w", err)}
		}

		buf, err := s.normalizer.Normalize(ctx, tmpPath)
		if err != nil {
			var unsupported *audio.ErrUnsupportedFormat
			if errors.As(err, &unsupported) {
				return Result{}, NewUnsupportedFormatError(unsupported)
			}
			return Result{}, &TranscriptionError{Cause: err}
		}

		text, err := s.engine.Transcribe(ctx, buf)
		if err != nil {
			return Result{}, &TranscriptionError{Cause: err}
		}
		return Result{Text: text, Duration: buf.Duration()}, nil
	}()

	// Release the staged file and its directory on every path. A cleanup
	// failure outranks the primary result: a leak must surface.
	if cerr := cleanup(tmpPath, tmpdir); cerr != nil {
		if terr != nil {
			log.Printf("Transcription of %s also failed: %v", filename, terr)
		}
		return Result{}, cerr
	}
	return res, terr
}

func cleanup(tmpPath, tmpdir string) error {
	if _, err := os.Stat(tmpPath); err == nil {
		if err := os.Remove(tmpPath); err != nil {
			return &CleanupError{Path: tmpPath, Cause: err}
		}
	}
	if err := os.Remove(tmpdir); err != nil {
		return &CleanupError{Path: tmpdir, Cause: err}
	}
	return nil
}
