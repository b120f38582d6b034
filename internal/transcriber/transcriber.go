package transcriber

import (
	"context"

	"github.com/voxlab/cv-transcriber/internal/audio"
)

// Engine is the common interface for all transcription backends. Transcribe
// returns the best single hypothesis for the buffer, trimmed of surrounding
// whitespace. Implementations are not assumed safe for concurrent calls;
// wrap them in Lazy to serialize inference.
type Engine interface {
	Transcribe(ctx context.Context, buf *audio.Buffer) (string, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Provider   string // "vosk" or "http"
	ServerURL  string
	Model      string
	SampleRate int
}
