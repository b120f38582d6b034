package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// SupportedExtensions is the allow-list of container/codec extensions the
// normalizer will accept. The check is purely name-based and happens before
// any file I/O.
var SupportedExtensions = []string{".mp3", ".wav", ".flac", ".ogg", ".webm", ".opus"}

// ErrUnsupportedFormat is returned when a file name does not carry one of
// the supported audio extensions.
type ErrUnsupportedFormat struct {
	Filename string
}

func (e *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Filename)
}

// SupportedFormat reports whether the file name ends in one of the accepted
// audio extensions. The comparison is case-insensitive.
func SupportedFormat(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Buffer holds a mono audio signal at a fixed sample rate.
type Buffer struct {
	Samples []float32
	Rate    int
}

// Duration reports the signal length in seconds, measured on the resampled
// signal so it is expressed in the same rate used for transcription.
func (b *Buffer) Duration() float64 {
	if b.Rate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.Rate)
}

// Normalizer decodes supported audio containers into mono float32 buffers
// at a fixed target rate using ffmpeg.
type Normalizer struct {
	TargetRate int
	FFmpegPath string // defaults to "ffmpeg" on PATH
}

func NewNormalizer(targetRate int) *Normalizer {
	return &Normalizer{TargetRate: targetRate, FFmpegPath: "ffmpeg"}
}

// Normalize decodes the file at path, downmixes to mono and resamples to
// the target rate. The source file is only read, never modified.
func (n *Normalizer) Normalize(ctx context.Context, path string) (*Buffer, error) {
	if !SupportedFormat(path) {
		return nil, &ErrUnsupportedFormat{Filename: filepath.Base(path)}
	}

	// ffmpeg -i input -f f32le -ac 1 -ar rate -
	cmd := exec.CommandContext(ctx, n.ffmpeg(),
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "f32le",
		"-ac", "1",
		"-ar", strconv.Itoa(n.TargetRate),
		"-",
	)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w: %s", filepath.Base(path), err, strings.TrimSpace(errBuf.String()))
	}

	return DecodePCM(out.Bytes(), n.TargetRate)
}

func (n *Normalizer) ffmpeg() string {
	if n.FFmpegPath != "" {
		return n.FFmpegPath
	}
	return "ffmpeg"
}

// DecodePCM converts raw little-endian float32 PCM into a Buffer.
func DecodePCM(raw []byte, rate int) (*Buffer, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("raw pcm length %d is not a multiple of 4", len(raw))
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return &Buffer{Samples: samples, Rate: rate}, nil
}

// EncodePCM renders the buffer back to raw little-endian float32 bytes, the
// wire format the inference backends consume.
func EncodePCM(b *Buffer) []byte {
	raw := make([]byte, len(b.Samples)*4)
	for i, s := range b.Samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(s))
	}
	return raw
}
