package transcriber

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/voxlab/cv-transcriber/internal/audio"
)

// chunk of s16le samples streamed per websocket message, ~0.5s at 16kHz
const voskChunkSamples = 8000

// VoskEngine transcribes buffers against a Vosk websocket server. Each call
// opens its own connection: the server finalizes and drops the stream after
// EOF, so connections are not reusable across files.
type VoskEngine struct {
	serverURL  string
	sampleRate int
}

type voskResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

// NewVoskEngine verifies the server is reachable. This is the expensive load
// step: the Vosk server only accepts connections once its model is in memory.
func NewVoskEngine(serverURL string, sampleRate int) (*VoskEngine, error) {
	url := fmt.Sprintf("%s/ws?sample_rate=%d", serverURL, sampleRate)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Vosk server: %w", err)
	}
	conn.Close()

	return &VoskEngine{serverURL: serverURL, sampleRate: sampleRate}, nil
}

func (v *VoskEngine) Transcribe(ctx context.Context, buf *audio.Buffer) (string, error) {
	url := fmt.Sprintf("%s/ws?sample_rate=%d", v.serverURL, buf.Rate)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to connect to Vosk server: %w", err)
	}
	defer conn.Close()

	var full strings.Builder
	pcm := int16PCM(buf.Samples)

	for off := 0; off < len(pcm); off += voskChunkSamples * 2 {
		end := off + voskChunkSamples*2
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[off:end]); err != nil {
			return "", fmt.Errorf("failed to send audio to Vosk: %w", err)
		}
		text, err := v.readResult(conn)
		if err != nil {
			return "", err
		}
		appendText(&full, text)
	}

	// EOF flushes the recognizer and yields the final hypothesis
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"eof": 1}`)); err != nil {
		return "", fmt.Errorf("failed to send EOF to Vosk: %w", err)
	}
	text, err := v.readResult(conn)
	if err != nil {
		return "", err
	}
	appendText(&full, text)

	return strings.TrimSpace(full.String()), nil
}

// readResult reads one server message and returns its final text, if any.
// Partial hypotheses are discarded; only finalized segments accumulate.
func (v *VoskEngine) readResult(conn *websocket.Conn) (string, error) {
	_, message, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("failed to read Vosk result: %w", err)
	}
	var result voskResult
	if err := json.Unmarshal(message, &result); err != nil {
		return "", fmt.Errorf("failed to parse Vosk result: %w", err)
	}
	return result.Text, nil
}

func (v *VoskEngine) Close() error {
	return nil
}

func appendText(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString(" ")
	}
	b.WriteString(text)
}

// int16PCM converts mono float32 samples to little-endian s16 bytes, the
// format Vosk expects on the wire.
func int16PCM(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*32767)))
	}
	return out
}
