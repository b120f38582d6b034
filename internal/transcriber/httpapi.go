package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxlab/cv-transcriber/internal/audio"
)

// HTTPEngine posts raw PCM to an inference server and reads back the
// hypothesis. It fits wav2vec2-style servers that hold the model in memory
// and expose a single transcribe endpoint.
type HTTPEngine struct {
	serverURL  string
	model      string
	sampleRate int
	client     *http.Client
}

type httpEngineResponse struct {
	Text string `json:"text"`
}

func NewHTTPEngine(serverURL, model string, sampleRate int) *HTTPEngine {
	return &HTTPEngine{
		serverURL:  strings.TrimRight(serverURL, "/"),
		model:      model,
		sampleRate: sampleRate,
		client:     &http.Client{Timeout: 5 * time.Minute},
	}
}

func (h *HTTPEngine) Transcribe(ctx context.Context, buf *audio.Buffer) (string, error) {
	url := fmt.Sprintf("%s/transcribe?sample_rate=%d", h.serverURL, buf.Rate)
	if h.model != "" {
		url += "&model=" + h.model
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(audio.EncodePCM(buf)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("inference %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out httpEngineResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("inference decode: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}

func (h *HTTPEngine) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
