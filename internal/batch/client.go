package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client calls the transcription service over its HTTP boundary, one
// multipart upload per audio file.
type Client struct {
	endpoint string
	c        *http.Client
}

// Transcription is the service's per-file response. Duration arrives as a
// string formatted to two decimal places.
type Transcription struct {
	Text     string `json:"transcription"`
	Duration string `json:"duration"`
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		c:        &http.Client{Timeout: timeout},
	}
}

// Transcribe posts the audio file at path and decodes the response. Any
// transport error, non-success status or malformed body is returned as an
// error for the caller to record.
func (cl *Client) Transcribe(ctx context.Context, path string) (Transcription, error) {
	var out Transcription

	f, err := os.Open(path)
	if err != nil {
		return out, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return out, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return out, fmt.Errorf("copy audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return out, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cl.endpoint, &body)
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := cl.c.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		const maxErr = 4096
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErr))
		return out, fmt.Errorf("asr %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("asr decode: %w", err)
	}
	return out, nil
}
