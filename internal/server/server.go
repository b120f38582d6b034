package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/voxlab/cv-transcriber/internal/asr"
)

type Config struct {
	Host string
	Port int
}

// Server exposes the transcription service over HTTP: POST /asr for one
// multipart audio upload, GET /ping as a health check.
type Server struct {
	config   Config
	service  *asr.Service
	httpSrv  *http.Server
	listener net.Listener
}

type asrResponse struct {
	Transcription string `json:"transcription"`
	Duration      string `json:"duration"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func New(config Config, service *asr.Service) *Server {
	s := &Server{config: config, service: service}

	mux := http.NewServeMux()
	mux.HandleFunc("/asr", s.handleASR)
	mux.HandleFunc("/ping", s.handlePing)
	s.httpSrv = &http.Server{Handler: mux}

	return s
}

// Start binds the listener and serves until Stop is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	log.Printf("ASR server listening on %s", addr)
	if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// Handler exposes the mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, "pong")
}

func (s *Server) handleASR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reqID := uuid.New()
	start := time.Now()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Missing file field in multipart body."})
		return
	}
	defer file.Close()

	log.Printf("Request %s: transcribing %s", reqID, header.Filename)

	res, err := s.service.Transcribe(r.Context(), asr.Upload{Filename: header.Filename, Data: file})
	if err != nil {
		status := http.StatusInternalServerError
		var invalid *asr.InvalidRequestError
		if errors.As(err, &invalid) {
			status = http.StatusBadRequest
		}
		log.Printf("Request %s: failed (%d): %v", reqID, status, err)
		writeJSON(w, status, errorResponse{Detail: err.Error()})
		return
	}

	log.Printf("Request %s: done in %v (%.2fs of audio)", reqID, time.Since(start), res.Duration)
	writeJSON(w, http.StatusOK, asrResponse{
		Transcription: res.Text,
		Duration:      fmt.Sprintf("%.2f", res.Duration),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
