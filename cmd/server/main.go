package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/voxlab/cv-transcriber/internal/asr"
	"github.com/voxlab/cv-transcriber/internal/audio"
	"github.com/voxlab/cv-transcriber/internal/config"
	"github.com/voxlab/cv-transcriber/internal/server"
	"github.com/voxlab/cv-transcriber/internal/transcriber"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Using STT provider: %s (model %q, %d Hz)",
		cfg.Engine.Provider, cfg.Engine.Model, cfg.Engine.SampleRate)

	engine, err := transcriber.New(transcriber.Config{
		Provider:   cfg.Engine.Provider,
		ServerURL:  cfg.Engine.ServerURL,
		Model:      cfg.Engine.Model,
		SampleRate: cfg.Engine.SampleRate,
	})
	if err != nil {
		log.Fatalf("Failed to configure engine: %v", err)
	}
	defer engine.Close()

	service := asr.NewService(audio.NewNormalizer(cfg.Engine.SampleRate), engine).
		WithTempDir(cfg.Staging.TempDir)

	if cfg.Cache.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
		service = service.WithCache(asr.NewResultCache(client, cfg.Cache.KeyPrefix, ttl))
		log.Printf("Result cache enabled at %s", cfg.Cache.RedisAddr)
	}

	srv := server.New(server.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, service)

	// Start server in background
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")
	srv.Stop()
}
