package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Engine struct {
		Provider   string `yaml:"provider"` // "vosk" or "http"
		ServerURL  string `yaml:"server_url"`
		Model      string `yaml:"model"`
		SampleRate int    `yaml:"sample_rate"`
	} `yaml:"engine"`
	Staging struct {
		TempDir string `yaml:"temp_dir"`
	} `yaml:"staging"`
	Cache struct {
		Enabled    bool   `yaml:"enabled"`
		RedisAddr  string `yaml:"redis_addr"`
		KeyPrefix  string `yaml:"key_prefix"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"cache"`
	Search struct {
		URL   string `yaml:"url"`
		Index string `yaml:"index"`
	} `yaml:"search"`
}

// Load reads the yaml file, fills defaults and applies environment
// overrides (STT_MODEL, SAMPLE_RATE, ES_HOST). A missing file is not an
// error; the defaults plus environment stand alone.
func Load(filename string) (*Config, error) {
	cfg := &Config{}

	if file, err := os.Open(filename); err == nil {
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", filename, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8001
	}
	if c.Engine.Provider == "" {
		c.Engine.Provider = "http"
	}
	if c.Engine.SampleRate == 0 {
		c.Engine.SampleRate = 16000
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "asr:"
	}
	if c.Search.URL == "" {
		c.Search.URL = "http://localhost:9200"
	}
	if c.Search.Index == "" {
		c.Search.Index = "cv-transcriptions"
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("STT_MODEL"); v != "" {
		c.Engine.Model = v
	}
	if v := os.Getenv("SAMPLE_RATE"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SAMPLE_RATE %q: %w", v, err)
		}
		c.Engine.SampleRate = rate
	}
	if v := os.Getenv("ES_HOST"); v != "" {
		c.Search.URL = v
	}
	return nil
}
