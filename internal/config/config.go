package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"oneverse/internal/db"
)

type Backend string

const (
	BackendGemini Backend = "gemini"
	BackendOpenAI Backend = "openai"
)

const LogFileName = "oneverse.log"

type Config struct {
	// Storage
	DBPath    string `env:"ONEVERSE_DB_PATH"`
	ExportDir string `env:"ONEVERSE_EXPORT_DIR" envDefault:"."`

	// Logging
	LogFile  string `env:"ONEVERSE_LOG_FILE"`
	LogLevel string `env:"ONEVERSE_LOG_LEVEL" envDefault:"info"`

	// Provider
	Backend        Backend       `env:"ONEVERSE_BACKEND" envDefault:"gemini"`
	APIKey         string        `env:"ONEVERSE_API_KEY"`
	BaseURL        string        `env:"ONEVERSE_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	RequestTimeout time.Duration `env:"ONEVERSE_REQUEST_TIMEOUT" envDefault:"2m"`

	// Models; empty means the backend default
	ChatModel   string `env:"ONEVERSE_CHAT_MODEL"`
	WriterModel string `env:"ONEVERSE_WRITER_MODEL"`
	CodeModel   string `env:"ONEVERSE_CODE_MODEL"`
	ImageModel  string `env:"ONEVERSE_IMAGE_MODEL"`
}

type modelDefaults struct {
	chat, writer, code, image string
}

var defaults = map[Backend]modelDefaults{
	BackendGemini: {
		chat:   "gemini-2.5-flash",
		writer: "gemini-2.5-flash",
		code:   "gemini-2.5-pro",
		image:  "imagen-4.0-generate-001",
	},
	BackendOpenAI: {
		chat:   "google/gemini-2.5-flash",
		writer: "google/gemini-2.5-flash",
		code:   "google/gemini-2.5-pro",
		image:  "dall-e-3",
	},
}

// Override adjusts the parsed environment, e.g. from command line flags
type Override func(*Config)

// Load parses the environment, applies overrides and then fills defaults, so
// a backend chosen by an override still gets its own default models.
func Load(overrides ...Override) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolve() error {
	d, ok := defaults[c.Backend]
	if !ok {
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendGemini, BackendOpenAI)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative, got %s", c.RequestTimeout)
	}

	if c.DBPath == "" || c.LogFile == "" {
		dir, err := db.DefaultDir()
		if err != nil {
			return fmt.Errorf("resolve config directory: %w", err)
		}
		if c.DBPath == "" {
			c.DBPath = filepath.Join(dir, db.DBFileName)
		}
		if c.LogFile == "" {
			c.LogFile = filepath.Join(dir, LogFileName)
		}
	}

	c.ChatModel = orDefault(c.ChatModel, d.chat)
	c.WriterModel = orDefault(c.WriterModel, d.writer)
	c.CodeModel = orDefault(c.CodeModel, d.code)
	c.ImageModel = orDefault(c.ImageModel, d.image)
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
