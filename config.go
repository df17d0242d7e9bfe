package docqa

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/docqa/llm"
	"github.com/brunobiangulo/docqa/parser"
)

// Config holds all configuration for the docqa engine and server.
type Config struct {
	// DataDir holds the database and uploaded files unless DBPath or
	// UploadDir say otherwise. Defaults to ~/.docqa.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// DBPath is the full path to the SQLite database file.
	DBPath string `json:"db_path" yaml:"db_path"`

	// UploadDir is where uploaded documents are stored.
	UploadDir string `json:"upload_dir" yaml:"upload_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`

	Server     ServerConfig     `json:"server" yaml:"server"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	LLM        llm.Config       `json:"llm" yaml:"llm"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	// APIKey, when set, is required as a bearer token on every route but /health.
	APIKey         string `json:"api_key" yaml:"api_key"`
	CORSOrigins    string `json:"cors_origins" yaml:"cors_origins"`
	MaxUploadBytes int64  `json:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// ExtractionConfig configures the extraction chains.
type ExtractionConfig struct {
	PDFToText PDFToTextConfig `json:"pdftotext" yaml:"pdftotext"`
}

// PDFToTextConfig configures the external pdftotext fallback.
type PDFToTextConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	Path    string        `json:"path" yaml:"path"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConfig returns a Config with the production defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 50 << 20,
		},
		Extraction: ExtractionConfig{
			PDFToText: PDFToTextConfig{
				Enabled: true,
				Path:    "pdftotext",
				Timeout: 10 * time.Second,
			},
		},
		LLM: llm.DefaultConfig(),
	}
}

// LoadConfig builds a Config from defaults, an optional YAML file and the
// environment, in that order, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from DOCQA_* environment variables. The Gemini
// key also falls back to GEMINI_API_KEY.
func (c *Config) ApplyEnv() error {
	strs := []struct {
		env string
		dst *string
	}{
		{"DOCQA_DATA_DIR", &c.DataDir},
		{"DOCQA_DB_PATH", &c.DBPath},
		{"DOCQA_UPLOAD_DIR", &c.UploadDir},
		{"DOCQA_LOG_LEVEL", &c.LogLevel},
		{"DOCQA_ADDR", &c.Server.Addr},
		{"DOCQA_API_KEY", &c.Server.APIKey},
		{"DOCQA_CORS_ORIGINS", &c.Server.CORSOrigins},
		{"DOCQA_PDFTOTEXT_PATH", &c.Extraction.PDFToText.Path},
		{"DOCQA_LLM_BASE_URL", &c.LLM.BaseURL},
		{"DOCQA_LLM_MODEL", &c.LLM.Model},
		{"DOCQA_LLM_API_KEY", &c.LLM.APIKey},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}

	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if v := os.Getenv("DOCQA_PDFTOTEXT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: DOCQA_PDFTOTEXT: %v", ErrInvalidConfig, err)
		}
		c.Extraction.PDFToText.Enabled = b
	}
	if v := os.Getenv("DOCQA_MAX_UPLOAD_MB"); v != "" {
		mb, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: DOCQA_MAX_UPLOAD_MB: %v", ErrInvalidConfig, err)
		}
		c.Server.MaxUploadBytes = mb << 20
	}
	return nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if c.Extraction.PDFToText.Timeout < 0 {
		errs = append(errs, errors.New("extraction.pdftotext.timeout must not be negative"))
	}
	if c.LLM.Timeout < 0 || c.LLM.RetryDelay < 0 {
		errs = append(errs, errors.New("llm.timeout and llm.retry_delay must not be negative"))
	}
	if c.LLM.MaxChars < 0 {
		errs = append(errs, errors.New("llm.max_chars must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// SlogLevel returns the configured log level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
}

// ChainConfig maps the extraction settings onto the parser registry.
func (c Config) ChainConfig() parser.ChainConfig {
	return parser.ChainConfig{
		PDFToText:        c.Extraction.PDFToText.Enabled,
		PDFToTextPath:    c.Extraction.PDFToText.Path,
		PDFToTextTimeout: c.Extraction.PDFToText.Timeout,
	}
}

func (c Config) dataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docqa" // fallback to cwd
	}
	return filepath.Join(home, ".docqa")
}

// resolveDBPath computes the database path (DBPath > DataDir/docqa.db).
func (c Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.dataDir(), "docqa.db")
}

// resolveUploadDir computes the upload directory (UploadDir > DataDir/uploads).
func (c Config) resolveUploadDir() string {
	if c.UploadDir != "" {
		return c.UploadDir
	}
	return filepath.Join(c.dataDir(), "uploads")
}
