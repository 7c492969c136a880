// Package config loads docuwrite settings from DOCUWRITE_* environment
// variables, an optional YAML or TOML file, and command line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Sources and output
	Input     string `yaml:"input" toml:"input"`
	OrderFile string `yaml:"order_file" toml:"order_file"`
	OutputDir string `yaml:"output_dir" toml:"output_dir"`
	Output    string `yaml:"output" toml:"output"` // rendered file name inside OutputDir
	Title     string `yaml:"title" toml:"title"`

	// TODO list
	TodoMessage string `yaml:"todo_message" toml:"todo_message"`

	// Document rendering
	Engine         string   `yaml:"engine" toml:"engine"`
	PandocBin      string   `yaml:"pandoc_bin" toml:"pandoc_bin"`
	PDFEngine      string   `yaml:"pdf_engine" toml:"pdf_engine"`
	HeaderIncludes []string `yaml:"header_includes" toml:"header_includes"`
	Extensions     []string `yaml:"extensions" toml:"extensions"`
	Stylesheet     string   `yaml:"stylesheet" toml:"stylesheet"`
	ResourcePaths  []string `yaml:"resource_paths" toml:"resource_paths"`
	TOC            bool     `yaml:"toc" toml:"toc"`
	TOCDepth       int      `yaml:"toc_depth" toml:"toc_depth"`
	ListOfFigures  bool     `yaml:"list_of_figures" toml:"list_of_figures"`
	ListOfTables   bool     `yaml:"list_of_tables" toml:"list_of_tables"`
	NumberSections bool     `yaml:"number_sections" toml:"number_sections"`
	MarginInches   float64  `yaml:"margin_inches" toml:"margin_inches"`

	// Diagrams
	MermaidURL    string        `yaml:"mermaid_url" toml:"mermaid_url"`
	MermaidScript string        `yaml:"mermaid_script" toml:"mermaid_script"`
	MermaidTheme  string        `yaml:"mermaid_theme" toml:"mermaid_theme"`
	RenderTimeout time.Duration `yaml:"render_timeout" toml:"render_timeout"`
	RenderRetries int           `yaml:"render_retries" toml:"render_retries"`
	WriteSource   bool          `yaml:"write_source" toml:"write_source"`
	CachePath     string        `yaml:"cache_path" toml:"cache_path"`       // empty disables the figure cache
	CacheMaxAge   time.Duration `yaml:"cache_max_age" toml:"cache_max_age"` // entries unused for longer are pruned at startup

	// Browser
	BrowserURL string `yaml:"browser_url" toml:"browser_url"`
	BrowserBin string `yaml:"browser_bin" toml:"browser_bin"`
	NoSandbox  bool   `yaml:"no_sandbox" toml:"no_sandbox"`

	// Concurrency
	Jobs          int `yaml:"jobs" toml:"jobs"`
	RenderWorkers int `yaml:"render_workers" toml:"render_workers"`

	// Source conversion
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext" toml:"pdf_fallback_pdftotext"`

	// Build service
	Port           string        `yaml:"port" toml:"port"`
	APIKey         string        `yaml:"api_key" toml:"api_key"`
	WorkDir        string        `yaml:"work_dir" toml:"work_dir"`
	WorkerCount    int           `yaml:"worker_count" toml:"worker_count"`
	MaxQueueSize   int           `yaml:"max_queue_size" toml:"max_queue_size"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" toml:"max_upload_bytes"`
	JobTTL         time.Duration `yaml:"job_ttl" toml:"job_ttl"`

	// Manifest publishing
	PublishURL    string `yaml:"publish_url" toml:"publish_url"`
	PublishAPIKey string `yaml:"publish_api_key" toml:"publish_api_key"`

	// Logging
	LogFormat string `yaml:"log_format" toml:"log_format"`
	LogLevel  string `yaml:"log_level" toml:"log_level"`
}

// Engines accepted by Validate.
var Engines = []string{"pandoc", "html", "chrome"}

func Load() Config {
	cfg := Config{
		Input:     os.Getenv("DOCUWRITE_INPUT"),
		OrderFile: envOr("DOCUWRITE_ORDER_FILE", ".order"),
		OutputDir: envOr("DOCUWRITE_OUTPUT_DIR", "output"),
		Output:    envOr("DOCUWRITE_OUTPUT", "output.pdf"),
		Title:     envOr("DOCUWRITE_TITLE", "Documentation"),

		TodoMessage: envOr("DOCUWRITE_TODO_MESSAGE", "The following items still need attention."),

		Engine:         envOr("DOCUWRITE_ENGINE", "pandoc"),
		PandocBin:      envOr("DOCUWRITE_PANDOC_BIN", "pandoc"),
		PDFEngine:      envOr("DOCUWRITE_PDF_ENGINE", "xelatex"),
		HeaderIncludes: envList("DOCUWRITE_HEADER_INCLUDES"),
		Extensions:     envList("DOCUWRITE_EXTENSIONS"),
		Stylesheet:     os.Getenv("DOCUWRITE_STYLESHEET"),
		ResourcePaths:  envList("DOCUWRITE_RESOURCE_PATHS"),
		TOC:            envBool("DOCUWRITE_TOC", true),
		TOCDepth:       envInt("DOCUWRITE_TOC_DEPTH", 3),
		ListOfFigures:  envBool("DOCUWRITE_LIST_OF_FIGURES", true),
		ListOfTables:   envBool("DOCUWRITE_LIST_OF_TABLES", true),
		NumberSections: envBool("DOCUWRITE_NUMBER_SECTIONS", true),
		MarginInches:   envFloat("DOCUWRITE_MARGIN_INCHES", 1),

		MermaidURL:    os.Getenv("DOCUWRITE_MERMAID_URL"),
		MermaidScript: os.Getenv("DOCUWRITE_MERMAID_SCRIPT"),
		MermaidTheme:  envOr("DOCUWRITE_MERMAID_THEME", "default"),
		RenderTimeout: envDuration("DOCUWRITE_RENDER_TIMEOUT", 30*time.Second),
		RenderRetries: envInt("DOCUWRITE_RENDER_RETRIES", 3),
		WriteSource:   envBool("DOCUWRITE_WRITE_SOURCE", true),
		CachePath:     os.Getenv("DOCUWRITE_CACHE_PATH"),
		CacheMaxAge:   envDuration("DOCUWRITE_CACHE_MAX_AGE", 30*24*time.Hour),

		BrowserURL: os.Getenv("DOCUWRITE_BROWSER_URL"),
		BrowserBin: os.Getenv("DOCUWRITE_BROWSER_BIN"),
		NoSandbox:  envBool("DOCUWRITE_NO_SANDBOX", false),

		Jobs:          envInt("DOCUWRITE_JOBS", 4),
		RenderWorkers: envInt("DOCUWRITE_RENDER_WORKERS", 2),

		PDFFallbackPdftotext: envBool("DOCUWRITE_PDF_FALLBACK_PDFTOTEXT", true),

		Port:           envOr("DOCUWRITE_PORT", "8090"),
		APIKey:         os.Getenv("DOCUWRITE_API_KEY"),
		WorkDir:        envOr("DOCUWRITE_WORK_DIR", filepath.Join(os.TempDir(), "docuwrite")),
		WorkerCount:    envInt("DOCUWRITE_WORKER_COUNT", 2),
		MaxQueueSize:   envInt("DOCUWRITE_MAX_QUEUE_SIZE", 50),
		MaxUploadBytes: envInt64("DOCUWRITE_MAX_UPLOAD_BYTES", 52428800), // 50MB
		JobTTL:         envDuration("DOCUWRITE_JOB_TTL", 1*time.Hour),

		PublishURL:    os.Getenv("DOCUWRITE_PUBLISH_URL"),
		PublishAPIKey: os.Getenv("DOCUWRITE_PUBLISH_API_KEY"),

		LogFormat: envOr("DOCUWRITE_LOG_FORMAT", "text"),
		LogLevel:  envOr("DOCUWRITE_LOG_LEVEL", "info"),
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults replaces non-positive limits with their defaults.
func (c *Config) applyDefaults() {
	if c.Jobs <= 0 {
		c.Jobs = 4
	}
	if c.RenderWorkers <= 0 {
		c.RenderWorkers = 2
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 30 * time.Second
	}
	if c.RenderRetries < 0 {
		c.RenderRetries = 0
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 2
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 50
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 52428800
	}
	if c.JobTTL <= 0 {
		c.JobTTL = 1 * time.Hour
	}
}

// LoadFile overlays the settings of a .yaml, .yml or .toml file. Keys absent
// from the file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	c.applyDefaults()
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if !contains(Engines, c.Engine) {
		errs = append(errs, fmt.Errorf("engine must be one of %s, got %q", strings.Join(Engines, ", "), c.Engine))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output dir is required"))
	}
	if c.Output == "" || filepath.Base(c.Output) != c.Output {
		errs = append(errs, fmt.Errorf("output must be a file name, got %q", c.Output))
	}
	if c.TOCDepth < 1 || c.TOCDepth > 6 {
		errs = append(errs, fmt.Errorf("toc depth must be between 1 and 6, got %d", c.TOCDepth))
	}
	if c.MarginInches < 0 {
		errs = append(errs, fmt.Errorf("margin must not be negative, got %v", c.MarginInches))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// ValidateServe checks the settings the build service needs on top of
// Validate.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("DOCUWRITE_API_KEY is required")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
