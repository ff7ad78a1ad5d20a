package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Overflow policies for a bounded block queue.
const (
	OverflowBlock      = "block"
	OverflowDropOldest = "drop-oldest"
)

type Config struct {
	SampleRate     int     `yaml:"sampleRate"`
	BlockSize      int     `yaml:"blockSize"`
	ToneFrequency  float64 `yaml:"toneFrequency"`
	QueueCapacity  int     `yaml:"queueCapacity"`
	OverflowPolicy string  `yaml:"overflowPolicy"`
	BacklogWarn    int     `yaml:"backlogWarn"`
	Headless       bool    `yaml:"headless"`
	EditorOnly     bool    `yaml:"editorOnly"`
	AdminAddr      string  `yaml:"adminAddr"`
	WindowTitle    string  `yaml:"windowTitle"`
	LogDevelopment bool    `yaml:"logDevelopment"`
	// MaxBlocks stops the host after this many blocks; 0 runs until interrupted.
	MaxBlocks uint64 `yaml:"maxBlocks"`
	// StrictCallbacks refuses host capabilities the reference plugin never uses.
	StrictCallbacks bool `yaml:"strictCallbacks"`
}

// Default returns the reference configuration: 44.1 kHz, 10 ms blocks, 220 Hz tone.
func Default() *Config {
	return &Config{
		SampleRate:     44100,
		BlockSize:      44100 / 100,
		ToneFrequency:  220,
		OverflowPolicy: OverflowBlock,
		BacklogWarn:    8,
		WindowTitle:    "VST Host",
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// MIXLAB_CONFIG, and finally MIXLAB_* environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("MIXLAB_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	sampleRateSet := os.Getenv("MIXLAB_SAMPLE_RATE") != ""
	cfg.SampleRate = getEnvInt("MIXLAB_SAMPLE_RATE", cfg.SampleRate)
	if sampleRateSet && os.Getenv("MIXLAB_BLOCK_SIZE") == "" {
		cfg.BlockSize = cfg.SampleRate / 100
	}
	cfg.BlockSize = getEnvInt("MIXLAB_BLOCK_SIZE", cfg.BlockSize)
	cfg.ToneFrequency = getEnvFloat("MIXLAB_TONE_HZ", cfg.ToneFrequency)
	cfg.QueueCapacity = getEnvInt("MIXLAB_QUEUE_CAPACITY", cfg.QueueCapacity)
	cfg.OverflowPolicy = getEnv("MIXLAB_OVERFLOW", cfg.OverflowPolicy)
	cfg.BacklogWarn = getEnvInt("MIXLAB_BACKLOG_WARN", cfg.BacklogWarn)
	cfg.Headless = getEnvBool("MIXLAB_HEADLESS", cfg.Headless)
	cfg.EditorOnly = getEnvBool("MIXLAB_EDITOR_ONLY", cfg.EditorOnly)
	cfg.AdminAddr = getEnv("MIXLAB_ADMIN_ADDR", cfg.AdminAddr)
	cfg.WindowTitle = getEnv("MIXLAB_WINDOW_TITLE", cfg.WindowTitle)
	cfg.LogDevelopment = getEnvBool("MIXLAB_LOG_DEV", cfg.LogDevelopment)
	maxBlocks, err := getEnvUint("MIXLAB_MAX_BLOCKS", cfg.MaxBlocks)
	if err != nil {
		return nil, err
	}
	cfg.MaxBlocks = maxBlocks
	cfg.StrictCallbacks = getEnvBool("MIXLAB_STRICT_CALLBACKS", cfg.StrictCallbacks)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("block size must be positive, got %d", c.BlockSize)
	}
	if c.ToneFrequency <= 0 {
		return fmt.Errorf("tone frequency must be positive, got %g", c.ToneFrequency)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue capacity must not be negative, got %d", c.QueueCapacity)
	}
	switch c.OverflowPolicy {
	case OverflowBlock, OverflowDropOldest:
	default:
		return fmt.Errorf("unknown overflow policy %q", c.OverflowPolicy)
	}
	if c.EditorOnly && c.MaxBlocks > 0 {
		return fmt.Errorf("max blocks has no effect in editor-only mode")
	}
	if c.Headless && c.EditorOnly {
		return fmt.Errorf("headless and editor-only modes are mutually exclusive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvUint fails instead of falling back, so a negative count is never
// read as a huge one.
func getEnvUint(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, v)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
