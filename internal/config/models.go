package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bryanchriswhite/drawfilter/internal/logger"
	"gopkg.in/yaml.v3"
)

// Source kinds
const (
	SourcePattern   = "pattern"
	SourceGStreamer = "gstreamer"
)

// Config represents the application configuration
type Config struct {
	ServerPort int          `json:"server_port" yaml:"server_port"`
	LogLevel   string       `json:"log_level" yaml:"log_level"`
	Filter     FilterConfig `json:"filter" yaml:"filter"`
	Source     SourceConfig `json:"source" yaml:"source"`
	Output     OutputConfig `json:"output" yaml:"output"`
}

// FilterConfig configures the draw stage
type FilterConfig struct {
	// AsyncDraw is reserved for a deferred drawing mode; drawing is
	// currently always synchronous.
	AsyncDraw     bool          `json:"async_draw" yaml:"async_draw"`
	HardwareDraw  bool          `json:"hardware_draw" yaml:"hardware_draw"`
	RectThickness int           `json:"rect_thickness" yaml:"rect_thickness"`
	MaxResultAge  time.Duration `json:"max_result_age" yaml:"max_result_age"`
	RegionID      int           `json:"region_id" yaml:"region_id"`
	PaletteIndex  int           `json:"palette_index" yaml:"palette_index"`
}

// SourceConfig selects where frames come from
type SourceConfig struct {
	Kind     string `json:"kind" yaml:"kind"`
	Pipeline string `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
	Width    int    `json:"width" yaml:"width"`
	Height   int    `json:"height" yaml:"height"`
	FPS      int    `json:"fps" yaml:"fps"`
}

// OutputConfig configures the MJPEG preview
type OutputConfig struct {
	Enabled     bool `json:"enabled" yaml:"enabled"`
	JPEGQuality int  `json:"jpeg_quality" yaml:"jpeg_quality"`
}

// DefaultFilter returns the stage defaults: software drawing, 2px outline,
// 133ms staleness, region 7, palette index 0x23.
func DefaultFilter() FilterConfig {
	return FilterConfig{
		RectThickness: 2,
		MaxResultAge:  133 * time.Millisecond,
		RegionID:      7,
		PaletteIndex:  0x23,
	}
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		ServerPort: 8080,
		LogLevel:   "info",
		Filter:     DefaultFilter(),
		Source: SourceConfig{
			Kind:   SourcePattern,
			Width:  1280,
			Height: 720,
			FPS:    30,
		},
		Output: OutputConfig{
			Enabled:     true,
			JPEGQuality: 80,
		},
	}
}

// Validate checks the values the stage cannot recover from at runtime
func (f FilterConfig) Validate() error {
	if f.RectThickness < 1 {
		return fmt.Errorf("%w: %s must be >= 1, got %d", ErrInvalidParam, KeyDrawRectThick, f.RectThickness)
	}
	if f.MaxResultAge <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidParam, KeyMaxResultAge, f.MaxResultAge)
	}
	if f.RegionID < 0 || f.RegionID > 0xFF {
		return fmt.Errorf("%w: %s out of range: %d", ErrInvalidParam, KeyRegionID, f.RegionID)
	}
	if f.PaletteIndex < 0 || f.PaletteIndex > 0xFF {
		return fmt.Errorf("%w: %s out of range: %d", ErrInvalidParam, KeyPaletteIndex, f.PaletteIndex)
	}
	return nil
}

// Validate checks the whole configuration
func (c *Config) Validate() error {
	if err := c.Filter.Validate(); err != nil {
		return err
	}
	switch c.Source.Kind {
	case SourcePattern, SourceGStreamer:
	default:
		return fmt.Errorf("%w: unknown source kind %q", ErrInvalidParam, c.Source.Kind)
	}
	if c.Source.Width <= 0 || c.Source.Height <= 0 || c.Source.Width%2 != 0 || c.Source.Height%2 != 0 {
		return fmt.Errorf("%w: source size must be positive and even, got %dx%d", ErrInvalidParam, c.Source.Width, c.Source.Height)
	}
	if c.Source.FPS <= 0 {
		return fmt.Errorf("%w: source fps must be positive, got %d", ErrInvalidParam, c.Source.FPS)
	}
	return nil
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/drawfilter/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "drawfilter", "config.yaml"), nil
}

// NewManager loads configFile, or the default path when empty. A missing
// file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		actualConfigPath = p
	}

	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Bool("hardware_draw", m.config.Filter.HardwareDraw).
		Int("rect_thickness", m.config.Filter.RectThickness).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration from disk. Fields missing from the file
// keep their defaults.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	log := logger.WithComponent("config")
	log.Debug().Str("path", m.configPath).Msg("Saving config")

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal config")
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		log.Error().Err(err).Str("path", m.configPath).Msg("Failed to write config")
		return err
	}

	log.Info().Str("path", m.configPath).Msg("Config saved successfully")
	return nil
}

// Update replaces the configuration after validating it
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// SetPort sets the server port in memory
func (m *Manager) SetPort(port int) {
	m.mu.Lock()
	m.config.ServerPort = port
	m.mu.Unlock()
}

// SetLogLevel sets the log level in memory
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	m.config.LogLevel = level
	m.mu.Unlock()
}

// SetHardwareDraw toggles the hardware path in memory
func (m *Manager) SetHardwareDraw(enabled bool) {
	m.mu.Lock()
	m.config.Filter.HardwareDraw = enabled
	m.mu.Unlock()
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
