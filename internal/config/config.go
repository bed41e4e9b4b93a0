// Package config provides configuration management for the controller.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config represents the application configuration
type Config struct {
	// Listener contains the pipe settings
	Listener ListenerConfig `json:"listener"`

	// Window contains the game window settings
	Window WindowConfig `json:"window"`

	// Input contains dispatcher timing
	Input InputConfig `json:"input"`

	// General contains general application settings
	General GeneralConfig `json:"general"`
}

// ListenerConfig describes how to reach the injected listener
type ListenerConfig struct {
	// PipeName is the named pipe created by the listener
	PipeName string `json:"pipe_name"`

	// WriteTimeoutMS bounds a single write to the pipe
	WriteTimeoutMS int `json:"write_timeout_ms"`

	// EnableHooksOnConnect installs every hook right after connecting
	EnableHooksOnConnect bool `json:"enable_hooks_on_connect"`
}

// WindowConfig describes the target window
type WindowConfig struct {
	// Title is the exact window caption
	Title string `json:"title"`

	// OffsetX and OffsetY shift every logical coordinate, for builds whose
	// canvas is not at the window origin (web vs. standalone)
	OffsetX int `json:"offset_x"`
	OffsetY int `json:"offset_y"`

	// HandleCacheSeconds is how long a resolved window handle is reused
	HandleCacheSeconds int `json:"handle_cache_seconds"`
}

// InputConfig tunes the dispatcher
type InputConfig struct {
	// ShortSleepMS is the pause between posting an event and restoring state
	ShortSleepMS int `json:"short_sleep_ms"`

	// SettleMS is an optional pause after each spoof barrier
	SettleMS int `json:"settle_ms"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// LogLevel is a logrus level name
	LogLevel string `json:"log_level"`

	// LogFile is an optional file that receives a copy of the log
	LogFile string `json:"log_file,omitempty"`

	// APIEnabled enables the local HTTP control API in serve mode
	APIEnabled bool `json:"api_enabled"`

	// APIPort is the loopback port of the control API
	APIPort int `json:"api_port"`

	// APIToken is an optional bearer token for API requests
	APIToken string `json:"api_token,omitempty"`

	// PanicHotkey disables every hook when pressed (e.g. "Ctrl+Alt+Shift+Esc")
	PanicHotkey string `json:"panic_hotkey,omitempty"`

	// ShowTray shows the system tray icon in serve mode
	ShowTray bool `json:"show_tray"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Listener: ListenerConfig{
			PipeName:             `\\.\pipe\ngu_cmd`,
			WriteTimeoutMS:       2000,
			EnableHooksOnConnect: true,
		},
		Window: WindowConfig{
			Title:              "NGU Idle",
			HandleCacheSeconds: 30,
		},
		Input: InputConfig{
			ShortSleepMS: 30,
		},
		General: GeneralConfig{
			LogLevel:    "info",
			APIEnabled:  true,
			APIPort:     18090,
			PanicHotkey: "Ctrl+Alt+Shift+Esc",
			ShowTray:    true,
		},
	}
}

// WriteTimeout returns the pipe write bound.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Listener.WriteTimeoutMS) * time.Millisecond
}

// HandleTTL returns the window handle cache lifetime.
func (c *Config) HandleTTL() time.Duration {
	return time.Duration(c.Window.HandleCacheSeconds) * time.Second
}

// ShortSleep returns the dispatcher delay.
func (c *Config) ShortSleep() time.Duration {
	return time.Duration(c.Input.ShortSleepMS) * time.Millisecond
}

// Settle returns the post-barrier pause.
func (c *Config) Settle() time.Duration {
	return time.Duration(c.Input.SettleMS) * time.Millisecond
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Listener.PipeName) == "" {
		errs = append(errs, errors.New("listener.pipe_name must not be empty"))
	}
	if c.Listener.WriteTimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("listener.write_timeout_ms must be positive, got %d", c.Listener.WriteTimeoutMS))
	}
	if strings.TrimSpace(c.Window.Title) == "" {
		errs = append(errs, errors.New("window.title must not be empty"))
	}
	if c.Window.HandleCacheSeconds < 0 {
		errs = append(errs, fmt.Errorf("window.handle_cache_seconds must not be negative, got %d", c.Window.HandleCacheSeconds))
	}
	if c.Input.ShortSleepMS <= 0 {
		errs = append(errs, fmt.Errorf("input.short_sleep_ms must be positive, got %d", c.Input.ShortSleepMS))
	}
	if c.Input.SettleMS < 0 {
		errs = append(errs, fmt.Errorf("input.settle_ms must not be negative, got %d", c.Input.SettleMS))
	}
	if _, err := logrus.ParseLevel(c.General.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("general.log_level: %w", err))
	}
	if c.General.APIEnabled && (c.General.APIPort <= 0 || c.General.APIPort > 65535) {
		errs = append(errs, fmt.Errorf("general.api_port out of range: %d", c.General.APIPort))
	}
	return errors.Join(errs...)
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
	log        logrus.FieldLogger
}

// NewManager creates a configuration manager for path. An empty path selects
// the per-user default location.
func NewManager(path string, log logrus.FieldLogger) (*Manager, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
		log:        log.WithField("component", "config"),
	}, nil
}

// DefaultPath returns the path to the per-user configuration file
func DefaultPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "nguctl")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "nguctl")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Path returns the file backing the manager.
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk. A missing file keeps the defaults.
func (m *Manager) Load() error {
	m.mu.Lock()

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		m.mu.Unlock()
		m.log.Debugf("No config at %s, using defaults", m.configPath)
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("parse %s: %w", m.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}
	m.config = cfg
	cb := m.onChanged
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}

	m.log.Infof("Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.config
}

// Set validates and replaces the configuration
func (m *Manager) Set(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = &cfg
	cb := m.onChanged
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
