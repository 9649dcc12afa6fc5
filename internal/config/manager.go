package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/AreaStream/internal/capture"
	"github.com/bryanchriswhite/AreaStream/internal/logger"
	"github.com/bryanchriswhite/AreaStream/internal/scale"
	"gopkg.in/yaml.v3"
)

const (
	MinFrameRate = 1
	MaxFrameRate = 240

	DefaultFrameRate       = 30
	DefaultRefreshInterval = 2 * time.Second
	DefaultPort            = 8080
)

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns ~/.config/areastream/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "areastream", "config.yaml"), nil
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
		Int("area_index", m.config.Capture.AreaIndex).
		Int("framerate", m.config.Capture.FrameRate).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		Capture: CaptureConfig{
			AreaIndex:       0,
			ScreenMethod:    capture.MethodComposite.String(),
			WindowMethod:    capture.MethodComposite.String(),
			FrameRate:       DefaultFrameRate,
			CaptureCursor:   true,
			RefreshInterval: DefaultRefreshInterval.String(),
		},
		Preview: PreviewConfig{
			Enabled:   true,
			ScaleMode: scale.ModeFit.String(),
			ShowLabel: true,
			Title:     "AreaStream - Preview",
			Width:     960,
			Height:    540,
		},
		ServerPort: DefaultPort,
		LogLevel:   "info",
	}
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	for _, fix := range cfg.Validate() {
		logger.WithComponent("config").Warn().Str("fix", fix).Msg("Corrected invalid setting")
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Validate replaces out-of-range values with usable ones and describes each
// correction
func (c *Config) Validate() []string {
	var fixes []string

	if c.Capture.FrameRate < MinFrameRate || c.Capture.FrameRate > MaxFrameRate {
		fr := c.Capture.FrameRate
		switch {
		case fr == 0:
			c.Capture.FrameRate = DefaultFrameRate
		case fr < MinFrameRate:
			c.Capture.FrameRate = MinFrameRate
		default:
			c.Capture.FrameRate = MaxFrameRate
		}
		fixes = append(fixes, fmt.Sprintf("capture.framerate %d -> %d", fr, c.Capture.FrameRate))
	}
	if _, err := capture.ParseMethod(c.Capture.ScreenMethod); err != nil {
		fixes = append(fixes, fmt.Sprintf("capture.screen_method %q -> composite", c.Capture.ScreenMethod))
		c.Capture.ScreenMethod = capture.MethodComposite.String()
	}
	if _, err := capture.ParseMethod(c.Capture.WindowMethod); err != nil {
		fixes = append(fixes, fmt.Sprintf("capture.window_method %q -> composite", c.Capture.WindowMethod))
		c.Capture.WindowMethod = capture.MethodComposite.String()
	}
	if d, err := time.ParseDuration(c.Capture.RefreshInterval); err != nil || d <= 0 {
		fixes = append(fixes, fmt.Sprintf("capture.refresh_interval %q -> %s", c.Capture.RefreshInterval, DefaultRefreshInterval))
		c.Capture.RefreshInterval = DefaultRefreshInterval.String()
	}
	if c.Capture.AreaIndex < 0 {
		fixes = append(fixes, fmt.Sprintf("capture.area_index %d -> 0", c.Capture.AreaIndex))
		c.Capture.AreaIndex = 0
	}
	if _, err := scale.ParseMode(c.Preview.ScaleMode); err != nil {
		fixes = append(fixes, fmt.Sprintf("preview.scale_mode %q -> 100%%", c.Preview.ScaleMode))
		c.Preview.ScaleMode = scale.Mode100.String()
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		fixes = append(fixes, fmt.Sprintf("server_port %d -> %d", c.ServerPort, DefaultPort))
		c.ServerPort = DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return fixes
}

// RefreshEvery returns the parsed capture.refresh_interval
func (c *Config) RefreshEvery() time.Duration {
	d, err := time.ParseDuration(c.Capture.RefreshInterval)
	if err != nil || d <= 0 {
		return DefaultRefreshInterval
	}
	return d
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

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Saving config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("config_dir", configDir).
			Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	m.mu.RLock()
	data, err := yaml.Marshal(cfg)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved successfully")
	return nil
}

// Update applies fn to the configuration and saves it
func (m *Manager) Update(fn func(cfg *Config)) error {
	m.mu.Lock()
	if m.config == nil {
		m.config = Defaults()
	}
	fn(m.config)
	m.mu.Unlock()
	return m.Save()
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// field describes one dotted settings key
type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

var fields = map[string]field{
	"capture.area_index": {
		get: func(c *Config) string { return strconv.Itoa(c.Capture.AreaIndex) },
		set: intSetter(func(c *Config) *int { return &c.Capture.AreaIndex }),
	},
	"capture.window_key": {
		get: func(c *Config) string { return c.Capture.WindowKey },
		set: func(c *Config, v string) error { c.Capture.WindowKey = v; return nil },
	},
	"capture.screen_method": {
		get: func(c *Config) string { return c.Capture.ScreenMethod },
		set: methodSetter(func(c *Config) *string { return &c.Capture.ScreenMethod }),
	},
	"capture.window_method": {
		get: func(c *Config) string { return c.Capture.WindowMethod },
		set: methodSetter(func(c *Config) *string { return &c.Capture.WindowMethod }),
	},
	"capture.framerate": {
		get: func(c *Config) string { return strconv.Itoa(c.Capture.FrameRate) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			if n < MinFrameRate || n > MaxFrameRate {
				return fmt.Errorf("framerate must be between %d and %d", MinFrameRate, MaxFrameRate)
			}
			c.Capture.FrameRate = n
			return nil
		},
	},
	"capture.capture_cursor": {
		get: func(c *Config) string { return strconv.FormatBool(c.Capture.CaptureCursor) },
		set: boolSetter(func(c *Config) *bool { return &c.Capture.CaptureCursor }),
	},
	"capture.hide_taskbar": {
		get: func(c *Config) string { return strconv.FormatBool(c.Capture.HideTaskbar) },
		set: boolSetter(func(c *Config) *bool { return &c.Capture.HideTaskbar }),
	},
	"capture.custom_area": {
		get: func(c *Config) string { return c.Capture.CustomArea.String() },
		set: func(c *Config, v string) error {
			a, err := ParseArea(v)
			if err != nil {
				return err
			}
			c.Capture.CustomArea = a
			return nil
		},
	},
	"capture.refresh_interval": {
		get: func(c *Config) string { return c.Capture.RefreshInterval },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			if d <= 0 {
				return fmt.Errorf("refresh interval must be positive")
			}
			c.Capture.RefreshInterval = d.String()
			return nil
		},
	},
	"preview.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Preview.Enabled) },
		set: boolSetter(func(c *Config) *bool { return &c.Preview.Enabled }),
	},
	"preview.scale_mode": {
		get: func(c *Config) string { return c.Preview.ScaleMode },
		set: func(c *Config, v string) error {
			if _, err := scale.ParseMode(v); err != nil {
				return err
			}
			c.Preview.ScaleMode = v
			return nil
		},
	},
	"preview.show_label": {
		get: func(c *Config) string { return strconv.FormatBool(c.Preview.ShowLabel) },
		set: boolSetter(func(c *Config) *bool { return &c.Preview.ShowLabel }),
	},
	"preview.title": {
		get: func(c *Config) string { return c.Preview.Title },
		set: func(c *Config, v string) error { c.Preview.Title = v; return nil },
	},
	"auto_exit": {
		get: func(c *Config) string { return strconv.FormatBool(c.AutoExit) },
		set: boolSetter(func(c *Config) *bool { return &c.AutoExit }),
	},
	"server_port": {
		get: func(c *Config) string { return strconv.Itoa(c.ServerPort) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			if n <= 0 || n > 65535 {
				return fmt.Errorf("port must be between 1 and 65535")
			}
			c.ServerPort = n
			return nil
		},
	},
	"log_level": {
		get: func(c *Config) string { return c.LogLevel },
		set: func(c *Config, v string) error {
			switch strings.ToLower(v) {
			case "debug", "info", "warn", "error":
				c.LogLevel = strings.ToLower(v)
				return nil
			}
			return fmt.Errorf("log level must be debug, info, warn or error")
		},
	},
}

func intSetter(p func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("value must not be negative")
		}
		*p(c) = n
		return nil
	}
}

func boolSetter(p func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*p(c) = b
		return nil
	}
}

func methodSetter(p func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		if _, err := capture.ParseMethod(v); err != nil {
			return err
		}
		*p(c) = v
		return nil
	}
}

// Keys returns every settable key in sorted order
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the value of a dotted key such as capture.framerate
func (m *Manager) Lookup(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown setting %q", key)
	}
	return f.get(m.Get()), nil
}

// Set parses value into a dotted key and saves
func (m *Manager) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}

	m.mu.Lock()
	if m.config == nil {
		m.config = Defaults()
	}
	err := f.set(m.config, value)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return m.Save()
}

// String formats the area as x,y,width,height
func (a Area) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", a.X, a.Y, a.Width, a.Height)
}

// ParseArea parses x,y,width,height
func ParseArea(s string) (Area, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Area{}, fmt.Errorf("area must be x,y,width,height")
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Area{}, fmt.Errorf("area component %d: %w", i, err)
		}
		v[i] = n
	}
	if v[2] < 0 || v[3] < 0 {
		return Area{}, fmt.Errorf("area size must not be negative")
	}
	return Area{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}
