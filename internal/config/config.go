package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir string `toml:"log_dir"`
}

// API contains bind address and token configuration for the daemon HTTP API.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Camera contains configuration for camera acquisition.
type Camera struct {
	// Device is the preferred camera device path. Empty selects the first
	// enumerated device (the environment-facing default).
	Device string `toml:"device"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	// AcquireTimeout bounds stream startup, in seconds.
	AcquireTimeout int `toml:"acquire_timeout"`
}

// Decoder contains configuration for the QR decode strategies.
type Decoder struct {
	// HardwareEnabled allows disabling the external detector even when the
	// binary is installed, forcing the software path.
	HardwareEnabled bool `toml:"hardware_enabled"`
	// DetectTimeout bounds a single hardware detector invocation, in seconds.
	DetectTimeout int `toml:"detect_timeout"`
}

// ItemService contains connection settings for the external item service.
type ItemService struct {
	BaseURL string `toml:"base_url"`
	// SessionToken authenticates claim and collect calls. Dispatch is refused
	// when it is empty.
	SessionToken string `toml:"session_token"`
	// RequestTimeout bounds a single claim/collect call, in seconds.
	RequestTimeout int `toml:"request_timeout"`
}

// Scanner contains timing configuration for the scan coordinator.
type Scanner struct {
	// FrameInterval is the decode loop cadence in milliseconds.
	FrameInterval int `toml:"frame_interval_ms"`
	// DispatchCooldown is how long, in milliseconds, a resolved payload stays
	// deduplicated before an identical detection may dispatch again.
	DispatchCooldown int `toml:"dispatch_cooldown_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for claimscan.
//
// Configuration sections by subsystem:
//   - Paths: log and state directories
//   - API: daemon HTTP API bind address and bearer token
//   - Camera: device selection and frame geometry
//   - Decoder: hardware/software decode strategy settings
//   - ItemService: claim/collect endpoint and session token
//   - Scanner: decode loop cadence and dedupe cooldown
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	API         API         `toml:"api"`
	Camera      Camera      `toml:"camera"`
	Decoder     Decoder     `toml:"decoder"`
	ItemService ItemService `toml:"item_service"`
	Scanner     Scanner     `toml:"scanner"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/claimscan/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("claimscan.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// GrabberBinary returns the frame grabber executable name.
func (c *Config) GrabberBinary() string {
	return "ffmpeg"
}

// DetectorBinary returns the hardware-assisted barcode detector executable name.
func (c *Config) DetectorBinary() string {
	return "zbarimg"
}

// SessionToken returns the item service session token, already resolved
// against the environment during load.
func (c *Config) SessionToken() string {
	return c.ItemService.SessionToken
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
