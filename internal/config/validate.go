package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateItemService(); err != nil {
		return err
	}
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateScanner(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateItemService() error {
	if strings.TrimSpace(c.ItemService.BaseURL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/claimscan/config.toml"
		}
		return fmt.Errorf("item_service.base_url is required. Edit %s (create with 'claimscan config init')", defaultPath)
	}
	parsed, err := url.Parse(c.ItemService.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("item_service.base_url %q is not a valid URL", c.ItemService.BaseURL)
	}
	if c.ItemService.RequestTimeout <= 0 {
		return errors.New("item_service.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateCamera() error {
	if device := strings.TrimSpace(c.Camera.Device); device != "" && !strings.HasPrefix(device, "/dev/") {
		return fmt.Errorf("camera.device %q must be a /dev path", device)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return errors.New("camera.width and camera.height must be positive")
	}
	if c.Camera.AcquireTimeout <= 0 {
		return errors.New("camera.acquire_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateScanner() error {
	if c.Scanner.FrameInterval <= 0 {
		return errors.New("scanner.frame_interval_ms must be positive")
	}
	if c.Scanner.DispatchCooldown < 0 {
		return errors.New("scanner.dispatch_cooldown_ms must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	return nil
}
