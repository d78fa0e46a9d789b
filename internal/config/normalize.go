package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCamera()
	c.normalizeItemService()
	c.normalizeScanner()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	return nil
}

func (c *Config) normalizeCamera() {
	c.Camera.Device = strings.TrimSpace(c.Camera.Device)
	if c.Camera.Width == 0 {
		c.Camera.Width = defaultCameraWidth
	}
	if c.Camera.Height == 0 {
		c.Camera.Height = defaultCameraHeight
	}
	if c.Camera.AcquireTimeout == 0 {
		c.Camera.AcquireTimeout = defaultCameraAcquireTimeout
	}
	if c.Decoder.DetectTimeout == 0 {
		c.Decoder.DetectTimeout = defaultDetectTimeout
	}
}

func (c *Config) normalizeItemService() {
	if c.ItemService.SessionToken == "" {
		if value, ok := os.LookupEnv("CLAIMSCAN_SESSION_TOKEN"); ok {
			c.ItemService.SessionToken = value
		}
	}
	c.ItemService.BaseURL = strings.TrimRight(strings.TrimSpace(c.ItemService.BaseURL), "/")
	c.ItemService.SessionToken = strings.TrimSpace(c.ItemService.SessionToken)
	if c.ItemService.RequestTimeout == 0 {
		c.ItemService.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeScanner() {
	if c.Scanner.FrameInterval == 0 {
		c.Scanner.FrameInterval = defaultFrameIntervalMS
	}
	if c.Scanner.DispatchCooldown == 0 {
		c.Scanner.DispatchCooldown = defaultDispatchCooldownMS
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
