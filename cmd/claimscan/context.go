package main

import (
	"strings"
	"sync"

	"claimscan/internal/config"
	"claimscan/internal/ctl"
)

type commandContext struct {
	configFlag  *string
	addressFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, addressFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		addressFlag: addressFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) client() *ctl.Client {
	cfg, _ := c.ensureConfig()
	if c.addressFlag != nil && strings.TrimSpace(*c.addressFlag) != "" {
		token := ""
		if cfg != nil {
			token = cfg.API.Token
		}
		return ctl.NewWithBase("http://"+strings.TrimSpace(*c.addressFlag), token)
	}
	return ctl.New(cfg)
}
