package preflight

import (
	"context"
	"strings"

	"claimscan/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if cfg.Camera.Device != "" {
		results = append(results, CheckDeviceAccess("Camera device", cfg.Camera.Device))
	}

	results = append(results, CheckItemService(ctx, cfg.ItemService.BaseURL))

	if strings.TrimSpace(cfg.SessionToken()) == "" {
		results = append(results, Result{
			Name:   "Session token",
			Detail: "not configured; claim and collect dispatch will be refused",
		})
	} else {
		results = append(results, Result{Name: "Session token", Passed: true, Detail: "configured"})
	}

	return results
}
