package main

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"jellydiscord/internal/config"
)

type commandContext struct {
	configFlag  *string
	baseURLFlag *string
	jsonOutput  *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, baseURLFlag *string, jsonOutput *bool) *commandContext {
	return &commandContext{configFlag: configFlag, baseURLFlag: baseURLFlag, jsonOutput: jsonOutput}
}

// JSONMode returns true when the user passed --json.
func (c *commandContext) JSONMode() bool {
	return c != nil && c.jsonOutput != nil && *c.jsonOutput
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
		c.config = cfg
	})
	return c.config, c.configErr
}

// baseURL resolves the bridge's HTTP address: --url wins, otherwise it's
// derived from the loaded config's api_bind.
func (c *commandContext) baseURL() string {
	if c.baseURLFlag != nil && strings.TrimSpace(*c.baseURLFlag) != "" {
		return strings.TrimRight(*c.baseURLFlag, "/")
	}
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil || strings.TrimSpace(cfg.APIBind) == "" {
		return "http://127.0.0.1:8420"
	}
	return "http://" + cfg.APIBind
}

func (c *commandContext) httpClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func wrapDialError(err error, url string) error {
	return fmt.Errorf("connect to bridge at %s: %w (is bridged running?)", url, err)
}
