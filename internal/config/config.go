package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppConfig     *AppConfig
	PlannerConfig *PlannerConfig
	BrowserConfig *BrowserConfig
	AgentConfig   *AgentConfig
}

type AppConfig struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PlannerConfig struct {
	APIKey    string `envconfig:"PLANNER_API_KEY" required:"true"`
	Model     string `envconfig:"PLANNER_MODEL" default:"claude-sonnet-4-20250514"`
	MaxTokens int    `envconfig:"PLANNER_MAX_TOKENS" default:"4096"`
}

type BrowserConfig struct {
	Headless          bool `envconfig:"BROWSER_HEADLESS" default:"true"`
	SlowMo            int  `envconfig:"BROWSER_SLOW_MO" default:"0"`
	NavigationTimeout int  `envconfig:"BROWSER_NAVIGATION_TIMEOUT" default:"30000"`
}

type AgentConfig struct {
	MaxTurns            int    `envconfig:"AGENT_MAX_TURNS" default:"20"`
	ActionTimeoutMillis int    `envconfig:"AGENT_ACTION_TIMEOUT_MS" default:"4000"`
	TypeDelayMillis     int    `envconfig:"AGENT_TYPE_DELAY_MS" default:"40"`
	DefaultScope        string `envconfig:"AGENT_DEFAULT_SCOPE" default:"form"`
	ScreenshotDir       string `envconfig:"AGENT_SCREENSHOT_DIR" default:"./screenshots"`
}

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	return &conf, nil
}
