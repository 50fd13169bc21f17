// Package config loads embedshot settings. Layers apply in the order
// defaults < TOML file < environment; the CLI applies flags on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "embedshot.toml"

type Config struct {
	Engine        string        `toml:"engine" env:"EMBEDSHOT_ENGINE"`
	BrowserPath   string        `toml:"browser_path" env:"CHROME_PATH"`
	Endpoint      string        `toml:"oembed_endpoint" env:"EMBEDSHOT_OEMBED_ENDPOINT"`
	HTMLDir       string        `toml:"html_dir" env:"EMBEDSHOT_HTML_DIR"`
	ScreenshotDir string        `toml:"screenshot_dir" env:"EMBEDSHOT_SCREENSHOT_DIR"`
	CreateDirs    bool          `toml:"create_dirs" env:"EMBEDSHOT_CREATE_DIRS"`
	FetchTimeout  time.Duration `toml:"fetch_timeout" env:"EMBEDSHOT_FETCH_TIMEOUT"`
	RenderTimeout time.Duration `toml:"render_timeout" env:"EMBEDSHOT_RENDER_TIMEOUT"`
	WidgetTimeout time.Duration `toml:"widget_timeout" env:"EMBEDSHOT_WIDGET_TIMEOUT"`
	Delay         time.Duration `toml:"delay" env:"EMBEDSHOT_DELAY"`
	Width         int           `toml:"width" env:"EMBEDSHOT_WIDTH"`
	Height        int           `toml:"height" env:"EMBEDSHOT_HEIGHT"`
	UserAgent     string        `toml:"user_agent" env:"EMBEDSHOT_USER_AGENT"`
	Stealth       bool          `toml:"stealth" env:"EMBEDSHOT_STEALTH"`
	Imprint       bool          `toml:"imprint" env:"EMBEDSHOT_IMPRINT"`
	Theme         string        `toml:"theme" env:"EMBEDSHOT_THEME"`
	Lang          string        `toml:"lang" env:"EMBEDSHOT_LANG"`
	MaxWidth      int           `toml:"max_width" env:"EMBEDSHOT_MAX_WIDTH"`
	HideThread    bool          `toml:"hide_thread" env:"EMBEDSHOT_HIDE_THREAD"`
	HideMedia     bool          `toml:"hide_media" env:"EMBEDSHOT_HIDE_MEDIA"`
	DNT           bool          `toml:"dnt" env:"EMBEDSHOT_DNT"`
	Debug         bool          `toml:"debug" env:"EMBEDSHOT_DEBUG"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Engine:        "rod",
		Endpoint:      "https://publish.twitter.com/oembed",
		HTMLDir:       "html",
		ScreenshotDir: "screenshots",
		FetchTimeout:  30 * time.Second,
		RenderTimeout: 30 * time.Second,
		WidgetTimeout: 15 * time.Second,
		Delay:         2 * time.Second,
		Width:         1280,
		Height:        720,
	}
}

// Load layers the TOML file at path and then the environment over the
// defaults. Only keys present in the file and variables that are set replace
// a value, so zero durations and false booleans can be configured. An empty
// path reads DefaultFile if it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := readFile(path, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	return nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Engine) {
	case "rod", "chromedp":
	default:
		return fmt.Errorf("unsupported engine %q (valid: rod, chromedp)", c.Engine)
	}

	if c.HTMLDir == "" {
		return fmt.Errorf("html directory cannot be empty")
	}
	if c.ScreenshotDir == "" {
		return fmt.Errorf("screenshot directory cannot be empty")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("oembed endpoint cannot be empty")
	}

	for name, d := range map[string]time.Duration{
		"fetch timeout":  c.FetchTimeout,
		"render timeout": c.RenderTimeout,
		"widget timeout": c.WidgetTimeout,
		"delay":          c.Delay,
	} {
		if d < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}

	if c.Width < 0 || c.Height < 0 || c.MaxWidth < 0 {
		return fmt.Errorf("dimensions cannot be negative")
	}

	switch c.Theme {
	case "", "light", "dark":
	default:
		return fmt.Errorf("unsupported theme %q (valid: light, dark)", c.Theme)
	}

	return nil
}
