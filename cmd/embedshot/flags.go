package main

import (
	"time"

	"github.com/root4loot/embedshot/internal/config"
	"github.com/spf13/cobra"
)

type cliFlags struct {
	configPath    string
	engine        string
	browserPath   string
	htmlDir       string
	screenshotDir string
	createDirs    bool
	endpoint      string
	fetchTimeout  time.Duration
	renderTimeout time.Duration
	widgetTimeout time.Duration
	delay         time.Duration
	width         int
	height        int
	userAgent     string
	stealth       bool
	imprint       bool
	theme         string
	lang          string
	maxWidth      int
	hideThread    bool
	hideMedia     bool
	dnt           bool
	debug         bool
	silence       bool
}

func (f *cliFlags) bind(cmd *cobra.Command) {
	d := config.Default()
	fs := cmd.Flags()

	// INPUT
	fs.StringVarP(&f.configPath, "config", "c", "", "config file (default: ./"+config.DefaultFile+" when present)")

	// CONFIGURATIONS
	fs.StringVarP(&f.engine, "engine", "e", d.Engine, "browser engine: rod | chromedp")
	fs.StringVarP(&f.browserPath, "browser", "b", "", "browser executable (default: $CHROME_PATH or bundled)")
	fs.StringVar(&f.endpoint, "endpoint", d.Endpoint, "oEmbed endpoint")
	fs.DurationVar(&f.fetchTimeout, "fetch-timeout", d.FetchTimeout, "oEmbed request timeout")
	fs.DurationVarP(&f.renderTimeout, "timeout", "t", d.RenderTimeout, "page load and network idle timeout (0 waits forever)")
	fs.DurationVar(&f.widgetTimeout, "widget-timeout", d.WidgetTimeout, "time to wait for the widget element")
	fs.DurationVar(&f.delay, "delay", d.Delay, "delay before capture once the network is idle")
	fs.IntVar(&f.width, "width", d.Width, "viewport width")
	fs.IntVar(&f.height, "height", d.Height, "viewport height")
	fs.StringVar(&f.userAgent, "user-agent", "", "user agent for the oEmbed request and the browser")
	fs.BoolVar(&f.stealth, "stealth", false, "open a stealth page (rod engine)")

	// EMBED
	fs.StringVar(&f.theme, "theme", "", "widget theme: light | dark")
	fs.StringVar(&f.lang, "lang", "", "widget language")
	fs.IntVar(&f.maxWidth, "max-width", 0, "maximum widget width")
	fs.BoolVar(&f.hideThread, "hide-thread", false, "hide the parent post of a reply")
	fs.BoolVar(&f.hideMedia, "hide-media", false, "hide attached media")
	fs.BoolVar(&f.dnt, "dnt", false, "ask the provider not to track")

	// OUTPUT
	fs.StringVar(&f.htmlDir, "html-dir", d.HTMLDir, "directory of embed code files")
	fs.StringVarP(&f.screenshotDir, "outfolder", "o", d.ScreenshotDir, "directory of screenshots")
	fs.BoolVar(&f.createDirs, "create-dirs", false, "create output directories when missing")
	fs.BoolVar(&f.imprint, "imprint", false, "add the post URL below the screenshot")
	fs.BoolVar(&f.debug, "debug", false, "enable debug mode")
	fs.BoolVar(&f.silence, "silence", false, "only log fatal errors")
}

// apply overrides cfg with the flags set on the command line.
func (f *cliFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}

	set("engine", func() { cfg.Engine = f.engine })
	set("browser", func() { cfg.BrowserPath = f.browserPath })
	set("endpoint", func() { cfg.Endpoint = f.endpoint })
	set("fetch-timeout", func() { cfg.FetchTimeout = f.fetchTimeout })
	set("timeout", func() { cfg.RenderTimeout = f.renderTimeout })
	set("widget-timeout", func() { cfg.WidgetTimeout = f.widgetTimeout })
	set("delay", func() { cfg.Delay = f.delay })
	set("width", func() { cfg.Width = f.width })
	set("height", func() { cfg.Height = f.height })
	set("user-agent", func() { cfg.UserAgent = f.userAgent })
	set("stealth", func() { cfg.Stealth = f.stealth })
	set("theme", func() { cfg.Theme = f.theme })
	set("lang", func() { cfg.Lang = f.lang })
	set("max-width", func() { cfg.MaxWidth = f.maxWidth })
	set("hide-thread", func() { cfg.HideThread = f.hideThread })
	set("hide-media", func() { cfg.HideMedia = f.hideMedia })
	set("dnt", func() { cfg.DNT = f.dnt })
	set("html-dir", func() { cfg.HTMLDir = f.htmlDir })
	set("outfolder", func() { cfg.ScreenshotDir = f.screenshotDir })
	set("create-dirs", func() { cfg.CreateDirs = f.createDirs })
	set("imprint", func() { cfg.Imprint = f.imprint })
	set("debug", func() { cfg.Debug = f.debug })
}
