package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/root4loot/embedshot"
	"github.com/root4loot/embedshot/internal/config"
	"github.com/root4loot/embedshot/pkg/oembed"
	"github.com/root4loot/embedshot/pkg/screener"
	"github.com/root4loot/goutils/log"
	"github.com/spf13/cobra"
)

var errMissingTarget = errors.New("missing post URL")

type cli struct {
	flags     cliFlags
	newRunner func(embedshot.Options) *embedshot.Runner
}

func newCLI() *cli {
	return &cli{newRunner: embedshot.NewRunnerWithOptions}
}

func (c *cli) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embedshot [options] <post-url>",
		Short: "Screenshot the embedded widget of a social-media post",
		Long: `embedshot downloads the oEmbed markup of a post, writes it to html/<id>.html,
renders it in a headless browser and saves the widget to screenshots/<id>.png.

by ` + author,
		Version:       version,
		Args:          requireTarget,
		RunE:          c.run,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	c.flags.bind(cmd)
	return cmd
}

// requireTarget treats a missing post URL as a usage error.
func requireTarget(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		log.Error("Please input post URL as first argument.")
		cmd.Usage()
		return errMissingTarget
	}
	if len(args) > 1 {
		log.Errorf("Expected one post URL, got %d arguments", len(args))
		return fmt.Errorf("too many arguments: %d", len(args))
	}
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.flags.configPath)
	if err != nil {
		log.Errorf("Error loading config: %v", err)
		return err
	}

	c.flags.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		log.Errorf("Invalid configuration: %v", err)
		return err
	}

	opts := runnerOptions(cfg)
	opts.Silence = c.flags.silence

	switch {
	case opts.Silence:
		log.SetLevel(log.FatalLevel)
	case opts.Verbose:
		log.SetLevel(log.DebugLevel)
	}

	target := args[0]
	runner := c.newRunner(opts)

	result, err := runner.Run(cmd.Context(), target)
	if err != nil {
		handleRunError(target, err)
		return err
	}

	if result.Skipped {
		log.Warnf("No post identifier in %s, nothing to capture", target)
		return nil
	}

	log.Resultf("Screenshot saved to %s", result.ScreenshotFile)
	return nil
}

func runnerOptions(cfg *config.Config) embedshot.Options {
	opts := *embedshot.DefaultOptions()

	opts.HTMLDir = cfg.HTMLDir
	opts.ScreenshotDir = cfg.ScreenshotDir
	opts.CreateDirs = cfg.CreateDirs
	opts.Endpoint = cfg.Endpoint
	opts.FetchTimeout = cfg.FetchTimeout
	opts.Imprint = cfg.Imprint
	opts.Verbose = cfg.Debug

	opts.Embed = oembed.Params{
		Theme:      cfg.Theme,
		Lang:       cfg.Lang,
		MaxWidth:   cfg.MaxWidth,
		HideThread: cfg.HideThread,
		HideMedia:  cfg.HideMedia,
		DNT:        cfg.DNT,
	}

	opts.Capture.Engine = cfg.Engine
	opts.Capture.BrowserPath = cfg.BrowserPath
	opts.Capture.CaptureWidth = cfg.Width
	opts.Capture.CaptureHeight = cfg.Height
	opts.Capture.RenderTimeout = cfg.RenderTimeout
	opts.Capture.WidgetTimeout = cfg.WidgetTimeout
	opts.Capture.DelayBeforeCapture = cfg.Delay
	opts.Capture.UserAgent = cfg.UserAgent
	opts.Capture.Stealth = cfg.Stealth

	return opts
}

func handleRunError(target string, err error) {
	var statusErr *oembed.StatusError

	switch {
	case errors.As(err, &statusErr):
		log.Errorf("oEmbed provider rejected %s: %s", target, statusErr.Error())
	case errors.Is(err, oembed.ErrFetchFailed):
		log.Errorf("Could not download embed code for %s: %s", target, unwrapError(err))
	case errors.Is(err, oembed.ErrMalformedDocument), errors.Is(err, oembed.ErrMissingHTML):
		log.Errorf("Unusable embed code for %s: %v", target, err)
	case errors.Is(err, embedshot.ErrInvalidPostID):
		log.Errorf("Post id of %s cannot name an output file: %v", target, err)
	case errors.Is(err, screener.ErrWidgetNotFound):
		log.Errorf("Widget for %s never appeared: %v", target, err)
	case errors.Is(err, screener.ErrRenderTimeout):
		log.Errorf("Rendering %s did not finish: %v", target, err)
	case errors.Is(err, os.ErrNotExist):
		log.Errorf("Output directory missing for %s: %v", target, err)
	default:
		log.Errorf("Error capturing %s: %s", target, unwrapError(err))
	}
}

func unwrapError(err error) string {
	rootErr := err
	for {
		unwrappedErr := errors.Unwrap(rootErr)
		if unwrappedErr == nil {
			break
		}
		rootErr = unwrappedErr
	}
	return rootErr.Error()
}
