// Package screener renders a local HTML page in a headless browser and
// captures a screenshot of a single element on it.
package screener

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/root4loot/embedshot/internal/logging"
)

const (
	EngineRod      = "rod"
	EngineChromedp = "chromedp"

	// WidgetSelector matches the iframe the oEmbed widget script injects. The
	// script numbers widgets in document order and a page written by
	// embedshot holds exactly one, so the id is always the same.
	WidgetSelector = "#twitter-widget-0"
)

var (
	// ErrWidgetNotFound means the selector never matched within WidgetTimeout.
	ErrWidgetNotFound = errors.New("screener: widget element not found")
	// ErrRenderTimeout means the page did not reach network idle within RenderTimeout.
	ErrRenderTimeout = errors.New("screener: render timeout")
	ErrEmptyImage    = errors.New("screener: empty image")
)

var Log = logging.Log

// Capturer captures the widget element of the page at fileURL.
type Capturer interface {
	CaptureElement(ctx context.Context, fileURL string) (*Result, error)
}

// Result contains the result of an element capture.
type Result struct {
	SourceURL string
	Selector  string
	Image     Image
}

// Options contains the options for capturing screenshots.
type Options struct {
	Engine             string        // "rod" or "chromedp"
	BrowserPath        string        // Browser executable, empty for the default lookup
	Selector           string        // Element to capture
	CaptureWidth       int           // Viewport width (CSS pixels)
	CaptureHeight      int           // Viewport height (CSS pixels)
	DeviceScaleFactor  float64       // Pixel ratio of the capture
	RenderTimeout      time.Duration // Bound on the load and network idle wait, 0 for none
	WidgetTimeout      time.Duration // Bound on locating the element, 0 for none
	DelayBeforeCapture time.Duration // Settle delay after network idle
	Stealth            bool          // Open a stealth page (rod only)
	NoSandbox          bool          // Disable the Chromium sandbox
	UserAgent          string        // User agent override
}

// NewOptions returns Options initialized with default values.
func NewOptions() Options {
	return Options{
		Engine:             EngineRod,
		Selector:           WidgetSelector,
		CaptureWidth:       1280,
		CaptureHeight:      720,
		DeviceScaleFactor:  2,
		RenderTimeout:      30 * time.Second,
		WidgetTimeout:      15 * time.Second,
		DelayBeforeCapture: 2 * time.Second,
		NoSandbox:          true,
	}
}

// withDefaults fills zero values that would make a capture impossible.
// Timeouts and delays keep their zero value since zero means "no bound".
func (o Options) withDefaults() Options {
	d := NewOptions()
	if o.Engine == "" {
		o.Engine = d.Engine
	}
	if o.Selector == "" {
		o.Selector = d.Selector
	}
	if o.CaptureWidth <= 0 || o.CaptureHeight <= 0 {
		o.CaptureWidth, o.CaptureHeight = d.CaptureWidth, d.CaptureHeight
	}
	if o.DeviceScaleFactor <= 0 {
		o.DeviceScaleFactor = d.DeviceScaleFactor
	}
	return o
}

// New returns the Capturer for opts.Engine.
func New(opts Options) (Capturer, error) {
	opts = opts.withDefaults()

	switch strings.ToLower(opts.Engine) {
	case EngineRod:
		return &rodCapturer{opts: opts}, nil
	case EngineChromedp:
		return &chromedpCapturer{opts: opts}, nil
	default:
		return nil, fmt.Errorf("screener: unknown engine %q (valid: %s, %s)", opts.Engine, EngineRod, EngineChromedp)
	}
}

// WriteFile writes the image to path. Parent directories are not created.
func (result Result) WriteFile(path string) error {
	if len(result.Image) == 0 {
		return ErrEmptyImage
	}
	return os.WriteFile(path, result.Image, 0o644)
}

// boundedContext derives a context limited to d, or a plain cancelable
// context when d is not positive.
func boundedContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// classify maps an error raised under stage onto the sentinel for that
// stage when stage expired on its own bound rather than the caller's.
func classify(parent, stage context.Context, sentinel error, d time.Duration, err error) error {
	if parent.Err() == nil && errors.Is(stage.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", sentinel, d)
	}
	return err
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
