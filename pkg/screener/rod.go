package screener

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

type rodCapturer struct {
	opts Options
}

// CaptureElement launches a browser, loads fileURL and screenshots the
// element matching opts.Selector. The launcher process, browser and page are
// released on every return path.
func (c *rodCapturer) CaptureElement(ctx context.Context, fileURL string) (*Result, error) {
	opts := c.opts

	l := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(opts.NoSandbox)

	if bin := c.browserPath(); bin != "" {
		l = l.Bin(bin)
	}

	if opts.UserAgent != "" {
		l = l.Set("user-agent", opts.UserAgent)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("error launching browser: %w", err)
	}
	defer func() {
		l.Kill()
		l.Cleanup()
	}()

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("error connecting to browser: %w", err)
	}
	defer browser.Close()

	page, err := c.newPage(browser)
	if err != nil {
		return nil, fmt.Errorf("error opening page: %w", err)
	}
	defer page.Close()

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.CaptureWidth,
		Height:            opts.CaptureHeight,
		DeviceScaleFactor: opts.DeviceScaleFactor,
		Mobile:            false,
	})
	if err != nil {
		return nil, fmt.Errorf("error setting viewport: %w", err)
	}

	if err := (proto.PageSetLifecycleEventsEnabled{Enabled: true}).Call(page); err != nil {
		return nil, fmt.Errorf("error enabling lifecycle events: %w", err)
	}

	// Subscribe before navigating so no event of this load is missed. Only
	// the main frame counts: the widget iframe reports its own idle events.
	events := newLifecycle()
	listener, stopListening := page.WithCancel()
	defer stopListening()

	wait := listener.EachEvent(func(e *proto.PageLifecycleEvent) {
		if e.FrameID == page.FrameID {
			events.record(string(e.LoaderID), string(e.Name))
		}
	})
	go wait()

	renderCtx, cancelRender := boundedContext(ctx, opts.RenderTimeout)
	defer cancelRender()

	Log.Debugf("Navigating to %s", fileURL)
	nav, err := proto.PageNavigate{URL: fileURL}.Call(page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("error navigating to %s: %w", fileURL, err)
	}
	if nav.ErrorText != "" {
		return nil, fmt.Errorf("error navigating to %s: page load error %s", fileURL, nav.ErrorText)
	}
	loaderID := string(nav.LoaderID)

	widgetCtx, cancelWidget := boundedContext(ctx, opts.WidgetTimeout)
	defer cancelWidget()

	el, err := page.Context(widgetCtx).Element(opts.Selector)
	if err != nil {
		err = fmt.Errorf("error locating %s: %w", opts.Selector, err)
		return nil, classify(ctx, widgetCtx, ErrWidgetNotFound, opts.WidgetTimeout, err)
	}

	if err := page.Context(renderCtx).WaitLoad(); err != nil {
		err = fmt.Errorf("error waiting for %s to load: %w", fileURL, err)
		return nil, classify(ctx, renderCtx, ErrRenderTimeout, opts.RenderTimeout, err)
	}

	if err := events.wait(renderCtx, loaderID, lifecycleNetworkIdle); err != nil {
		err = fmt.Errorf("error waiting for network idle on %s: %w", fileURL, err)
		return nil, classify(ctx, renderCtx, ErrRenderTimeout, opts.RenderTimeout, err)
	}
	Log.Debugf("Network idle on %s", fileURL)

	if err := sleep(ctx, opts.DelayBeforeCapture); err != nil {
		return nil, err
	}

	img, err := el.Context(ctx).Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("error capturing %s: %w", opts.Selector, err)
	}

	return &Result{
		SourceURL: fileURL,
		Selector:  opts.Selector,
		Image:     img,
	}, nil
}

// browserPath prefers the configured executable and falls back to a browser
// found on the system. An empty result lets rod fetch its bundled browser.
func (c *rodCapturer) browserPath() string {
	if c.opts.BrowserPath != "" {
		return c.opts.BrowserPath
	}
	path, _ := launcher.LookPath()
	return path
}

func (c *rodCapturer) newPage(browser *rod.Browser) (*rod.Page, error) {
	if c.opts.Stealth {
		return stealth.Page(browser)
	}
	return browser.Page(proto.TargetCreateTarget{URL: ""})
}
