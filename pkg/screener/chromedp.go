package screener

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

type chromedpCapturer struct {
	opts Options
}

// CaptureElement runs the same capture as the rod engine on a chromedp
// allocated browser. Canceling the allocator and browser contexts on return
// terminates the browser process.
func (c *chromedpCapturer) CaptureElement(ctx context.Context, fileURL string) (*Result, error) {
	opts := c.opts

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], c.customFlags()...)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	cctx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	events := newLifecycle()
	chromedp.ListenTarget(cctx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok {
			events.record(string(e.LoaderID), e.Name)
		}
	})

	var loaderID cdp.LoaderID
	err := chromedp.Run(cctx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.EmulateViewport(int64(opts.CaptureWidth), int64(opts.CaptureHeight), chromedp.EmulateScale(opts.DeviceScaleFactor)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			Log.Debugf("Navigating to %s", fileURL)
			_, id, errorText, err := page.Navigate(fileURL).Do(ctx)
			if err != nil {
				return err
			}
			if errorText != "" {
				return fmt.Errorf("page load error %s", errorText)
			}
			loaderID = id
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("error navigating to %s: %w", fileURL, err)
	}

	renderCtx, cancelRender := boundedContext(cctx, opts.RenderTimeout)
	defer cancelRender()

	if err := events.wait(renderCtx, string(loaderID), lifecycleDOMContentLoaded); err != nil {
		err = fmt.Errorf("error waiting for %s to load: %w", fileURL, err)
		return nil, classify(ctx, renderCtx, ErrRenderTimeout, opts.RenderTimeout, err)
	}

	widgetCtx, cancelWidget := boundedContext(cctx, opts.WidgetTimeout)
	defer cancelWidget()

	if err := chromedp.Run(widgetCtx, chromedp.WaitVisible(opts.Selector, chromedp.ByQuery)); err != nil {
		err = fmt.Errorf("error locating %s: %w", opts.Selector, err)
		return nil, classify(ctx, widgetCtx, ErrWidgetNotFound, opts.WidgetTimeout, err)
	}

	if err := events.wait(renderCtx, string(loaderID), lifecycleNetworkIdle); err != nil {
		err = fmt.Errorf("error waiting for network idle on %s: %w", fileURL, err)
		return nil, classify(ctx, renderCtx, ErrRenderTimeout, opts.RenderTimeout, err)
	}
	Log.Debugf("Network idle on %s", fileURL)

	if err := sleep(ctx, opts.DelayBeforeCapture); err != nil {
		return nil, err
	}

	var buf []byte
	if err := chromedp.Run(cctx, chromedp.Screenshot(opts.Selector, &buf, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return nil, fmt.Errorf("error capturing %s: %w", opts.Selector, err)
	}

	return &Result{
		SourceURL: fileURL,
		Selector:  opts.Selector,
		Image:     buf,
	}, nil
}

// customFlags returns chromedp.ExecAllocatorOptions based on the capture options.
func (c *chromedpCapturer) customFlags() []chromedp.ExecAllocatorOption {
	var flags []chromedp.ExecAllocatorOption

	flags = append(flags, chromedp.Flag("headless", true))

	if c.opts.BrowserPath != "" {
		flags = append(flags, chromedp.ExecPath(c.opts.BrowserPath))
	}

	if c.opts.NoSandbox {
		flags = append(flags, chromedp.NoSandbox)
	}

	if c.opts.UserAgent != "" {
		flags = append(flags, chromedp.UserAgent(c.opts.UserAgent))
	}

	return flags
}
