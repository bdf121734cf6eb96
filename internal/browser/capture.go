// Package browser implements the capture pipeline: given a leased instance
// and a request, it drives one CDP tab through navigation, optional
// resource interception, and screenshot capture, producing a Result.
package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"screenshotsvc/internal/model"
	pkgbrowser "screenshotsvc/pkg/browser"
	"screenshotsvc/pkg/logger"
	"screenshotsvc/pkg/utils"
)

// Pipeline turns a leased Instance and a Request into a Result.
type Pipeline struct {
	cfg model.Config
	log *logger.Logger
}

// NewPipeline builds a pipeline bound to cfg's optimization/viewport/format
// defaults.
func NewPipeline(cfg model.Config, log *logger.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, log: log}
}

// Capture runs the full algorithm against inst, bounded by cfg.ScreenshotTimeout.
func (p *Pipeline) Capture(ctx context.Context, inst *pkgbrowser.Instance, req model.Request) model.Result {
	start := time.Now()
	result := model.Result{
		RequestID: req.ID,
		URL:       req.URL,
		Format:    p.cfg.OutputFormat,
		Timestamp: start,
		Metadata: model.Metadata{
			BrowserInstance: inst.ID(),
		},
	}

	parsed, err := utils.ValidateURL(req.URL)
	if err != nil {
		result.Error = model.NewError(model.KindInvalidURL, err.Error(), err)
		result.Elapsed = time.Since(start)
		return result
	}

	timeout := p.cfg.ScreenshotTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	captureCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pageCtx, pageCancel := inst.NewPage()
	defer pageCancel()

	viewport := p.cfg.Viewport
	if req.CustomViewport != nil {
		viewport = *req.CustomViewport
	}
	result.Metadata.ViewportUsed = viewport

	interceptor := utils.NewRequestInterceptor(
		p.cfg.Optimization.BlockAds,
		p.cfg.Optimization.BlockTrackers,
		p.cfg.Optimization.BlockImages,
	)
	p.installInterceptor(pageCtx, interceptor)

	done := make(chan model.Result, 1)
	go func() {
		done <- p.run(pageCtx, inst, parsed.String(), req, viewport)
	}()

	select {
	case r := <-done:
		r.RequestID = req.ID
		r.URL = req.URL
		r.Format = p.cfg.OutputFormat
		r.Timestamp = start
		r.Elapsed = time.Since(start)
		r.Metadata.BrowserInstance = inst.ID()
		return r
	case <-captureCtx.Done():
		if !inst.IsAlive() {
			inst.RecordFailure()
			result.Error = model.NewError(model.KindBrowserProcessDied, "event loop dead during capture", captureCtx.Err())
		} else {
			result.Error = model.NewError(model.KindTimeout, timeout.String(), captureCtx.Err())
		}
		result.Elapsed = time.Since(start)
		return result
	}
}

func (p *Pipeline) installInterceptor(ctx context.Context, interceptor *utils.RequestInterceptor) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		reqPaused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			resourceType := string(reqPaused.ResourceType)
			if interceptor.ShouldBlock(reqPaused.Request.URL, resourceType) {
				_ = chromedp.Run(ctx, fetch.FailRequest(reqPaused.RequestID, network.ErrorReasonBlockedByClient))
			} else {
				_ = chromedp.Run(ctx, fetch.ContinueRequest(reqPaused.RequestID))
			}
		}()
	})
	_ = chromedp.Run(ctx, fetch.Enable())
}

func (p *Pipeline) run(ctx context.Context, inst *pkgbrowser.Instance, targetURL string, req model.Request, viewport model.Viewport) model.Result {
	var result model.Result

	actions := []chromedp.Action{
		emulation.SetDeviceMetricsOverride(viewport.Width, viewport.Height, viewport.DeviceScaleFactor, viewport.Mobile),
	}
	if !p.cfg.Optimization.EnableJavaScript {
		actions = append(actions, emulation.SetScriptExecutionDisabled(true))
	}
	if p.cfg.Optimization.WaitForNetworkIdle {
		actions = append(actions, chromedp.Navigate(targetURL), chromedp.WaitReady("body", chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.Navigate(targetURL))
	}

	if err := chromedp.Run(ctx, actions...); err != nil {
		if !inst.IsAlive() {
			inst.RecordFailure()
			result.Error = model.NewError(model.KindBrowserProcessDied, err.Error(), err)
		} else {
			result.Error = model.NewError(model.KindURLLoadFailed, err.Error(), err)
		}
		return result
	}

	if req.WaitTime > 0 {
		time.Sleep(req.WaitTime)
	}

	var title, finalURL string
	_ = chromedp.Run(ctx, chromedp.Title(&title))
	if err := chromedp.Run(ctx, chromedp.Location(&finalURL)); err != nil || finalURL == "" {
		finalURL = targetURL
	}
	result.Metadata.PageTitle = title
	result.Metadata.FinalURL = finalURL

	pngBytes, err := p.captureScreenshot(ctx, req)
	if err != nil {
		result.Error = err
		return result
	}

	encoded, encErr := transcode(pngBytes, p.cfg.OutputFormat)
	if encErr != nil {
		result.Error = model.NewError(model.KindCaptureFailed, encErr.Error(), encErr)
		return result
	}

	result.ImageData = encoded
	result.Metadata.FileSizeBytes = int64(len(encoded))
	result.Success = true
	inst.RecordCapture()
	return result
}

func (p *Pipeline) captureScreenshot(ctx context.Context, req model.Request) ([]byte, *model.ScreenshotError) {
	var buf []byte

	switch {
	case req.ElementSelector != "":
		var nodes []*cdp.Node
		if err := chromedp.Run(ctx, chromedp.Nodes(req.ElementSelector, &nodes, chromedp.ByQuery)); err != nil || len(nodes) == 0 {
			return nil, model.NewError(model.KindElementNotFound, req.ElementSelector, err)
		}
		if err := chromedp.Run(ctx, chromedp.Screenshot(req.ElementSelector, &buf, chromedp.ByQuery)); err != nil {
			return nil, model.NewError(model.KindCaptureFailed, err.Error(), err)
		}
	case req.FullPage:
		if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
			return nil, model.NewError(model.KindCaptureFailed, err.Error(), err)
		}
	default:
		if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
			return nil, model.NewError(model.KindCaptureFailed, err.Error(), err)
		}
	}

	if len(buf) == 0 {
		return nil, model.NewError(model.KindCaptureFailed, "empty screenshot payload", nil)
	}
	return buf, nil
}
