package browser

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("gog-receipts.lib.browser")

type Options struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	// per-navigation timeout
	Timeout time.Duration
	// bearer credential attached as a default request header for the
	// session's lifetime
	AccessToken string
}

// Session owns one browser tab for the duration of a run. it must be
// released on every exit path, Release is safe to call more than once.
type Session struct {
	ctx     context.Context
	cancel  func()
	timeout time.Duration
	net     *netTracker

	releaseOnce sync.Once
}

func NewSession(ctx context.Context, opts Options) (*Session, error) {
	ctx, span := tracer.Start(ctx, "NewSession")
	defer span.End()

	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = 1280
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = 800
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	span.SetAttributes(
		attribute.Bool("headless", opts.Headless),
		attribute.Int("viewport_width", opts.ViewportWidth),
		attribute.Int("viewport_height", opts.ViewportHeight),
	)

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx: taskCtx,
		cancel: func() {
			cancelTask()
			cancelAlloc()
		},
		timeout: opts.Timeout,
		net:     newNetTracker(),
	}
	s.net.listen(taskCtx)

	actions := []chromedp.Action{
		network.Enable(),
		chromedp.EmulateViewport(int64(opts.ViewportWidth), int64(opts.ViewportHeight)),
	}
	if opts.AccessToken != "" {
		actions = append(actions, network.SetExtraHTTPHeaders(network.Headers{
			"Authorization": "Bearer " + opts.AccessToken,
		}))
	}

	err := chromedp.Run(taskCtx, actions...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start browser")
		s.Release()
		return nil, err
	}
	return s, nil
}

func (s *Session) Release() {
	s.releaseOnce.Do(func() {
		// gracefully close the browser before tearing down the allocator
		_ = chromedp.Cancel(s.ctx)
		s.cancel()
	})
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	_, span := tracer.Start(ctx, "session:Navigate")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
		return err
	}
	return nil
}

const settleScript = `(async () => {
	if (document.fonts && document.fonts.ready) {
		try { await document.fonts.ready; } catch (e) {}
	}
	await new Promise((resolve) => requestAnimationFrame(() => requestAnimationFrame(resolve)));
})()`

// waits until the page has settled enough that late async work and
// rendering are done: the network has been quiet for a second, fonts are
// loaded, and two animation frames have passed. the network-idle wait is
// best effort and gives up silently at the navigation timeout.
func (s *Session) WaitSettled(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session:WaitSettled")
	defer span.End()

	s.net.awaitIdle(s.ctx, time.Second, s.timeout)

	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	err := chromedp.Run(runCtx, chromedp.Evaluate(settleScript, nil,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		},
	))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settle evaluation failed")
		return err
	}
	return nil
}

// A4 paper, inches
const (
	paperWidth  = 8.27
	paperHeight = 11.69
)

type PDFOptions struct {
	PrintBackground bool
}

// renders the current page to a pdf file at path
func (s *Session) PrintPDF(ctx context.Context, path string, opts PDFOptions) error {
	_, span := tracer.Start(ctx, "session:PrintPDF")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	var buf []byte
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, _, err = page.PrintToPDF().
			WithPrintBackground(opts.PrintBackground).
			WithPaperWidth(paperWidth).
			WithPaperHeight(paperHeight).
			Do(ctx)
		return err
	}))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pdf render failed")
		return err
	}

	err = os.WriteFile(path, buf, 0o644)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pdf write failed")
		return err
	}
	return nil
}
