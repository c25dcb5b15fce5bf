package receipts

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gog-receipts/lib/browser"
	"gog-receipts/lib/gog/orders"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("gog-receipts.lib.gog.receipts")

// base origin relative receipt references resolve against
const DefaultBaseUrl = "https://www.gog.com"

// the label next to the purchase date on receipt preview pages, used as
// a fallback when the orders api did not report a date
const purchaseDateLabel = "date of purchase"

// Renderer is the slice of the browser session the pipeline drives,
// *browser.Session implements it.
type Renderer interface {
	Navigate(ctx context.Context, url string) error
	WaitSettled(ctx context.Context) error
	FindLabeledValue(ctx context.Context, label string) (string, bool)
	PrintPDF(ctx context.Context, path string, opts browser.PDFOptions) error
	Release()
}

type Options struct {
	// directory pdfs are written to, created if absent.
	// defaults to "receipts".
	OutputDir       string
	PrintBackground bool
	Browser         browser.Options
	// receives progress events, nil is a safe no-op
	OnProgress func(Event)
	// defaults to DefaultBaseUrl
	BaseUrl string
	// overrides the browser session factory, tests rely on this
	NewRenderer func(ctx context.Context, opts browser.Options) (Renderer, error)
}

type target struct {
	url          string
	id           string
	purchaseDate string
}

// renders one pdf per unique receipt url, in catalog order, and returns
// the paths written. any navigation or render failure aborts the whole
// harvest; files already written stay on disk but no paths are returned.
func Harvest(ctx context.Context, all []orders.Order, opts Options) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Harvest")
	defer span.End()

	if opts.OutputDir == "" {
		opts.OutputDir = "receipts"
	}
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	emit := opts.OnProgress
	if emit == nil {
		emit = func(Event) {}
	}
	newRenderer := opts.NewRenderer
	if newRenderer == nil {
		newRenderer = func(ctx context.Context, o browser.Options) (Renderer, error) {
			return browser.NewSession(ctx, o)
		}
	}

	base, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	session, err := newRenderer(ctx, opts.Browser)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to acquire browser session")
		return nil, err
	}
	defer session.Release()

	emit(FoundEvent{Count: len(all)})
	span.SetAttributes(attribute.Int("orders", len(all)))

	err = os.MkdirAll(opts.OutputDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	targets := canonicalize(all, base)
	slog.InfoContext(ctx, "collected receipt pages", "unique", len(targets), "orders", len(all))

	var saved []string
	for i, t := range targets {
		emit(ProcessingEvent{Index: i, Total: len(all), Url: t.url})
		emit(NavigatingEvent{Url: t.url})

		err = session.Navigate(ctx, t.url)
		if err != nil {
			span.SetStatus(codes.Error, "navigation failed")
			return nil, fmt.Errorf("navigate to %s: %w", t.url, err)
		}
		err = session.WaitSettled(ctx)
		if err != nil {
			span.SetStatus(codes.Error, "settle failed")
			return nil, fmt.Errorf("wait for %s to settle: %w", t.url, err)
		}

		// the api-reported purchase date wins, the rendered page is only
		// scanned when the api did not supply one
		purchaseDate := t.purchaseDate
		if purchaseDate == "" {
			purchaseDate, _ = session.FindLabeledValue(ctx, purchaseDateLabel)
		}

		path := filepath.Join(opts.OutputDir, Filename(t.id, purchaseDate)+".pdf")
		err = session.PrintPDF(ctx, path, browser.PDFOptions{
			PrintBackground: opts.PrintBackground,
		})
		if err != nil {
			span.SetStatus(codes.Error, "render failed")
			return nil, fmt.Errorf("render %s: %w", t.url, err)
		}

		saved = append(saved, path)
		slog.InfoContext(ctx, "receipt saved", "url", t.url, "path", path)
		emit(SavedEvent{Index: i, Total: len(all), Url: t.url, Path: path})
	}

	emit(DoneEvent{Saved: len(saved)})
	return saved, nil
}

// resolves every order's receipt reference to an absolute url, derives
// the stable identifier and purchase date, and drops duplicates keeping
// the first occurrence. orders with a missing or unparseable reference
// are skipped.
func canonicalize(all []orders.Order, base *url.URL) []target {
	seen := map[string]bool{}
	var out []target
	for _, order := range all {
		if order.ReceiptLink == "" {
			continue
		}
		ref, err := url.Parse(order.ReceiptLink)
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(ref)
		abs := resolved.String()
		if seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, target{
			url: abs,
			// the identifier comes from the path only, query strings and
			// fragments must not leak into filenames
			id:           lastPathSegment(resolved.Path),
			purchaseDate: purchaseDate(int64(order.Date)),
		})
	}
	return out
}

func lastPathSegment(path string) string {
	parts := strings.Split(path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return "receipt"
}

// formats an epoch-seconds timestamp as YYYY-MM-DD, "" when absent
func purchaseDate(epochSeconds int64) string {
	if epochSeconds <= 0 {
		return ""
	}
	return time.Unix(epochSeconds, 0).UTC().Format("2006-01-02")
}
