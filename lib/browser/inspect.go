package browser

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"gog-receipts/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PageInspector is the capability the harvesting pipeline uses to read
// the rendered document, keeping it independent of the automation driver.
type PageInspector interface {
	FindLabeledValue(ctx context.Context, label string) (string, bool)
	CollectMatchingLinks(ctx context.Context, pattern *regexp.Regexp) ([]string, error)
}

// snapshots the rendered document and the current location
func (s *Session) document(ctx context.Context) (*goquery.Document, *url.URL, error) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	var outerHtml, location string
	err := chromedp.Run(runCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &outerHtml, chromedp.ByQuery),
	)
	if err != nil {
		return nil, nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outerHtml))
	if err != nil {
		return nil, nil, err
	}
	base, err := url.Parse(location)
	if err != nil {
		base = nil
	}
	return doc, base, nil
}

// scans the rendered page for a span containing the label text and
// returns the bolded value inside it, e.g. ("date of purchase", true).
// read failures resolve to absent.
func (s *Session) FindLabeledValue(ctx context.Context, label string) (string, bool) {
	ctx, span := tracer.Start(ctx, "session:FindLabeledValue")
	defer span.End()
	span.SetAttributes(attribute.String("label", label))

	doc, _, err := s.document(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to snapshot document")
		return "", false
	}
	return findLabeledValue(doc, label)
}

func findLabeledValue(doc *goquery.Document, label string) (string, bool) {
	label = strings.ToLower(label)

	value := ""
	doc.Find("span").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(sel.Text()), label) {
			return true
		}
		text := htmlutil.CleanText(sel.Find("b").First().Text())
		if text == "" {
			return true
		}
		value = text
		return false
	})
	return value, value != ""
}

// collects the unique absolute anchor targets on the rendered page that
// match the pattern, resolved against the page's own location
func (s *Session) CollectMatchingLinks(ctx context.Context, pattern *regexp.Regexp) ([]string, error) {
	ctx, span := tracer.Start(ctx, "session:CollectMatchingLinks")
	defer span.End()

	doc, base, err := s.document(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to snapshot document")
		return nil, err
	}
	return collectMatchingLinks(ctx, doc, base, pattern), nil
}

func collectMatchingLinks(ctx context.Context, doc *goquery.Document, base *url.URL, pattern *regexp.Regexp) []string {
	seen := map[string]bool{}
	var links []string
	for _, anchor := range htmlutil.ResolveAnchors(ctx, doc.Find("a[href]"), base) {
		if !pattern.MatchString(anchor.Href) || seen[anchor.Href] {
			continue
		}
		seen[anchor.Href] = true
		links = append(links, anchor.Href)
	}
	return links
}
