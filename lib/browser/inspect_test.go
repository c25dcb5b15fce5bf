package browser

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func docFromString(t *testing.T, s string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

func TestFindLabeledValue(t *testing.T) {
	doc := docFromString(t, `
		<span>Order number <b>123</b></span>
		<span>Date of purchase <b> March 3, 2024 </b></span>
	`)

	value, ok := findLabeledValue(doc, "date of purchase")
	require.True(t, ok)
	require.Equal(t, "March 3, 2024", value)
}

func TestFindLabeledValueAbsent(t *testing.T) {
	doc := docFromString(t, `<span>Date of purchase</span>`)
	_, ok := findLabeledValue(doc, "date of purchase")
	require.False(t, ok)

	doc = docFromString(t, `<div>nothing relevant</div>`)
	_, ok = findLabeledValue(doc, "date of purchase")
	require.False(t, ok)
}

var previewLinkPattern = regexp.MustCompile(`^https://www\.gog\.com/en/email/preview/[0-9a-fA-F]+$`)

func TestCollectMatchingLinks(t *testing.T) {
	doc := docFromString(t, `
		<a href="/en/email/preview/abc123">receipt</a>
		<a href="https://www.gog.com/en/email/preview/abc123">duplicate</a>
		<a href="https://www.gog.com/en/email/preview/def456">another</a>
		<a href="https://www.gog.com/games">not a receipt</a>
		<a href="/en/email/preview/not-hex!">bad token</a>
	`)
	base, err := url.Parse("https://www.gog.com")
	require.NoError(t, err)

	links := collectMatchingLinks(context.Background(), doc, base, previewLinkPattern)
	require.Equal(t, []string{
		"https://www.gog.com/en/email/preview/abc123",
		"https://www.gog.com/en/email/preview/def456",
	}, links)
}
