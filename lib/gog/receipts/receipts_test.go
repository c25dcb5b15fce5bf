package receipts

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"gog-receipts/lib/browser"
	"gog-receipts/lib/gog/orders"

	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	navigated   []string
	rendered    []string
	released    int
	settleCalls int

	// rendered page date per url, consulted by FindLabeledValue
	pageDates map[string]string

	navigateErr error
	renderErr   error
	current     string
}

func (f *fakeRenderer) Navigate(ctx context.Context, url string) error {
	if f.navigateErr != nil {
		return f.navigateErr
	}
	f.navigated = append(f.navigated, url)
	f.current = url
	return nil
}

func (f *fakeRenderer) WaitSettled(ctx context.Context) error {
	f.settleCalls++
	return nil
}

func (f *fakeRenderer) FindLabeledValue(ctx context.Context, label string) (string, bool) {
	date, ok := f.pageDates[f.current]
	return date, ok
}

func (f *fakeRenderer) PrintPDF(ctx context.Context, path string, opts browser.PDFOptions) error {
	if f.renderErr != nil {
		return f.renderErr
	}
	f.rendered = append(f.rendered, path)
	return nil
}

func (f *fakeRenderer) Release() {
	f.released++
}

func harvestOptions(t *testing.T, fake *fakeRenderer) Options {
	return Options{
		OutputDir: t.TempDir(),
		NewRenderer: func(ctx context.Context, opts browser.Options) (Renderer, error) {
			return fake, nil
		},
	}
}

func TestHarvestRendersEachReceiptInOrder(t *testing.T) {
	fake := &fakeRenderer{}
	opts := harvestOptions(t, fake)

	saved, err := Harvest(context.Background(), []orders.Order{
		{ReceiptLink: "/en/email/preview/aaa", Date: 1700000000},
		{ReceiptLink: "https://www.gog.com/en/email/preview/bbb"},
	}, opts)
	require.NoError(t, err)

	require.Equal(t, []string{
		"https://www.gog.com/en/email/preview/aaa",
		"https://www.gog.com/en/email/preview/bbb",
	}, fake.navigated)
	require.Equal(t, 2, fake.settleCalls)

	require.Equal(t, []string{
		filepath.Join(opts.OutputDir, "2023-11-14 Order aaa.pdf"),
		filepath.Join(opts.OutputDir, "bbb.pdf"),
	}, saved)
	require.Equal(t, 1, fake.released)
}

func TestHarvestDeduplicatesByAbsoluteUrl(t *testing.T) {
	fake := &fakeRenderer{}
	opts := harvestOptions(t, fake)

	// relative and absolute forms of the same receipt count once
	saved, err := Harvest(context.Background(), []orders.Order{
		{ReceiptLink: "/en/email/preview/aaa"},
		{ReceiptLink: "https://www.gog.com/en/email/preview/aaa"},
		{ReceiptLink: ""},
	}, opts)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.Equal(t, []string{"https://www.gog.com/en/email/preview/aaa"}, fake.navigated)
}

func TestHarvestFallsBackToPageDate(t *testing.T) {
	fake := &fakeRenderer{
		pageDates: map[string]string{
			"https://www.gog.com/en/email/preview/aaa": "March 3, 2024",
		},
	}
	opts := harvestOptions(t, fake)

	saved, err := Harvest(context.Background(), []orders.Order{
		{ReceiptLink: "/en/email/preview/aaa"},
	}, opts)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(opts.OutputDir, "March-3-2024 Order aaa.pdf"),
	}, saved)
}

func TestHarvestApiDateWinsOverPageDate(t *testing.T) {
	fake := &fakeRenderer{
		pageDates: map[string]string{
			"https://www.gog.com/en/email/preview/aaa": "March 3, 2024",
		},
	}
	opts := harvestOptions(t, fake)

	saved, err := Harvest(context.Background(), []orders.Order{
		{ReceiptLink: "/en/email/preview/aaa", Date: 1700000000},
	}, opts)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(opts.OutputDir, "2023-11-14 Order aaa.pdf"),
	}, saved)
}

func TestHarvestStripsQueryFromIdentifier(t *testing.T) {
	fake := &fakeRenderer{}
	opts := harvestOptions(t, fake)

	// query strings and fragments stay on the navigated url but never
	// reach the filename
	saved, err := Harvest(context.Background(), []orders.Order{
		{ReceiptLink: "/en/email/preview/aaa?utm_source=mail&v=2"},
		{ReceiptLink: "/en/email/preview/bbb#section"},
	}, opts)
	require.NoError(t, err)

	require.Equal(t, []string{
		"https://www.gog.com/en/email/preview/aaa?utm_source=mail&v=2",
		"https://www.gog.com/en/email/preview/bbb#section",
	}, fake.navigated)
	require.Equal(t, []string{
		filepath.Join(opts.OutputDir, "aaa.pdf"),
		filepath.Join(opts.OutputDir, "bbb.pdf"),
	}, saved)
}

func TestHarvestAbortsOnRenderFailure(t *testing.T) {
	renderErr := errors.New("render timed out")
	fake := &fakeRenderer{renderErr: renderErr}
	opts := harvestOptions(t, fake)

	saved, err := Harvest(context.Background(), []orders.Order{
		{ReceiptLink: "/en/email/preview/aaa"},
		{ReceiptLink: "/en/email/preview/bbb"},
	}, opts)
	require.ErrorIs(t, err, renderErr)
	require.Nil(t, saved)

	// only the failing item was attempted, and the session was still
	// released
	require.Equal(t, []string{"https://www.gog.com/en/email/preview/aaa"}, fake.navigated)
	require.Equal(t, 1, fake.released)
}

func TestHarvestReleasesSessionOnNavigationFailure(t *testing.T) {
	fake := &fakeRenderer{navigateErr: errors.New("net::ERR_TIMED_OUT")}
	opts := harvestOptions(t, fake)

	_, err := Harvest(context.Background(), []orders.Order{
		{ReceiptLink: "/en/email/preview/aaa"},
	}, opts)
	require.Error(t, err)
	require.Equal(t, 1, fake.released)
}

func TestHarvestEmitsProgressEvents(t *testing.T) {
	fake := &fakeRenderer{}
	opts := harvestOptions(t, fake)

	var events []Event
	opts.OnProgress = func(ev Event) {
		events = append(events, ev)
	}

	_, err := Harvest(context.Background(), []orders.Order{
		{ReceiptLink: "/en/email/preview/aaa"},
		{ReceiptLink: "/en/email/preview/aaa"},
	}, opts)
	require.NoError(t, err)

	require.Equal(t, []Event{
		FoundEvent{Count: 2},
		ProcessingEvent{Index: 0, Total: 2, Url: "https://www.gog.com/en/email/preview/aaa"},
		NavigatingEvent{Url: "https://www.gog.com/en/email/preview/aaa"},
		SavedEvent{
			Index: 0,
			Total: 2,
			Url:   "https://www.gog.com/en/email/preview/aaa",
			Path:  filepath.Join(opts.OutputDir, "aaa.pdf"),
		},
		DoneEvent{Saved: 1},
	}, events)
}

func TestHarvestNilProgressHandlerIsSafe(t *testing.T) {
	fake := &fakeRenderer{}
	opts := harvestOptions(t, fake)
	opts.OnProgress = nil

	_, err := Harvest(context.Background(), []orders.Order{
		{ReceiptLink: "/en/email/preview/aaa"},
	}, opts)
	require.NoError(t, err)
}

func TestHarvestSessionAcquisitionFailure(t *testing.T) {
	acquireErr := errors.New("no chrome installed")
	_, err := Harvest(context.Background(), nil, Options{
		OutputDir: t.TempDir(),
		NewRenderer: func(ctx context.Context, opts browser.Options) (Renderer, error) {
			return nil, fmt.Errorf("launch browser: %w", acquireErr)
		},
	})
	require.ErrorIs(t, err, acquireErr)
}

func TestLastPathSegment(t *testing.T) {
	require.Equal(t, "abc", lastPathSegment("/en/email/preview/abc"))
	require.Equal(t, "abc", lastPathSegment("/en/email/preview/abc/"))
	require.Equal(t, "receipt", lastPathSegment("/"))
	require.Equal(t, "receipt", lastPathSegment(""))
}

func TestPurchaseDate(t *testing.T) {
	require.Equal(t, "", purchaseDate(0))
	require.Equal(t, "", purchaseDate(-5))
	require.Equal(t, "2023-11-14", purchaseDate(1700000000))
}
