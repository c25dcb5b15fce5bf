package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// tracks in-flight requests on the session's target so the settle
// heuristic can tell when the network has gone quiet
type netTracker struct {
	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	last     time.Time
}

func newNetTracker() *netTracker {
	return &netTracker{
		inflight: map[network.RequestID]struct{}{},
		last:     time.Now(),
	}
}

func (t *netTracker) listen(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			t.mu.Lock()
			t.inflight[e.RequestID] = struct{}{}
			t.last = time.Now()
			t.mu.Unlock()
		case *network.EventLoadingFinished:
			t.done(e.RequestID)
		case *network.EventLoadingFailed:
			t.done(e.RequestID)
		}
	})
}

func (t *netTracker) done(id network.RequestID) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.last = time.Now()
	t.mu.Unlock()
}

func (t *netTracker) quietFor(idle time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && time.Since(t.last) >= idle
}

// blocks until no request has been in flight for `idle`, or until the
// deadline or context expires. best effort, never returns an error.
func (t *netTracker) awaitIdle(ctx context.Context, idle, deadline time.Duration) {
	timeout := time.NewTimer(deadline)
	defer timeout.Stop()
	tick := time.NewTicker(time.Millisecond * 100)
	defer tick.Stop()

	for {
		if t.quietFor(idle) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-timeout.C:
			return
		case <-tick.C:
		}
	}
}
