package receipts

// progress events emitted by the pipeline to its caller. consumers must
// tolerate any subset being delivered, a nil handler is always safe.
type Event interface {
	isEvent()
}

// the number of orders discovered in the catalog, before deduplication
type FoundEvent struct {
	Count int
}

// the session is about to navigate to a receipt page
type NavigatingEvent struct {
	Url string
}

// one deduplicated receipt is being processed. Index counts processed
// items, Total is the discovered order count.
type ProcessingEvent struct {
	Index int
	Total int
	Url   string
}

// one receipt pdf was written to Path
type SavedEvent struct {
	Index int
	Total int
	Url   string
	Path  string
}

// the harvest finished, Saved pdfs were written
type DoneEvent struct {
	Saved int
}

func (FoundEvent) isEvent()      {}
func (NavigatingEvent) isEvent() {}
func (ProcessingEvent) isEvent() {}
func (SavedEvent) isEvent()      {}
func (DoneEvent) isEvent()       {}
