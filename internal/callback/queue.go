// Package callback implements the deferred callback pipeline: every
// fill, cancel, and stop-to-limit notification is appended to a FIFO
// queue during matching and only invoked after the triggering top-level
// operation has fully returned (spec.md §4.5).
package callback

// Record is one queued notification. Invoke dispatches it to whichever
// concrete callback closure it was built with (an order's ExecCallback
// or AdminCallback, or a market-maker participant's message handler).
type Record struct {
	OrderID   uint64
	Price     float64
	Size      int64
	Remaining int64
	Invoke    func()
}

// Queue is a plain FIFO; it is never drained re-entrantly — the
// matching engine guards that with its own "already draining" flag
// (spec.md §4.5 "only if no drain is already in progress").
type Queue struct {
	records []Record
}

func (q *Queue) Push(r Record) {
	q.records = append(q.records, r)
}

func (q *Queue) Len() int { return len(q.records) }

// Drain removes and returns every queued record, in FIFO order, as a
// fixed snapshot the caller then invokes one at a time. Nothing a
// callback does can append to that snapshot — a reacting market maker
// submits new orders through the dispatcher, which queues fresh
// records for the next top-level operation's drain, not this one.
func (q *Queue) Drain() []Record {
	r := q.records
	q.records = nil
	return r
}
