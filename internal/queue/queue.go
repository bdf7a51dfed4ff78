// Package queue holds the list of files being processed and the scheduler
// that moves them through extraction and redaction one at a time.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"metaredact/internal/metadata"
)

const eventBuffer = 256

type entry struct {
	id       string
	handle   FileHandle
	status   Status
	progress int
	meta     metadata.Mapping
	redacted map[string]string
	err      string
	cancel   context.CancelFunc

	addedAt     time.Time
	completedAt time.Time
}

func (e *entry) view() View {
	v := View{
		ID:       e.id,
		Name:     e.handle.Name,
		MIMEType: e.handle.MIMEType,
		Size:     e.handle.Size,
		Status:   e.status,
		Progress: e.progress,
		Metadata: e.meta.Clone(),
		Error:    e.err,
		AddedAt:  e.addedAt,
	}
	if !e.completedAt.IsZero() {
		completed := e.completedAt
		v.CompletedAt = &completed
	}
	if e.redacted != nil {
		v.RedactedMetadata = make(map[string]string, len(e.redacted))
		for k, val := range e.redacted {
			v.RedactedMetadata[k] = val
		}
	}
	return v
}

// Queue is safe for concurrent use. Every transition is applied by ID and
// only when the file is still present and in the expected prior state.
type Queue struct {
	mu      sync.Mutex
	entries []*entry
	events  chan Event
	wake    chan struct{}
	newID   func() string
	now     func() time.Time
}

func New() *Queue {
	return &Queue{
		events: make(chan Event, eventBuffer),
		wake:   make(chan struct{}, 1),
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Add appends files in order and returns their IDs.
func (q *Queue) Add(handles ...FileHandle) []string {
	if len(handles) == 0 {
		return nil
	}

	q.mu.Lock()
	now := q.now()
	ids := make([]string, 0, len(handles))
	for _, h := range handles {
		e := &entry{id: q.newID(), handle: h, status: StatusQueued, addedAt: now}
		q.entries = append(q.entries, e)
		ids = append(ids, e.id)
		q.publish(EventAdded, e)
	}
	q.mu.Unlock()

	q.Wake()
	return ids
}

// List returns snapshots of all files in queue order.
func (q *Queue) List() []View {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]View, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e.view())
	}
	return out
}

func (q *Queue) Get(id string) (View, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e := q.find(id); e != nil {
		return e.view(), true
	}
	return View{}, false
}

// ClearAll removes every file and cancels the one in flight. It returns the
// number of files removed.
func (q *Queue) ClearAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.entries)
	for _, e := range q.entries {
		if e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
		q.publish(EventRemoved, e)
	}
	q.entries = nil
	return n
}

// ClearCompleted removes files that are Done or Error.
func (q *Queue) ClearCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.entries[:0]
	removed := 0
	for _, e := range q.entries {
		if e.status.Terminal() {
			q.publish(EventRemoved, e)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(q.entries); i++ {
		q.entries[i] = nil
	}
	q.entries = kept
	return removed
}

func (q *Queue) Counts() Counts {
	q.mu.Lock()
	defer q.mu.Unlock()

	c := Counts{Total: len(q.entries)}
	for _, e := range q.entries {
		switch e.status {
		case StatusQueued:
			c.Queued++
		case StatusProcessing:
			c.Processing++
		case StatusDone:
			c.Done++
		case StatusError:
			c.Error++
		}
	}
	return c
}

// Events delivers queue changes. Delivery never blocks the queue: events are
// dropped while the buffer is full.
func (q *Queue) Events() <-chan Event {
	return q.events
}

// Wake nudges a waiting scheduler.
func (q *Queue) Wake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// claimNext moves the first queued file to Processing, unless a file is
// already processing. The returned context is cancelled by ClearAll.
func (q *Queue) claimNext(parent context.Context) (string, FileHandle, context.Context, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var next *entry
	for _, e := range q.entries {
		if e.status == StatusProcessing {
			return "", FileHandle{}, nil, false
		}
		if next == nil && e.status == StatusQueued {
			next = e
		}
	}
	if next == nil {
		return "", FileHandle{}, nil, false
	}

	ctx, cancel := context.WithCancel(parent)
	next.status = StatusProcessing
	next.progress = ProgressStarted
	next.cancel = cancel
	q.publish(EventUpdated, next)
	return next.id, next.handle, ctx, true
}

// setProgress updates a processing file's progress.
func (q *Queue) setProgress(id string, progress int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := q.find(id)
	if e == nil || e.status != StatusProcessing {
		return false
	}
	e.progress = progress
	q.publish(EventUpdated, e)
	return true
}

// complete moves a processing file to Done.
func (q *Queue) complete(id string, meta metadata.Mapping, redacted map[string]string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := q.find(id)
	if e == nil || e.status != StatusProcessing {
		return false
	}
	e.release()
	e.status = StatusDone
	e.progress = ProgressDone
	e.completedAt = q.now()
	e.meta = meta.Clone()
	e.redacted = make(map[string]string, len(redacted))
	for k, v := range redacted {
		e.redacted[k] = v
	}
	q.publish(EventUpdated, e)
	return true
}

// fail moves a processing file to Error with msg verbatim.
func (q *Queue) fail(id, msg string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := q.find(id)
	if e == nil || e.status != StatusProcessing {
		return false
	}
	e.release()
	e.status = StatusError
	e.progress = 0
	e.completedAt = q.now()
	e.err = msg
	q.publish(EventUpdated, e)
	return true
}

func (e *entry) release() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (q *Queue) find(id string) *entry {
	for _, e := range q.entries {
		if e.id == id {
			return e
		}
	}
	return nil
}

// publish must be called with q.mu held.
func (q *Queue) publish(t EventType, e *entry) {
	select {
	case q.events <- Event{Type: t, File: e.view()}:
	default:
	}
}
