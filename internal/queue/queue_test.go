package queue

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaredact/internal/extract"
	"metaredact/internal/group"
	"metaredact/internal/metadata"
	"metaredact/internal/redact"
	"metaredact/internal/testutil"
)

type pipelineFunc func(ctx context.Context, h FileHandle, progress func(int)) (metadata.Mapping, map[string]string, error)

func (f pipelineFunc) Process(ctx context.Context, h FileHandle, progress func(int)) (metadata.Mapping, map[string]string, error) {
	return f(ctx, h, progress)
}

func handle(name string) FileHandle {
	return BytesHandle(name, "text/plain", []byte(name), time.Unix(0, 0))
}

func okPipeline(ctx context.Context, h FileHandle, progress func(int)) (metadata.Mapping, map[string]string, error) {
	progress(ProgressExtracted)
	return metadata.Mapping{"fileName": h.Name}, map[string]string{"fileName": h.Name}, nil
}

func statuses(q *Queue) []Status {
	var out []Status
	for _, v := range q.List() {
		out = append(out, v.Status)
	}
	return out
}

func TestAddIsFIFO(t *testing.T) {
	q := New()
	first := q.Add(handle("a"))
	rest := q.Add(handle("b"), handle("c"))

	require.Len(t, first, 1)
	require.Len(t, rest, 2)

	views := q.List()
	require.Len(t, views, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{views[0].Name, views[1].Name, views[2].Name})
	assert.Equal(t, first[0], views[0].ID)
	for _, v := range views {
		assert.Equal(t, StatusQueued, v.Status)
		assert.Equal(t, 0, v.Progress)
	}
	assert.Nil(t, q.Add())
}

func TestSchedulerProcessesInOrderOneAtATime(t *testing.T) {
	q := New()
	var order []string
	var maxProcessing int

	s := NewScheduler(q, pipelineFunc(func(ctx context.Context, h FileHandle, progress func(int)) (metadata.Mapping, map[string]string, error) {
		order = append(order, h.Name)
		c := q.Counts()
		if c.Processing > maxProcessing {
			maxProcessing = c.Processing
		}
		if h.Name == "b" {
			views := q.List()
			assert.Equal(t, StatusDone, views[0].Status)
			assert.Equal(t, StatusProcessing, views[1].Status)
			assert.Equal(t, StatusQueued, views[2].Status)
		}
		return okPipeline(ctx, h, progress)
	}))

	q.Add(handle("a"), handle("b"), handle("c"))
	require.NoError(t, s.Drain(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 1, maxProcessing)
	assert.Equal(t, []Status{StatusDone, StatusDone, StatusDone}, statuses(q))
	for _, v := range q.List() {
		assert.Equal(t, ProgressDone, v.Progress)
	}
}

func TestSchedulerProgressCheckpoints(t *testing.T) {
	q := New()
	var seen []int
	s := NewScheduler(q, pipelineFunc(func(ctx context.Context, h FileHandle, progress func(int)) (metadata.Mapping, map[string]string, error) {
		v, _ := q.Get(q.List()[0].ID)
		seen = append(seen, v.Progress)
		progress(ProgressExtracted)
		v, _ = q.Get(q.List()[0].ID)
		seen = append(seen, v.Progress)
		return okPipeline(ctx, h, progress)
	}))

	q.Add(handle("a"))
	assert.True(t, s.Tick(context.Background()))

	v := q.List()[0]
	seen = append(seen, v.Progress)
	assert.Equal(t, []int{ProgressStarted, ProgressExtracted, ProgressDone}, seen)
}

func TestSchedulerFailureIsIsolated(t *testing.T) {
	q := New()
	s := NewScheduler(q, pipelineFunc(func(ctx context.Context, h FileHandle, progress func(int)) (metadata.Mapping, map[string]string, error) {
		if h.Name == "bad" {
			progress(ProgressExtracted)
			return nil, nil, errors.New("classifier backend unavailable")
		}
		return okPipeline(ctx, h, progress)
	}))

	q.Add(handle("bad"), handle("good"))
	require.NoError(t, s.Drain(context.Background()))

	views := q.List()
	assert.Equal(t, StatusError, views[0].Status)
	assert.Equal(t, "classifier backend unavailable", views[0].Error)
	assert.Equal(t, 0, views[0].Progress)
	assert.Nil(t, views[0].Metadata)
	assert.Nil(t, views[0].RedactedMetadata)

	assert.Equal(t, StatusDone, views[1].Status)
}

func TestSchedulerRecoversFromPanics(t *testing.T) {
	q := New()
	s := NewScheduler(q, pipelineFunc(func(context.Context, FileHandle, func(int)) (metadata.Mapping, map[string]string, error) {
		panic("boom")
	}))

	q.Add(handle("a"))
	assert.True(t, s.Tick(context.Background()))

	v := q.List()[0]
	assert.Equal(t, StatusError, v.Status)
	assert.Contains(t, v.Error, "boom")
}

func TestTerminalStatesAreStable(t *testing.T) {
	q := New()
	calls := 0
	s := NewScheduler(q, pipelineFunc(func(ctx context.Context, h FileHandle, progress func(int)) (metadata.Mapping, map[string]string, error) {
		calls++
		if h.Name == "bad" {
			return nil, nil, errors.New("nope")
		}
		return okPipeline(ctx, h, progress)
	}))

	ids := q.Add(handle("ok"), handle("bad"))
	require.NoError(t, s.Drain(context.Background()))
	before := q.List()

	for i := 0; i < 3; i++ {
		assert.False(t, s.Tick(context.Background()))
	}
	assert.Equal(t, before, q.List())
	assert.Equal(t, 2, calls)

	assert.False(t, q.setProgress(ids[0], 10))
	assert.False(t, q.fail(ids[0], "late"))
	assert.False(t, q.complete(ids[1], metadata.Mapping{}, nil))
	assert.Equal(t, before, q.List())
}

func TestClaimNextIsExclusive(t *testing.T) {
	q := New()
	q.Add(handle("a"), handle("b"))

	id, _, ctx, ok := q.claimNext(context.Background())
	require.True(t, ok)
	require.NotNil(t, ctx)

	_, _, _, ok = q.claimNext(context.Background())
	assert.False(t, ok, "second claim while one file is processing")

	s := NewScheduler(q, pipelineFunc(okPipeline))
	assert.False(t, s.Tick(context.Background()))

	require.True(t, q.complete(id, metadata.Mapping{}, map[string]string{}))
	assert.True(t, s.Tick(context.Background()))
}

func TestClearCompleted(t *testing.T) {
	q := New()
	s := NewScheduler(q, pipelineFunc(func(ctx context.Context, h FileHandle, progress func(int)) (metadata.Mapping, map[string]string, error) {
		if h.Name == "bad" {
			return nil, nil, errors.New("nope")
		}
		return okPipeline(ctx, h, progress)
	}))

	q.Add(handle("ok"), handle("bad"))
	require.NoError(t, s.Drain(context.Background()))
	queued := q.Add(handle("waiting"))

	assert.Equal(t, 2, q.ClearCompleted())

	views := q.List()
	require.Len(t, views, 1)
	assert.Equal(t, queued[0], views[0].ID)
	assert.Equal(t, StatusQueued, views[0].Status)
}

func TestClearAllCancelsInFlight(t *testing.T) {
	q := New()
	started := make(chan struct{})
	s := NewScheduler(q, pipelineFunc(func(ctx context.Context, h FileHandle, progress func(int)) (metadata.Mapping, map[string]string, error) {
		close(started)
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}))

	q.Add(handle("slow"), handle("next"))

	done := make(chan bool)
	go func() { done <- s.Tick(context.Background()) }()

	<-started
	assert.Equal(t, 2, q.ClearAll())

	select {
	case ran := <-done:
		assert.True(t, ran)
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight file was not cancelled")
	}

	assert.Empty(t, q.List())
	assert.Equal(t, Counts{}, q.Counts())
	assert.False(t, s.Tick(context.Background()))
}

func TestCounts(t *testing.T) {
	q := New()
	s := NewScheduler(q, pipelineFunc(okPipeline))
	q.Add(handle("a"), handle("b"))
	assert.True(t, s.Tick(context.Background()))

	c := q.Counts()
	assert.Equal(t, Counts{Total: 2, Queued: 1, Done: 1}, c)
	assert.Equal(t, 1, c.Finished())
}

func TestEvents(t *testing.T) {
	q := New()
	s := NewScheduler(q, pipelineFunc(okPipeline))
	id := q.Add(handle("a"))[0]
	s.Tick(context.Background())

	var got []Event
	for len(q.Events()) > 0 {
		got = append(got, <-q.Events())
	}
	require.NotEmpty(t, got)
	assert.Equal(t, EventAdded, got[0].Type)
	assert.Equal(t, id, got[0].File.ID)

	last := got[len(got)-1]
	assert.Equal(t, EventUpdated, last.Type)
	assert.Equal(t, StatusDone, last.File.Status)
}

func TestEventsNeverBlock(t *testing.T) {
	q := New()
	for i := 0; i < eventBuffer+10; i++ {
		q.Add(handle("a"))
	}
	assert.Equal(t, eventBuffer+10, q.Counts().Total)
}

func TestRunProcessesNewArrivals(t *testing.T) {
	q := New()
	s := NewScheduler(q, pipelineFunc(okPipeline))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		runErr = s.Run(ctx)
	}()

	q.Add(handle("a"))
	assert.Eventually(t, func() bool { return q.Counts().Done == 1 }, 5*time.Second, 10*time.Millisecond)

	q.Add(handle("b"))
	assert.Eventually(t, func() bool { return q.Counts().Done == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()
	assert.ErrorIs(t, runErr, context.Canceled)
}

func TestViewsAreCopies(t *testing.T) {
	q := New()
	s := NewScheduler(q, pipelineFunc(okPipeline))
	q.Add(handle("a"))
	s.Tick(context.Background())

	v := q.List()[0]
	v.Metadata["fileName"] = "changed"
	v.RedactedMetadata["fileName"] = "changed"

	again := q.List()[0]
	assert.Equal(t, "a", again.Metadata["fileName"])
	assert.Equal(t, "a", again.RedactedMetadata["fileName"])
}

func workflow() *Workflow {
	return NewWorkflow(redact.NewRedactor(redact.NewRuleClassifier("")))
}

func TestWorkflowUnsupportedFile(t *testing.T) {
	q := New()
	s := NewScheduler(q, workflow())
	q.Add(BytesHandle("notes.txt", "text/plain", []byte("hello"), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	require.NoError(t, s.Drain(context.Background()))

	v := q.List()[0]
	require.Equal(t, StatusDone, v.Status)
	assert.Equal(t, metadata.Mapping{
		"fileName":     "notes.txt",
		"fileSize":     "0.00 MB",
		"fileType":     "text/plain",
		"lastModified": "2024-01-02T03:04:05.000Z",
		"info":         extract.NoteUnsupported,
	}, v.Metadata)
	assert.Len(t, v.RedactedMetadata, len(v.Metadata))

	groups := group.Group(v.Metadata)
	assert.Equal(t, metadata.Mapping{group.InfoKey: extract.NoteUnsupported}, groups[group.Other])
}

func TestWorkflowJPEGWithoutExif(t *testing.T) {
	q := New()
	s := NewScheduler(q, workflow())
	q.Add(BytesHandle("beach.jpg", "image/jpeg", []byte{0xff, 0xd8, 0xff, 0xd9}, time.Unix(0, 0)))
	require.NoError(t, s.Drain(context.Background()))

	v := q.List()[0]
	require.Equal(t, StatusDone, v.Status)
	assert.Equal(t, extract.NoteDemoGPS, v.Metadata["info"])

	coord, ok := group.Group(v.Metadata).Location()
	require.True(t, ok)
	assert.InDelta(t, 37.82444166666666, coord.Lat, 1e-9)
	assert.InDelta(t, -122.41784722222222, coord.Lon, 1e-9)

	assert.Len(t, v.RedactedMetadata, len(v.Metadata))
	assert.Equal(t, redact.DefaultMarker, v.RedactedMetadata["GPSLatitude"])
	_, ok = group.Group(metadata.FromStrings(v.RedactedMetadata)).Location()
	assert.False(t, ok)
}

func TestWorkflowRedactionFailure(t *testing.T) {
	failing := redact.NewRedactor(redact.ClassifierFunc(func(context.Context, metadata.Mapping) (map[string]any, error) {
		return nil, errors.New("classifier backend unavailable")
	}))

	q := New()
	s := NewScheduler(q, NewWorkflow(failing))
	q.Add(handle("a.txt"), handle("b.txt"))
	require.NoError(t, s.Drain(context.Background()))

	views := q.List()
	assert.Equal(t, StatusError, views[0].Status)
	assert.Contains(t, views[0].Error, "classifier backend unavailable")
	assert.Nil(t, views[0].Metadata)
	assert.Equal(t, StatusError, views[1].Status)
}

func TestWorkflowExtractionFailure(t *testing.T) {
	q := New()
	s := NewScheduler(q, workflow())
	q.Add(BytesHandle("fake.jpg", "image/jpeg", []byte("not a jpeg at all"), time.Unix(0, 0)))
	require.NoError(t, s.Drain(context.Background()))

	v := q.List()[0]
	assert.Equal(t, StatusError, v.Status)
	assert.Contains(t, v.Error, "jpeg")
}

func TestWorkflowOpenFailure(t *testing.T) {
	h := handle("gone.txt")
	h.Open = func() (io.ReadCloser, error) { return nil, os.ErrNotExist }

	_, _, err := workflow().Process(context.Background(), h, func(int) {})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWalk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "photo.bin"), []byte{0xff, 0xd8, 0xff, 0xd9}, 0o644))
	single := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(single, []byte("%PDF-1.4\n"), 0o644))

	handles, err := Walk(context.Background(), dir, single)
	require.NoError(t, err)
	require.Len(t, handles, 3)

	base := filepath.Base(dir)
	assert.Equal(t, base+"/notes.txt", handles[0].Name)
	assert.Equal(t, "text/plain", handles[0].MIMEType)
	assert.Equal(t, int64(5), handles[0].Size)
	assert.Equal(t, base+"/sub/photo.bin", handles[1].Name)
	assert.Equal(t, "image/jpeg", handles[1].MIMEType)
	assert.Equal(t, "doc.pdf", handles[2].Name)
	assert.Equal(t, "application/pdf", handles[2].MIMEType)

	rc, err := handles[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWalkMissingPath(t *testing.T) {
	_, err := Walk(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestTickWithCancelledContextLeavesFilesQueued(t *testing.T) {
	q := New()
	calls := 0
	s := NewScheduler(q, pipelineFunc(func(ctx context.Context, h FileHandle, progress func(int)) (metadata.Mapping, map[string]string, error) {
		calls++
		return okPipeline(ctx, h, progress)
	}))
	q.Add(handle("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, s.Tick(ctx))
	assert.ErrorIs(t, s.Drain(ctx), context.Canceled)
	assert.Equal(t, []Status{StatusQueued}, statuses(q))
	assert.Zero(t, calls)
}

func TestTimestamps(t *testing.T) {
	q := New()
	clock := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	q.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	s := NewScheduler(q, pipelineFunc(func(ctx context.Context, h FileHandle, progress func(int)) (metadata.Mapping, map[string]string, error) {
		if h.Name == "bad" {
			return nil, nil, errors.New("nope")
		}
		return okPipeline(ctx, h, progress)
	}))

	q.Add(handle("ok"), handle("bad"))
	added := time.Date(2024, 5, 6, 7, 8, 10, 0, time.UTC)
	for _, v := range q.List() {
		assert.Equal(t, added, v.AddedAt)
		assert.Nil(t, v.CompletedAt)
	}

	require.NoError(t, s.Drain(context.Background()))

	views := q.List()
	require.NotNil(t, views[0].CompletedAt)
	require.NotNil(t, views[1].CompletedAt)
	assert.Equal(t, added.Add(time.Second), *views[0].CompletedAt)
	assert.Equal(t, added.Add(2*time.Second), *views[1].CompletedAt)
	assert.Equal(t, added, views[1].AddedAt)
}

func TestWorkflowPDFInfo(t *testing.T) {
	data := testutil.BuildPDF("<< /Title (Quarterly Plan) /Author (Jane Doe) >>")

	q := New()
	s := NewScheduler(q, workflow())
	q.Add(BytesHandle("plan.pdf", "application/pdf", data, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	require.NoError(t, s.Drain(context.Background()))

	v := q.List()[0]
	require.Equal(t, StatusDone, v.Status, v.Error)

	assert.Equal(t, "plan.pdf", v.Metadata["fileName"])
	assert.Regexp(t, `^\d+\.\d{2} MB$`, v.Metadata["fileSize"])
	assert.Equal(t, "0.00 MB", v.Metadata["fileSize"])
	assert.Equal(t, "application/pdf", v.Metadata["fileType"])
	assert.Equal(t, "2024-01-02T03:04:05.000Z", v.Metadata["lastModified"])
	assert.Equal(t, "Quarterly Plan", v.Metadata["Title"])
	assert.Equal(t, "Jane Doe", v.Metadata["Author"])

	assert.Len(t, v.RedactedMetadata, len(v.Metadata))
	assert.Equal(t, "Quarterly Plan", v.RedactedMetadata["Title"])
	assert.Equal(t, redact.DefaultMarker, v.RedactedMetadata["Author"])
	assert.Equal(t, "application/pdf", v.RedactedMetadata["fileType"])
}
