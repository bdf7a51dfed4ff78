package queue

import (
	"context"
	"fmt"

	"metaredact/internal/metadata"
	"metaredact/pkg/log"
)

// Pipeline turns one file into its original and redacted metadata. progress
// may be called with intermediate percentages.
type Pipeline interface {
	Process(ctx context.Context, h FileHandle, progress func(int)) (metadata.Mapping, map[string]string, error)
}

// Scheduler runs queued files through a Pipeline, one at a time.
type Scheduler struct {
	queue    *Queue
	pipeline Pipeline
}

func NewScheduler(q *Queue, p Pipeline) *Scheduler {
	return &Scheduler{queue: q, pipeline: p}
}

// Tick starts the first queued file, provided no file is processing, and
// runs it to Done or Error. It reports whether a file was started; nothing
// is started once ctx is done.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	id, h, fileCtx, ok := s.queue.claimNext(ctx)
	if !ok {
		return false
	}

	log.Infow("processing file", "id", id, "file", h.Name, "type", h.MIMEType)

	meta, redacted, err := s.process(fileCtx, id, h)
	if err != nil {
		if !s.queue.fail(id, err.Error()) {
			log.Debugw("discarding result for removed file", "id", id, "file", h.Name)
			return true
		}
		log.Errorw("file failed", "id", id, "file", h.Name, "error", err)
		return true
	}

	if !s.queue.complete(id, meta, redacted) {
		log.Debugw("discarding result for removed file", "id", id, "file", h.Name)
		return true
	}
	log.Infow("file done", "id", id, "file", h.Name, "fields", len(meta))
	return true
}

func (s *Scheduler) process(ctx context.Context, id string, h FileHandle) (meta metadata.Mapping, redacted map[string]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processing panicked: %v", r)
		}
	}()
	return s.pipeline.Process(ctx, h, func(p int) {
		s.queue.setProgress(id, p)
	})
}

// Run processes files as they arrive until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		for s.Tick(ctx) {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.queue.wake:
		}
	}
}

// Drain processes files until none can be started, then returns.
func (s *Scheduler) Drain(ctx context.Context) error {
	for s.Tick(ctx) {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ctx.Err()
}
