package queue

import (
	"context"
	"errors"
	"fmt"
	"io"

	"metaredact/internal/extract"
	"metaredact/internal/metadata"
	"metaredact/internal/redact"
	"metaredact/pkg/log"
)

// Redactor is the part of *redact.Redactor the workflow needs.
type Redactor interface {
	Redact(ctx context.Context, m metadata.Mapping) (map[string]string, error)
}

// Workflow reads a file, extracts and normalizes its metadata, then redacts
// it.
type Workflow struct {
	redactor Redactor
	extract  func(data []byte, mimeType string) (metadata.Mapping, error)
}

func NewWorkflow(r Redactor) *Workflow {
	return &Workflow{redactor: r, extract: extract.Extract}
}

func (w *Workflow) Process(ctx context.Context, h FileHandle, progress func(int)) (metadata.Mapping, map[string]string, error) {
	data, err := readHandle(ctx, h)
	if err != nil {
		return nil, nil, err
	}

	fields, err := w.extract(data, h.MIMEType)
	if err != nil {
		return nil, nil, err
	}
	progress(ProgressExtracted)

	meta := metadata.Normalize(metadata.Base{
		Name:         h.Name,
		Size:         h.Size,
		Type:         h.MIMEType,
		LastModified: h.LastModified,
	}, fields)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	redacted, err := w.redactor.Redact(ctx, meta)
	if err != nil {
		var redactErr *redact.RedactionError
		if errors.As(err, &redactErr) {
			log.Warnw("redaction failed, original metadata withheld",
				"file", redactErr.FileName, "fields", len(redactErr.Original))
		}
		return nil, nil, err
	}
	return meta, redacted, nil
}

func readHandle(ctx context.Context, h FileHandle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.Open == nil {
		return nil, fmt.Errorf("read %s: no content", h.Name)
	}

	rc, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", h.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", h.Name, err)
	}
	return data, nil
}
