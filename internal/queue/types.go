package queue

import (
	"bytes"
	"io"
	"os"
	"time"

	"metaredact/internal/metadata"
)

// Status is the lifecycle state of a queued file.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Progress checkpoints.
const (
	ProgressStarted   = 25
	ProgressExtracted = 50
	ProgressDone      = 100
)

// FileHandle describes a file to process. Open is called once, while the
// file is being processed.
type FileHandle struct {
	Name         string
	MIMEType     string
	Size         int64
	LastModified time.Time
	Open         func() (io.ReadCloser, error)
}

// BytesHandle wraps in-memory content, e.g. an uploaded form part.
func BytesHandle(name, mimeType string, data []byte, lastModified time.Time) FileHandle {
	return FileHandle{
		Name:         name,
		MIMEType:     mimeType,
		Size:         int64(len(data)),
		LastModified: lastModified,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// PathHandle reads from a file on disk. display is the name shown to users.
func PathHandle(path, display, mimeType string, info os.FileInfo) FileHandle {
	return FileHandle{
		Name:         display,
		MIMEType:     mimeType,
		Size:         info.Size(),
		LastModified: info.ModTime(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// View is a read-only snapshot of one file.
type View struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	MIMEType         string            `json:"mimeType"`
	Size             int64             `json:"size"`
	Status           Status            `json:"status"`
	Progress         int               `json:"progress"`
	Metadata         metadata.Mapping  `json:"metadata,omitempty"`
	RedactedMetadata map[string]string `json:"redactedMetadata,omitempty"`
	Error            string            `json:"error,omitempty"`
	AddedAt          time.Time         `json:"addedAt"`
	CompletedAt      *time.Time        `json:"completedAt,omitempty"`
}

type EventType string

const (
	EventAdded   EventType = "added"
	EventUpdated EventType = "updated"
	EventRemoved EventType = "removed"
)

// Event is published on every queue change.
type Event struct {
	Type EventType
	File View
}

// Counts tallies files by status.
type Counts struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Error      int `json:"error"`
}

// Finished is the number of files in a terminal state.
func (c Counts) Finished() int {
	return c.Done + c.Error
}
