package metadata

import (
	"fmt"
	"time"
)

// Base holds the attributes every file has regardless of its format.
type Base struct {
	Name         string
	Size         int64
	Type         string
	LastModified time.Time
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// BaseMapping renders b as the four base attributes.
func BaseMapping(b Base) Mapping {
	fileType := b.Type
	if fileType == "" {
		fileType = "unknown"
	}
	return Mapping{
		KeyFileName:     b.Name,
		KeyFileSize:     FormatSize(b.Size),
		KeyFileType:     fileType,
		KeyLastModified: b.LastModified.UTC().Format(isoMillis),
	}
}

// Normalize overlays extracted onto the base attributes. On key collisions
// the extracted value wins. The result is a new mapping; neither input is
// modified.
func Normalize(b Base, extracted Mapping) Mapping {
	out := BaseMapping(b)
	for k, v := range extracted.Clone() {
		out[k] = v
	}
	return out
}

// FormatSize renders a byte count in megabytes with two decimals.
func FormatSize(size int64) string {
	return fmt.Sprintf("%.2f MB", float64(size)/(1024*1024))
}
