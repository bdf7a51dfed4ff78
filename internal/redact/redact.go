// Package redact replaces personally identifying metadata values with a
// marker. A Classifier decides which values are sensitive; the Redactor
// enforces that the result has exactly the input's keys and only text values.
package redact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"metaredact/internal/metadata"
	"metaredact/pkg/log"
)

// DefaultMarker replaces values judged sensitive.
const DefaultMarker = "[REDACTED]"

// Classifier returns a copy of fields in which sensitive values have been
// replaced. The whole record is classified at once so a backend can use
// context across fields.
type Classifier interface {
	Classify(ctx context.Context, fields metadata.Mapping) (map[string]any, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, fields metadata.Mapping) (map[string]any, error)

func (f ClassifierFunc) Classify(ctx context.Context, fields metadata.Mapping) (map[string]any, error) {
	return f(ctx, fields)
}

// RedactionError reports a classifier that failed or answered with a
// malformed record. Original is the unredacted mapping.
type RedactionError struct {
	FileName string
	Original metadata.Mapping
	Err      error
}

func (e *RedactionError) Error() string {
	if e.FileName == "" {
		return fmt.Sprintf("redact metadata: %v", e.Err)
	}
	return fmt.Sprintf("redact metadata of %s: %v", e.FileName, e.Err)
}

func (e *RedactionError) Unwrap() error { return e.Err }

var (
	ErrEmptyResponse = errors.New("classifier returned an empty response")
	ErrMissingKeys   = errors.New("classifier response is missing keys")
)

// Redactor applies a Classifier and normalises its answer.
type Redactor struct {
	classifier Classifier
}

func NewRedactor(c Classifier) *Redactor {
	return &Redactor{classifier: c}
}

// Redact returns the redacted record. Its key set always equals the key set
// of m and every value is text; anything else is a *RedactionError.
func (r *Redactor) Redact(ctx context.Context, m metadata.Mapping) (map[string]string, error) {
	fileName, _ := m[metadata.KeyFileName].(string)
	fail := func(err error) error {
		return &RedactionError{FileName: fileName, Original: m.Clone(), Err: err}
	}

	if len(m) == 0 {
		return map[string]string{}, nil
	}

	resp, err := r.classifier.Classify(ctx, m.Clone())
	if err != nil {
		return nil, fail(err)
	}
	if len(resp) == 0 {
		return nil, fail(ErrEmptyResponse)
	}

	var missing []string
	out := make(map[string]string, len(m))
	for key := range m {
		value, ok := resp[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		out[key] = metadata.Stringify(value)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fail(fmt.Errorf("%w: %s", ErrMissingKeys, strings.Join(missing, ", ")))
	}

	if len(resp) > len(out) {
		var extra []string
		for key := range resp {
			if _, ok := m[key]; !ok {
				extra = append(extra, key)
			}
		}
		sort.Strings(extra)
		log.Warnw("dropping keys the classifier invented", "file", fileName, "keys", extra)
	}

	return out, nil
}
