package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"metaredact/internal/metadata"
)

// extractPDF reads the document info dictionary.
func extractPDF(data []byte) (fields metadata.Mapping, err error) {
	defer func() {
		if r := recover(); r != nil {
			fields = nil
			err = &ExtractionError{Format: "pdf", Err: fmt.Errorf("pdf parser panic: %v", r)}
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, &ExtractionError{Format: "pdf", Err: err}
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, &ExtractionError{Format: "pdf", Err: err}
	}

	fields = metadata.Mapping{
		"PDFFormatVersion": ctx.VersionString(),
		"IsLinearized":     ctx.Read != nil && ctx.Read.Linearized,
		"PageCount":        float64(ctx.PageCount),
	}

	// Context also embeds *Configuration, whose CreationDate would make the
	// promoted selector ambiguous.
	xref := ctx.XRefTable
	info := []struct {
		key   string
		value string
	}{
		{"Title", xref.Title},
		{"Author", xref.Author},
		{"Subject", xref.Subject},
		{"Keywords", xref.Keywords},
		{"Creator", xref.Creator},
		{"Producer", xref.Producer},
		{"CreationDate", xref.CreationDate},
		{"ModDate", xref.ModDate},
	}
	for _, entry := range info {
		if v := strings.TrimSpace(entry.value); v != "" {
			fields[entry.key] = v
		}
	}

	// Custom info dictionary entries.
	for k, v := range xref.Properties {
		if v = strings.TrimSpace(v); v != "" {
			setIfAbsent(fields, k, v)
		}
	}

	return fields, nil
}
