package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/valerioformato/nutrition-helper/internal/blob"
	"github.com/valerioformato/nutrition-helper/internal/storage"
)

// Exporter renders weekly plans and stores them in a blob store.
type Exporter struct {
	reader Reader
	blobs  blob.Store
	newKey func(week, ext string) string
}

func NewExporter(reader Reader, blobs blob.Store) *Exporter {
	return &Exporter{
		reader: reader,
		blobs:  blobs,
		newKey: func(week, ext string) string {
			return fmt.Sprintf("exports/%s/%s.%s", week, uuid.NewString(), ext)
		},
	}
}

// WeeklyPlan renders the week named by weekKey as csv or pdf and stores it
// under exports/<week>/<uuid>.<ext>.
func (e *Exporter) WeeklyPlan(ctx context.Context, weekKey, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))

	var (
		render      func(*WeekPlan) ([]byte, error)
		contentType string
	)
	switch format {
	case FormatCSV:
		render, contentType = RenderCSV, "text/csv"
	case FormatPDF:
		render, contentType = RenderPDF, "application/pdf"
	default:
		return nil, storage.Invalid("format", "unsupported format %q (allowed: csv, pdf)", format)
	}

	plan, err := BuildWeekPlan(ctx, e.reader, weekKey)
	if err != nil {
		return nil, err
	}
	data, err := render(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", format, err)
	}

	key := e.newKey(weekKey, format)
	size, err := e.blobs.PutObject(ctx, key, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store export: %w", err)
	}
	url, err := e.blobs.URL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve export url: %w", err)
	}

	return &ExportResult{
		Week:      weekKey,
		Key:       key,
		Format:    format,
		SizeBytes: size,
		URL:       url,
		Entries:   plan.EntryCount(),
	}, nil
}
