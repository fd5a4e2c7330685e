package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"visitlog/internal/store"
)

// ErrNothingToExport is returned when there is no data to write.
var ErrNothingToExport = errors.New("nothing to export")

// Source is the part of the engine an Exporter reads from.
type Source interface {
	ListPlaces(ctx context.Context, limit int) ([]store.Place, error)
	ListRawFixes(ctx context.Context, windowStart *int64) ([]store.RawFix, error)
}

// Exporter builds export documents and hands them to a Sink.
type Exporter struct {
	src    Source
	sink   Sink
	logger *zap.Logger
	now    func() time.Time
}

// NewExporter returns an exporter reading from src and writing to sink.
func NewExporter(src Source, sink Sink, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{src: src, sink: sink, logger: logger, now: time.Now}
}

// SummaryName and FullName are the object names used for documents created at t.
func SummaryName(t time.Time) string {
	return fmt.Sprintf("locations_summary_%d.json", t.UnixMilli())
}

func FullName(t time.Time) string {
	return fmt.Sprintf("locations_full_%d.json", t.UnixMilli())
}

// Summary exports every displayable place and returns the stored object's
// location.
func (e *Exporter) Summary(ctx context.Context) (string, error) {
	places, err := e.src.ListPlaces(ctx, 0)
	if err != nil {
		return "", fmt.Errorf("list places: %w", err)
	}
	if len(places) == 0 {
		return "", ErrNothingToExport
	}

	var buf bytes.Buffer
	if err := WriteSummary(&buf, places); err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	return e.store(ctx, SummaryName(e.now()), &buf, len(places))
}

// Full exports the whole raw fix log, newest first.
func (e *Exporter) Full(ctx context.Context) (string, error) {
	fixes, err := e.src.ListRawFixes(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("list raw fixes: %w", err)
	}
	if len(fixes) == 0 {
		return "", ErrNothingToExport
	}

	var buf bytes.Buffer
	if err := WriteFull(&buf, fixes); err != nil {
		return "", fmt.Errorf("encode full history: %w", err)
	}
	return e.store(ctx, FullName(e.now()), &buf, len(fixes))
}

func (e *Exporter) store(ctx context.Context, name string, buf *bytes.Buffer, records int) (string, error) {
	size := buf.Len()
	location, err := e.sink.Put(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	e.logger.Info("export written",
		zap.String("location", location),
		zap.Int("records", records),
		zap.Int("bytes", size),
	)
	return location, nil
}
