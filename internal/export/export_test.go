package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/go-cmp/cmp"

	"visitlog/internal/store"
)

func f32(v float32) *float32 { return &v }
func str(v string) *string    { return &v }

type fakeSource struct {
	places []store.Place
	fixes  []store.RawFix
	err    error
}

func (s *fakeSource) ListPlaces(context.Context, int) ([]store.Place, error) {
	return s.places, s.err
}

func (s *fakeSource) ListRawFixes(context.Context, *int64) ([]store.RawFix, error) {
	return s.fixes, s.err
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestSummaryRoundTrip(t *testing.T) {
	places := []store.Place{
		{ID: 2, Lat: 52.5, Lon: 13.4, FirstVisit: 1000, LastVisit: 61000, VisitCount: 4, BestAccuracy: f32(8.5), Name: str("Home")},
		{ID: 1, Lat: -33.9, Lon: 151.2, FirstVisit: 500, LastVisit: 500, VisitCount: 1},
	}

	var buf bytes.Buffer
	if err := WriteSummary(&buf, places); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	got, err := ReadSummary(&buf)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}

	want := []PlaceRecord{
		{Latitude: 52.5, Longitude: 13.4, Timestamp: 61000, FirstVisit: 1000, VisitCount: 4, TimeSpentMs: 60000, Name: str("Home"), AccuracyMeters: f32(8.5)},
		{Latitude: -33.9, Longitude: 151.2, Timestamp: 500, FirstVisit: 500, VisitCount: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSummaryOmitsMissingFields(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, []store.Place{{Lat: 1, Lon: 2, FirstVisit: 3, LastVisit: 4, VisitCount: 1}}); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	out := buf.String()
	for _, field := range []string{"name", "accuracy_meters"} {
		if strings.Contains(out, `"`+field+`"`) {
			t.Errorf("summary contains %q for a place without it:\n%s", field, out)
		}
	}
	for _, field := range []string{"latitude", "longitude", "timestamp", "first_visit", "visit_count", "time_spent_ms"} {
		if !strings.Contains(out, `"`+field+`"`) {
			t.Errorf("summary is missing %q:\n%s", field, out)
		}
	}
}

func TestFullRoundTrip(t *testing.T) {
	fixes := []store.RawFix{
		{ID: 9, Lat: 1.5, Lon: 2.5, Timestamp: 3000, Accuracy: f32(12)},
		{ID: 8, Lat: 1.25, Lon: 2.75, Timestamp: 2000},
	}

	var buf bytes.Buffer
	if err := WriteFull(&buf, fixes); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}
	got, err := ReadFull(&buf)
	if err != nil {
		t.Fatalf("ReadFull: %v", err)
	}

	want := []RawFixRecord{
		{Latitude: 1.5, Longitude: 2.5, Timestamp: 3000, AccuracyMeters: f32(12)},
		{Latitude: 1.25, Longitude: 2.75, Timestamp: 2000},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("full round trip mismatch (-want +got):\n%s", diff)
	}

	fix := got[0].ToFix()
	if fix.Lat != 1.5 || fix.Lon != 2.5 || fix.Timestamp != 3000 || fix.Accuracy == nil || *fix.Accuracy != 12 {
		t.Errorf("ToFix = %+v", fix)
	}
}

func TestExporterDirSink(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{
		places: []store.Place{{Lat: 1, Lon: 2, FirstVisit: 10, LastVisit: 20, VisitCount: 2}},
		fixes:  []store.RawFix{{Lat: 1, Lon: 2, Timestamp: 20}},
	}
	e := NewExporter(src, DirSink{Dir: dir}, nil)
	e.now = func() time.Time { return time.UnixMilli(1700000000123) }

	path, err := e.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if want := filepath.Join(dir, "locations_summary_1700000000123.json"); path != want {
		t.Errorf("summary path = %q, want %q", path, want)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	records, err := ReadSummary(f)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if len(records) != 1 || records[0].TimeSpentMs != 10 {
		t.Errorf("records = %+v", records)
	}

	path, err = e.Full(context.Background())
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	if filepath.Base(path) != "locations_full_1700000000123.json" {
		t.Errorf("full path = %q", path)
	}
}

func TestExporterNothingToExport(t *testing.T) {
	e := NewExporter(&fakeSource{}, DirSink{Dir: t.TempDir()}, nil)

	if _, err := e.Summary(context.Background()); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("Summary error = %v, want ErrNothingToExport", err)
	}
	if _, err := e.Full(context.Background()); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("Full error = %v, want ErrNothingToExport", err)
	}
}

func TestExporterSourceError(t *testing.T) {
	boom := errors.New("boom")
	e := NewExporter(&fakeSource{err: boom}, DirSink{Dir: t.TempDir()}, nil)
	if _, err := e.Summary(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Summary error = %v, want wrapped boom", err)
	}
}

func TestS3Sink(t *testing.T) {
	client := &fakeS3{}
	sink := NewS3SinkWithClient(client, "exports", "visitlog/")

	location, err := sink.Put(context.Background(), "doc.json", strings.NewReader(`[]`))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if location != "s3://exports/visitlog/doc.json" {
		t.Errorf("location = %q", location)
	}
	if *client.input.Bucket != "exports" || *client.input.Key != "visitlog/doc.json" {
		t.Errorf("input = %s/%s", *client.input.Bucket, *client.input.Key)
	}
	if *client.input.ContentType != "application/json" || string(client.body) != "[]" {
		t.Errorf("content type %q body %q", *client.input.ContentType, client.body)
	}

	client.err = errors.New("denied")
	if _, err := sink.Put(context.Background(), "doc.json", strings.NewReader(`[]`)); err == nil {
		t.Error("expected an error from a failing client")
	}
}
