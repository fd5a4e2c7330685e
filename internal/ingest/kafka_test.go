package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"visitlog/internal/visits"
)

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
	commitErr error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

// scriptedRecorder returns the queued errors in order, then succeeds.
type scriptedRecorder struct {
	errs  []error
	fixes []visits.Fix
}

func (r *scriptedRecorder) Record(_ context.Context, fix visits.Fix) (int64, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	r.fixes = append(r.fixes, fix)
	return int64(len(r.fixes)), nil
}

func message(offset int64, value string) kafka.Message {
	return kafka.Message{Offset: offset, Value: []byte(value)}
}

func newTestConsumer(msgs []kafka.Message, rec Recorder) (*Consumer, *fakeReader, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{msgs: msgs, cancel: cancel}
	c := NewConsumer(reader, rec, zap.NewNop())
	c.InitialBackoff = time.Millisecond
	c.MaxBackoff = 4 * time.Millisecond
	return c, reader, ctx
}

func TestConsumerRecordsAndCommits(t *testing.T) {
	rec := &scriptedRecorder{}
	c, reader, ctx := newTestConsumer([]kafka.Message{
		message(1, `{"latitude":1.5,"longitude":2.5,"timestamp":1000,"accuracy_meters":4}`),
		message(2, `{"latitude":1.5,"longitude":2.5,"timestamp":2000}`),
	}, rec)

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if diff := cmp.Diff([]int64{1, 2}, reader.committed); diff != "" {
		t.Errorf("committed offsets mismatch (-want +got):\n%s", diff)
	}
	if len(rec.fixes) != 2 || rec.fixes[0].Accuracy == nil || *rec.fixes[0].Accuracy != 4 || rec.fixes[1].Accuracy != nil {
		t.Errorf("recorded fixes = %+v", rec.fixes)
	}
	if got := c.Stats(); got.Recorded != 2 || got.Skipped != 0 {
		t.Errorf("stats = %+v", got)
	}
}

func TestConsumerSkipsPoisonMessages(t *testing.T) {
	rec := &scriptedRecorder{errs: []error{fmt.Errorf("record: %w", visits.ErrInvalidInput)}}
	c, reader, ctx := newTestConsumer([]kafka.Message{
		message(1, `not json`),
		message(2, `{"latitude":999,"longitude":0,"timestamp":1}`),
		message(3, `{"latitude":1,"longitude":1,"timestamp":5}`),
	}, rec)

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if diff := cmp.Diff([]int64{1, 2, 3}, reader.committed); diff != "" {
		t.Errorf("committed offsets mismatch (-want +got):\n%s", diff)
	}
	if got := c.Stats(); got.Recorded != 1 || got.Skipped != 2 {
		t.Errorf("stats = %+v", got)
	}
}

func TestConsumerRetriesTransientErrors(t *testing.T) {
	rec := &scriptedRecorder{errs: []error{
		fmt.Errorf("record: %w", visits.ErrWriteConflict),
		fmt.Errorf("record: %w", visits.ErrStorageUnavailable),
		fmt.Errorf("record: %w", visits.ErrWriteConflict),
	}}
	c, reader, ctx := newTestConsumer([]kafka.Message{
		message(7, `{"latitude":1,"longitude":1,"timestamp":5}`),
	}, rec)

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if diff := cmp.Diff([]int64{7}, reader.committed); diff != "" {
		t.Errorf("committed offsets mismatch (-want +got):\n%s", diff)
	}
	if got := c.Stats(); got.Retries != 3 || got.Recorded != 1 {
		t.Errorf("stats = %+v", got)
	}
}

func TestConsumerStopsRetryingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &scriptedRecorder{errs: []error{visits.ErrStorageUnavailable}}
	reader := &fakeReader{cancel: cancel}
	c := NewConsumer(reader, rec, nil)

	err := c.handle(ctx, message(1, `{"latitude":1,"longitude":1,"timestamp":5}`))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("handle error = %v, want context.Canceled", err)
	}
	if len(reader.committed) != 0 {
		t.Errorf("offset committed after a failed record: %v", reader.committed)
	}
}

func TestConsumerStopsOnUnclassifiedError(t *testing.T) {
	diskFull := fmt.Errorf("record: %w", errors.New("database or disk is full (13)"))
	rec := &scriptedRecorder{errs: []error{nil, diskFull}}
	c, reader, ctx := newTestConsumer([]kafka.Message{
		message(6, `{"latitude":1,"longitude":1,"timestamp":5}`),
		message(7, `{"latitude":1,"longitude":1,"timestamp":6}`),
		message(8, `{"latitude":1,"longitude":1,"timestamp":7}`),
	}, rec)

	err := c.Run(ctx)
	if !errors.Is(err, diskFull) {
		t.Fatalf("Run error = %v, want the record error", err)
	}

	if diff := cmp.Diff([]int64{6}, reader.committed); diff != "" {
		t.Errorf("committed offsets mismatch (-want +got):\n%s", diff)
	}
	if got := c.Stats(); got.Recorded != 1 || got.Skipped != 0 {
		t.Errorf("stats = %+v", got)
	}
	if len(rec.fixes) != 1 {
		t.Errorf("recorded %d fixes after the failure, want 1", len(rec.fixes))
	}
}

func TestConsumerCommitFailure(t *testing.T) {
	rec := &scriptedRecorder{}
	c, reader, ctx := newTestConsumer([]kafka.Message{
		message(1, `{"latitude":1,"longitude":1,"timestamp":5}`),
	}, rec)
	reader.commitErr = errors.New("broker gone")

	if err := c.Run(ctx); err == nil {
		t.Error("expected commit failure to stop the consumer")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	c := NewConsumer(&fakeReader{}, &scriptedRecorder{}, nil)
	c.InitialBackoff = time.Second
	c.MaxBackoff = 3 * time.Second

	d := c.InitialBackoff
	var got []time.Duration
	for i := 0; i < 4; i++ {
		d = c.nextBackoff(d)
		got = append(got, d)
	}
	want := []time.Duration{2 * time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("backoff mismatch (-want +got):\n%s", diff)
	}
}
