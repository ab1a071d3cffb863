package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePruner struct {
	lastCutoff time.Time
	called     int
	deleted    int64
	err        error
}

func (f *fakePruner) DeletePublishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return f.prune(cutoff)
}

func (f *fakePruner) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return f.prune(cutoff)
}

func (f *fakePruner) prune(cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deleted, nil
}

var retentionNow = time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

func newRetentionJob(t *testing.T, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = quietLogger()
	job, err := NewOutboxRetentionJob(params)
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	impl := job.(*outboxRetentionJob)
	impl.now = func() time.Time { return retentionNow }
	return impl
}

func TestOutboxRetentionJobUsesSeparateWindows(t *testing.T) {
	published := &fakePruner{deleted: 7}
	parked := &fakePruner{deleted: 1}
	job := newRetentionJob(t, OutboxRetentionJobParams{Published: published, DeadLetters: parked})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := retentionNow.AddDate(0, 0, -outboxRetentionDays); !published.lastCutoff.Equal(want) {
		t.Fatalf("published cutoff %s, want %s", published.lastCutoff, want)
	}
	if want := retentionNow.AddDate(0, 0, -dlqRetentionDays); !parked.lastCutoff.Equal(want) {
		t.Fatalf("dlq cutoff %s, want %s", parked.lastCutoff, want)
	}
}

func TestOutboxRetentionJobHonoursConfiguredDays(t *testing.T) {
	published := &fakePruner{}
	job := newRetentionJob(t, OutboxRetentionJobParams{Published: published, Retention: 7})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := retentionNow.Add(-7 * 24 * time.Hour); !published.lastCutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, published.lastCutoff)
	}
}

func TestOutboxRetentionJobAttemptsBothPrunes(t *testing.T) {
	published := &fakePruner{err: errors.New("statement timeout")}
	parked := &fakePruner{}
	job := newRetentionJob(t, OutboxRetentionJobParams{Published: published, DeadLetters: parked})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if parked.called != 1 {
		t.Fatalf("dead letters should still be pruned, called %d", parked.called)
	}
}

func TestOutboxRetentionJobRejectsShortDLQWindow(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:       quietLogger(),
		Published:    &fakePruner{},
		Retention:    30,
		DLQRetention: 7,
	})
	if err == nil {
		t.Fatal("expected dlq window shorter than published window to fail")
	}
}
