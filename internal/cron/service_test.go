package cron

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name  string
	err   error
	panic bool
	block bool
	runs  int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	if t.panic {
		panic("feed exploded")
	}
	if t.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return t.err
}

func newCronService(t *testing.T, lock Lock, timeout time.Duration, jobs ...Job) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:     quietLogger(),
		Registry:   NewRegistry(jobs...),
		Lock:       lock,
		JobTimeout: timeout,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestRunOnceKeepsGoingAfterFailures(t *testing.T) {
	ingest := &testJob{name: "snapshot-ingestion", err: errors.New("feed unavailable")}
	battery := &testJob{name: "battery-monitor", panic: true}
	rebalance := &testJob{name: "photo-rebalance"}
	lock := &fakeLock{}
	service := newCronService(t, lock, 0, ingest, battery, rebalance)

	report, err := service.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if want := []string{"snapshot-ingestion", "battery-monitor", "photo-rebalance"}; !reflect.DeepEqual(report.Ran, want) {
		t.Fatalf("ran %v, want %v", report.Ran, want)
	}
	if want := []string{"snapshot-ingestion", "battery-monitor"}; !reflect.DeepEqual(report.Failed, want) {
		t.Fatalf("failed %v, want %v", report.Failed, want)
	}
	if rebalance.runs != 1 {
		t.Fatalf("expected rebalance to run once, ran %d", rebalance.runs)
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("lock should be released exactly once")
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "snapshot-ingestion"}
	service := newCronService(t, &fakeLock{held: true}, 0, job)

	report, err := service.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !report.Skipped || job.runs != 0 {
		t.Fatalf("expected skipped cycle, got %+v with %d runs", report, job.runs)
	}
}

func TestRunOnceBoundsEachJob(t *testing.T) {
	slow := &testJob{name: "snapshot-ingestion", block: true}
	next := &testJob{name: "battery-monitor"}
	service := newCronService(t, &fakeLock{}, 10*time.Millisecond, slow, next)

	report, err := service.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !reflect.DeepEqual(report.Failed, []string{"snapshot-ingestion"}) {
		t.Fatalf("expected timed out job to fail, got %v", report.Failed)
	}
	if next.runs != 1 {
		t.Fatalf("job after a timeout should still run")
	}
}

func TestNewServiceRejectsNegativeTimeout(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: quietLogger(), Lock: &fakeLock{}, JobTimeout: -time.Second}); err == nil {
		t.Fatalf("expected negative timeout to fail")
	}
}
