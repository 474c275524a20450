package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/polkiloo/coursemart/internal/test/facades"
	"github.com/polkiloo/coursemart/internal/usecase"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForCalls(t *testing.T, stub *facades.DueProcessorStub, n int) {
	t.Helper()
	deadline := time.After(time.Second)
	for stub.CallCount() < n {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for %d schedule passes, got %d", n, stub.CallCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNewScheduleRunnerDefaults(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	runner := NewScheduleRunner(&facades.DueProcessorStub{}, 0, logger)
	if runner.interval != defaultInterval {
		t.Fatalf("expected default interval, got %v", runner.interval)
	}
}

func TestScheduleRunnerRunsAtStartAndOnTick(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	stub := &facades.DueProcessorStub{Report: usecase.ScheduleReport{Orders: 1, Charged: 1}}
	runner := NewScheduleRunner(stub, 10*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.Start(ctx)
	waitForCalls(t, stub, 3)
	runner.Stop()

	calls := stub.CallCount()
	time.Sleep(30 * time.Millisecond)
	if stub.CallCount() != calls {
		t.Fatalf("expected no passes after stop, got %d more", stub.CallCount()-calls)
	}
}

func TestScheduleRunnerFirstPassIsImmediate(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	stub := &facades.DueProcessorStub{}
	runner := NewScheduleRunner(stub, time.Hour, logger)

	runner.Start(context.Background())
	waitForCalls(t, stub, 1)
	runner.Stop()
}

func TestScheduleRunnerStartTwice(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	stub := &facades.DueProcessorStub{}
	runner := NewScheduleRunner(stub, time.Hour, logger)

	runner.Start(context.Background())
	runner.Start(context.Background())
	waitForCalls(t, stub, 1)
	runner.Stop()

	if got := stub.CallCount(); got != 1 {
		t.Fatalf("expected a single loop, got %d passes", got)
	}
}

func TestScheduleRunnerLogsFailures(t *testing.T) {
	out := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(out, nil))
	stub := &facades.DueProcessorStub{Err: errors.New("db down")}
	runner := NewScheduleRunner(stub, time.Hour, logger)

	runner.Start(context.Background())
	waitForCalls(t, stub, 1)
	runner.Stop()

	if !strings.Contains(out.String(), "schedule pass failed") || !strings.Contains(out.String(), "db down") {
		t.Fatalf("expected failure to be logged, got %s", out.String())
	}
}

func TestScheduleRunnerStopCancelsPass(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	started := make(chan struct{})
	stub := &facades.DueProcessorStub{Fn: func(ctx context.Context) (usecase.ScheduleReport, error) {
		close(started)
		<-ctx.Done()
		return usecase.ScheduleReport{}, ctx.Err()
	}}
	runner := NewScheduleRunner(stub, time.Hour, logger)

	runner.Start(context.Background())
	<-started

	done := make(chan struct{})
	go func() {
		runner.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop did not cancel the running pass")
	}
}

func TestStopWithoutStart(t *testing.T) {
	runner := NewScheduleRunner(&facades.DueProcessorStub{}, time.Second, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	runner.Stop()
}
