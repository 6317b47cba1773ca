package live

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nulln0ne/uniswap-dex/internal/service"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(amount string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, amount)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func echo(rec *recorder) EstimateFunc {
	return func(ctx context.Context, in Input) (*service.SwapEstimate, error) {
		rec.add(in.Amount)
		return &service.SwapEstimate{Status: service.StatusOK, Output: in.Amount}, nil
	}
}

func newSurface(fn EstimateFunc) *Surface {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, fn, WithDelay(20*time.Millisecond))
}

func next(t *testing.T, s *Surface) Result {
	t.Helper()
	select {
	case r := <-s.Results():
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("no result published")
	}
	return Result{}
}

func TestDebounceCollapsesEdits(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := newSurface(echo(rec))
	defer s.Close()

	for _, amount := range []string{"1", "12", "123"} {
		s.Update(Input{Amount: amount})
	}
	r := next(t, s)
	if r.Estimate.Output != "123" {
		t.Fatalf("expected the last edit, got %q", r.Estimate.Output)
	}
	if calls := rec.snapshot(); len(calls) != 1 {
		t.Fatalf("estimator calls: %v", calls)
	}
	latest, ok := s.Latest()
	if !ok || latest.Generation != r.Generation {
		t.Fatalf("Latest: %+v %v", latest, ok)
	}
}

func TestStaleResultDiscarded(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	cancelled := make(chan struct{}, 1)
	fn := func(ctx context.Context, in Input) (*service.SwapEstimate, error) {
		if in.Amount == "slow" {
			started <- struct{}{}
			select {
			case <-ctx.Done():
				cancelled <- struct{}{}
			case <-release:
			}
		}
		return &service.SwapEstimate{Status: service.StatusOK, Output: in.Amount}, nil
	}
	s := newSurface(fn)
	defer s.Close()
	defer close(release)

	s.Update(Input{Amount: "slow"})
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("slow request never started")
	}

	s.Update(Input{Amount: "fast"})
	r := next(t, s)
	if r.Estimate.Output != "fast" || r.Generation != 2 {
		t.Fatalf("expected the newer request to win, got %+v", r)
	}
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("superseded request was not cancelled")
	}

	select {
	case r := <-s.Results():
		t.Fatalf("stale result published: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEditDiscardsResultDuringDebounce(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	finished := make(chan struct{}, 1)
	fn := func(ctx context.Context, in Input) (*service.SwapEstimate, error) {
		if in.Amount == "slow" {
			started <- struct{}{}
			<-release
			defer func() { finished <- struct{}{} }()
		}
		return &service.SwapEstimate{Status: service.StatusOK, Output: in.Amount}, nil
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(logger, fn, WithDelay(100*time.Millisecond))
	defer s.Close()

	s.Update(Input{Amount: "slow"})
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("slow request never started")
	}

	// the slow result lands while the new edit is still debouncing
	s.Update(Input{Amount: "fast"})
	close(release)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("slow request never finished")
	}

	r := next(t, s)
	if r.Estimate.Output != "fast" {
		t.Fatalf("result of a superseded edit published: %+v", r)
	}
	if r.Generation != s.Generation() {
		t.Fatalf("generation: got %d want %d", r.Generation, s.Generation())
	}
}

func TestEmptyInputPublishesImmediately(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := newSurface(echo(rec))
	defer s.Close()

	s.Update(Input{Amount: "5"})
	s.Update(Input{Amount: "  "})

	select {
	case r := <-s.Results():
		if r.Estimate.Status != service.StatusEmpty {
			t.Fatalf("expected empty estimate, got %s", r.Estimate.Status)
		}
	default:
		t.Fatalf("empty input must publish without waiting for the debounce")
	}

	time.Sleep(60 * time.Millisecond)
	if calls := rec.snapshot(); len(calls) != 0 {
		t.Fatalf("pending edit should have been abandoned, estimator saw %v", calls)
	}
}

func TestCloseStopsPublishing(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := newSurface(echo(rec))

	s.Update(Input{Amount: "7"})
	s.Close()
	s.Update(Input{Amount: "8"})

	select {
	case r := <-s.Results():
		t.Fatalf("closed surface published %+v", r)
	case <-time.After(60 * time.Millisecond):
	}
	if _, ok := s.Latest(); ok {
		t.Fatalf("closed surface has no results")
	}
}

func TestResultsDropOldestWhenFull(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(logger, echo(&recorder{}), WithBuffer(1))
	defer s.Close()

	s.Update(Input{Amount: ""})
	s.Update(Input{Amount: ""})
	r := <-s.Results()
	if r.Generation != 2 {
		t.Fatalf("expected the newest result to be kept, got generation %d", r.Generation)
	}
}
