// Package live drives one estimation surface: input edits are debounced, and
// only the newest request may publish a result.
package live

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nulln0ne/uniswap-dex/internal/service"
	"github.com/nulln0ne/uniswap-dex/internal/token"
)

// DefaultDelay is the quiet period between the last edit and the estimate.
const DefaultDelay = 500 * time.Millisecond

// Input is the state of the surface's form.
type Input struct {
	From   token.Token
	To     token.Token
	Amount string
}

// Result is a published estimate. Generation increases with every accepted
// request.
type Result struct {
	Generation uint64
	Input      Input
	Estimate   *service.SwapEstimate
	Err        error
}

// EstimateFunc computes the estimate for in. It must return promptly once ctx
// is cancelled.
type EstimateFunc func(ctx context.Context, in Input) (*service.SwapEstimate, error)

// FromService adapts an EstimateService.
func FromService(svc *service.EstimateService) EstimateFunc {
	return func(ctx context.Context, in Input) (*service.SwapEstimate, error) {
		return svc.Estimate(ctx, in.From, in.To, in.Amount)
	}
}

type Option func(*Surface)

func WithDelay(d time.Duration) Option {
	return func(s *Surface) { s.delay = d }
}

// WithBuffer sets the capacity of the Results channel. When the channel is
// full the oldest result is dropped.
func WithBuffer(n int) Option {
	return func(s *Surface) { s.buffer = n }
}

type Surface struct {
	logger   *slog.Logger
	estimate EstimateFunc
	delay    time.Duration
	buffer   int

	mu      sync.Mutex
	base    context.Context
	stop    context.CancelFunc
	timer   *time.Timer
	gen     uint64 // bumped by every Update
	cancel  context.CancelFunc
	latest  Result
	has     bool
	closed  bool
	results chan Result
}

func New(logger *slog.Logger, fn EstimateFunc, opts ...Option) *Surface {
	s := &Surface{
		logger:   logger,
		estimate: fn,
		delay:    DefaultDelay,
		buffer:   16,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.buffer < 1 {
		s.buffer = 1
	}
	s.base, s.stop = context.WithCancel(context.Background())
	s.results = make(chan Result, s.buffer)
	return s
}

// Update records a new form state. Every edit starts a new generation, which
// cancels the in-flight request and discards its result. An empty amount
// publishes the empty estimate at once; anything else is estimated after the
// debounce delay unless another Update arrives first.
func (s *Surface) Update(in Input) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	gen := s.advance()

	if strings.TrimSpace(in.Amount) == "" {
		s.publish(Result{
			Generation: gen,
			Input:      in,
			Estimate:   &service.SwapEstimate{Status: service.StatusEmpty, From: in.From, To: in.To},
		})
		return
	}

	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen, in) })
}

// advance starts a new generation and cancels the in-flight request. The
// caller holds s.mu.
func (s *Surface) advance() uint64 {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return s.gen
}

func (s *Surface) fire(gen uint64, in Input) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.mu.Unlock()

	est, err := s.estimate(ctx, in)

	s.mu.Lock()
	defer s.mu.Unlock()
	cancel()
	if gen != s.gen || s.closed {
		s.logger.Debug("stale estimate dropped", "generation", gen, "current", s.gen)
		return
	}
	s.cancel = nil
	s.publish(Result{Generation: gen, Input: in, Estimate: est, Err: err})
}

// publish stores r as the latest result and queues it for Results. The caller
// holds s.mu.
func (s *Surface) publish(r Result) {
	s.latest = r
	s.has = true
	for {
		select {
		case s.results <- r:
			return
		default:
			select {
			case <-s.results:
			default:
			}
		}
	}
}

// Latest returns the most recently published result.
func (s *Surface) Latest() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.has
}

// Results delivers published results in generation order.
func (s *Surface) Results() <-chan Result {
	return s.results
}

// Generation returns the current request generation.
func (s *Surface) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Close stops the pending timer and cancels the in-flight request. Results is
// not closed; no further results are published.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.stop()
}
