package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neexbeast/aruba-countdown/internal/countdown"
	"github.com/neexbeast/aruba-countdown/internal/insight"
)

const defaultTickInterval = time.Second

// insightFetcher is the interface satisfied by insight.Fetcher.
type insightFetcher interface {
	Fetch(ctx context.Context) insight.Outcome
}

// Recorder persists the fetch outcome of a session.
type Recorder interface {
	RecordFetch(ctx context.Context, sessionID uuid.UUID, out insight.Outcome) error
}

// Session owns the countdown engine and the insight bundle for one run of the app.
type Session struct {
	id       uuid.UUID
	engine   *countdown.Engine
	fetcher  insightFetcher
	interval time.Duration
	recorder Recorder
	onTick   func(countdown.State)
	log      *slog.Logger

	mu       sync.RWMutex
	outcome  insight.Outcome
	ready    bool
	resolved chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithTickInterval overrides the one-second tick.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRecorder persists the fetch outcome once it resolves.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithTickObserver is called with every updated countdown state.
func WithTickObserver(fn func(countdown.State)) Option {
	return func(s *Session) { s.onTick = fn }
}

// WithLogger sets the session logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// New constructs a Session. Nothing runs until Start.
func New(engine *countdown.Engine, fetcher insightFetcher, opts ...Option) *Session {
	s := &Session{
		id:       uuid.New(),
		engine:   engine,
		fetcher:  fetcher,
		interval: defaultTickInterval,
		log:      slog.Default(),
		resolved: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID identifies the session in logs and fetch records.
func (s *Session) ID() uuid.UUID { return s.id }

// Target returns the countdown target.
func (s *Session) Target() time.Time { return s.engine.Target() }

// Start launches the countdown ticker and the one-shot insight fetch.
// It returns immediately; calling it twice has no effect.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)

		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			s.engine.Run(ctx, s.interval, s.onTick)
		}()
		go func() {
			defer s.wg.Done()
			s.loadInsights(ctx)
		}()

		s.log.Info("session started", "session_id", s.id, "target", s.engine.Target())
	})
}

func (s *Session) loadInsights(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("insight load panicked", "session_id", s.id, "recover", r)
			s.resolve(insight.FallbackOutcome(fmt.Errorf("insight load panicked: %v", r)))
		}
	}()

	out := s.fetcher.Fetch(ctx)
	s.resolve(out)
	s.log.Info("insights loaded", "session_id", s.id, "status", out.Status, "missing", out.Missing)

	if s.recorder != nil {
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.recorder.RecordFetch(recCtx, s.id, out); err != nil {
			s.log.Warn("recording insight fetch failed", "session_id", s.id, "err", err)
		}
	}
}

func (s *Session) resolve(out insight.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return
	}
	s.outcome = out
	s.ready = true
	close(s.resolved)
}

// Insights returns the fetch outcome and whether it has resolved yet.
func (s *Session) Insights() (insight.Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome, s.ready
}

// Countdown returns the current countdown state and whether the target has passed.
func (s *Session) Countdown() (countdown.State, bool) {
	return s.engine.Snapshot()
}

// Wait blocks until the insight fetch resolved or ctx is done.
func (s *Session) Wait(ctx context.Context) (insight.Outcome, error) {
	select {
	case <-s.resolved:
		out, _ := s.Insights()
		return out, nil
	case <-ctx.Done():
		return insight.Outcome{}, ctx.Err()
	}
}

// Close stops the ticker and waits for the session goroutines to exit.
// A closed session cannot be started.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.startOnce.Do(func() {})
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.log.Info("session closed", "session_id", s.id)
	})
}
