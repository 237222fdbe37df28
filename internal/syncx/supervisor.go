package syncx

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/samuel-warrie/go-realtime-stock/internal/catalog"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDegraded     State = "degraded"
)

// Listener is one push-subscription session to the change feed. Listen
// blocks for the lifetime of the session: it calls ready once the
// subscription is established, delivers events through h, and returns
// a non-nil error when the channel fails or the context ends.
type Listener interface {
	Listen(ctx context.Context, ready func(), h func(catalog.ChangeEvent)) error
}

type SupervisorConfig struct {
	PollInterval      time.Duration // polling fallback cadence while degraded
	ReconnectBase     time.Duration // first reconnect delay, doubled per attempt
	ReconnectMax      time.Duration // cap on a single reconnect delay
	ReconnectAttempts int           // reconnects tried before settling on polling alone
}

func (c *SupervisorConfig) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 30 * time.Second
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = 5
	}
}

// Supervisor owns at most one live change-feed session at a time and
// arbitrates between push delivery and the polling fallback. Events
// from a torn-down session are discarded by a per-session token guard.
type Supervisor struct {
	engine   *Engine
	listener Listener
	cfg      SupervisorConfig
	log      zerolog.Logger

	mu         sync.Mutex
	state      State
	active     string // token of the live session, "" when none
	cancel     context.CancelFunc
	pollCancel context.CancelFunc
	done       chan struct{}
	started    bool
}

func NewSupervisor(e *Engine, l Listener, cfg SupervisorConfig, log zerolog.Logger) *Supervisor {
	cfg.defaults()
	return &Supervisor{
		engine:   e,
		listener: l,
		cfg:      cfg,
		log:      log,
		state:    StateDisconnected,
	}
}

// Start opens the change subscription in the background. Calling Start
// on a running supervisor is a no-op.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	go s.run(runCtx)
}

// Stop tears down the session and every pending timer. Idempotent; safe
// to call from any exit path.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.state = StateDisconnected
	s.active = ""
	s.mu.Unlock()
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) Connected() bool {
	return s.State() == StateConnected
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)
	defer s.stopPolling()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.ReconnectBase
	bo.Multiplier = 2
	bo.MaxInterval = s.cfg.ReconnectMax
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	attempts := 0

	for {
		if ctx.Err() != nil {
			return
		}
		token := uuid.NewString()
		s.setSession(token, StateConnecting)

		ready := func() {
			if !s.isActive(token) {
				return
			}
			s.setState(StateConnected)
			s.stopPolling()
			bo.Reset()
			attempts = 0
			s.log.Info().Str("session", token).Msg("change feed connected")
			// Events that occurred while disconnected are not replayed;
			// a refresh converges the snapshot.
			go func() { _ = s.engine.Refresh(ctx) }()
		}
		handler := func(ev catalog.ChangeEvent) {
			if !s.isActive(token) {
				return // stale session, must not mutate state
			}
			s.engine.Apply(ev)
		}

		err := s.listener.Listen(ctx, ready, handler)
		s.clearSession(token)
		if ctx.Err() != nil {
			return
		}

		s.setState(StateDegraded)
		s.startPolling(ctx)

		attempts++
		if attempts > s.cfg.ReconnectAttempts {
			s.log.Warn().Err(err).Int("attempts", attempts-1).
				Msg("reconnect attempts exhausted, staying on polling")
			<-ctx.Done()
			return
		}
		delay := bo.NextBackOff()
		s.log.Warn().Err(err).Int("attempt", attempts).Dur("retry_in", delay).
			Msg("change feed lost, scheduling reconnect")
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *Supervisor) startPolling(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pollCancel != nil {
		return
	}
	pctx, cancel := context.WithCancel(ctx)
	s.pollCancel = cancel
	interval := s.cfg.PollInterval
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-pctx.Done():
				return
			case <-t.C:
				// Refresh skips on its own when the snapshot is fresh.
				if err := s.engine.Refresh(pctx); err != nil && pctx.Err() == nil {
					s.log.Warn().Err(err).Msg("fallback poll failed")
				}
			}
		}
	}()
}

func (s *Supervisor) stopPolling() {
	s.mu.Lock()
	cancel := s.pollCancel
	s.pollCancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Supervisor) setSession(token string, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = token
	s.state = st
}

func (s *Supervisor) clearSession(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == token {
		s.active = ""
	}
}

func (s *Supervisor) isActive(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == token
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}
