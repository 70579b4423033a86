package cobot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the link session state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Initializing
	Ready
	// Failed is a momentary state emitted on the state channel when a
	// connect or bring-up attempt fails; the machine immediately settles
	// back in Disconnected.
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session owns the link to the controller and drives the
// Disconnected -> Connecting -> Connected -> Initializing -> Ready machine.
// The transport handle is exclusively owned here; the poller and dispatcher
// borrow it per call and only while the session is Ready.
//
// Every Connect and Disconnect bumps an epoch counter. Backend results that
// arrive carrying an old epoch are stale and are discarded instead of being
// applied to the joint read model.
type Session struct {
	dialer Dialer
	log    zerolog.Logger

	initAttempts   int
	initRetryDelay time.Duration

	mu         sync.Mutex
	state      State
	epoch      uint64
	transport  Transport
	port       string
	baud       int
	poller     *Poller
	pollCancel context.CancelFunc

	stateCh chan State
}

func newSession(cfg Config, dialer Dialer, log zerolog.Logger) *Session {
	return &Session{
		dialer:         dialer,
		log:            log,
		initAttempts:   cfg.InitAttempts,
		initRetryDelay: cfg.InitRetryDelay.Std(),
		stateCh:        make(chan State, 8),
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// States returns a channel carrying state transitions. Old notifications are
// dropped when the consumer falls behind.
func (s *Session) States() <-chan State {
	return s.stateCh
}

// Port returns the connection parameters of the current session.
func (s *Session) Port() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port, s.baud
}

// Connect opens the physical link. Valid only from Disconnected; on failure
// the session is back in Disconnected and a *ConnectError is returned.
func (s *Session) Connect(ctx context.Context, port string, baud int) error {
	s.mu.Lock()
	if s.state != Disconnected {
		defer s.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", ErrInvalidState, s.state)
	}
	s.epoch++
	epoch := s.epoch
	s.port, s.baud = port, baud
	s.setStateLocked(Connecting)
	s.mu.Unlock()

	tr, err := s.dialer.Dial(ctx, port, baud)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.state != Connecting {
		// A disconnect raced the dial; the link is no longer wanted.
		if err == nil {
			tr.Close()
		}
		return ErrStaleResult
	}
	if err != nil {
		s.setStateLocked(Failed)
		s.setStateLocked(Disconnected)
		return &ConnectError{Port: port, Baud: baud, Err: err}
	}
	s.transport = tr
	s.setStateLocked(Connected)
	return nil
}

// Initialize performs controller bring-up. Valid only from Connected. The
// retry policy is bounded and explicit: up to InitAttempts attempts with a
// fixed InitRetryDelay between them; after exhaustion the link is torn down,
// the session is Disconnected and a *InitError is returned. On success the
// session is Ready and the telemetry poller starts.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Connected {
		defer s.mu.Unlock()
		return fmt.Errorf("%w: initialize while %s", ErrInvalidState, s.state)
	}
	epoch := s.epoch
	tr := s.transport
	s.setStateLocked(Initializing)
	s.mu.Unlock()

	var err error
	attempts := 0
retry:
	for attempts < s.initAttempts {
		if attempts > 0 {
			s.log.Warn().Err(err).Int("attempt", attempts+1).
				Dur("delay", s.initRetryDelay).Msg("controller bring-up failed, retrying")
			select {
			case <-ctx.Done():
				err = ctx.Err()
				break retry
			case <-time.After(s.initRetryDelay):
			}
		}
		attempts++
		if err = tr.Init(ctx); err == nil {
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.state != Initializing {
		return ErrStaleResult
	}
	if err != nil {
		s.closeTransportLocked()
		s.setStateLocked(Failed)
		s.setStateLocked(Disconnected)
		return &InitError{Attempts: attempts, Err: err}
	}
	s.setStateLocked(Ready)
	s.startPollerLocked()
	return nil
}

// Disconnect tears down the link. Safe from any state, always leaves the
// session Disconnected, stops the telemetry poller and invalidates any
// in-flight backend results.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Disconnected {
		return nil
	}
	s.epoch++
	s.stopPollerLocked()
	err := s.closeTransportLocked()
	s.setStateLocked(Disconnected)
	if err != nil {
		return fmt.Errorf("close link: %w", err)
	}
	return nil
}

// borrow hands out the transport for one backend round trip. It fails with
// ErrNotReady outside the Ready state. The returned epoch must be passed to
// applyIfCurrent to commit the result.
func (s *Session) borrow() (Transport, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready {
		return nil, 0, fmt.Errorf("%w (state %s)", ErrNotReady, s.state)
	}
	return s.transport, s.epoch, nil
}

// applyIfCurrent runs apply only if the session is still Ready in the same
// epoch the result belongs to. Stale results are dropped and false is
// returned. The session lock is held across apply so a disconnect can never
// interleave with the commit.
func (s *Session) applyIfCurrent(epoch uint64, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready || s.epoch != epoch {
		return false
	}
	apply()
	return true
}

func (s *Session) setStateLocked(next State) {
	if s.state == next {
		return
	}
	s.log.Info().Stringer("from", s.state).Stringer("to", next).Msg("session state")
	s.state = next
	select {
	case s.stateCh <- next:
	default:
		// Consumer is behind; drop the oldest notification.
		select {
		case <-s.stateCh:
		default:
		}
		s.stateCh <- next
	}
}

func (s *Session) closeTransportLocked() error {
	if s.transport == nil {
		return nil
	}
	err := s.transport.Close()
	s.transport = nil
	return err
}

func (s *Session) startPollerLocked() {
	if s.poller == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.pollCancel = cancel
	go s.poller.Run(ctx)
}

func (s *Session) stopPollerLocked() {
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
}
