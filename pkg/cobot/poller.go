package cobot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Poller fetches the joint-angle vector on a fixed cadence while the session
// is Ready and commits each batch to the joint read model. Failures are
// advisory: they are logged and the next tick proceeds as usual. Telemetry
// never changes session state.
type Poller struct {
	session  *Session
	joints   *Joints
	interval time.Duration
	log      zerolog.Logger
	inFlight atomic.Bool
}

func newPoller(cfg Config, session *Session, joints *Joints, log zerolog.Logger) *Poller {
	return &Poller{
		session:  session,
		joints:   joints,
		interval: cfg.PollInterval.Std(),
		log:      log,
	}
}

// Interval returns the polling cadence.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run polls until ctx is cancelled. The session starts it on reaching Ready
// and cancels it on leaving Ready.
func (p *Poller) Run(ctx context.Context) {
	p.log.Debug().Dur("interval", p.interval).Msg("telemetry poller started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Debug().Msg("telemetry poller stopped")
			return
		case <-ticker.C:
			err := p.PollOnce(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrPollInFlight):
				// Previous fetch still outstanding; tick skipped.
			case errors.Is(err, ErrNotReady), errors.Is(err, ErrStaleResult):
				// Session moved on; cancellation is on its way.
			case errors.Is(err, context.Canceled):
			default:
				p.log.Warn().Err(err).Msg("telemetry poll failed")
			}
		}
	}
}

// PollOnce performs a single telemetry fetch and commits it as one batch.
// At most one fetch is ever in flight; a call while another is outstanding
// returns ErrPollInFlight without touching the backend. A vector whose
// length does not match the joint count is discarded as a soft failure.
func (p *Poller) PollOnce(ctx context.Context) error {
	if !p.inFlight.CompareAndSwap(false, true) {
		return ErrPollInFlight
	}
	defer p.inFlight.Store(false)

	tr, epoch, err := p.session.borrow()
	if err != nil {
		return err
	}

	angles, err := tr.Joints(ctx)
	if err != nil {
		return &PollError{Err: err}
	}
	if len(angles) != p.joints.Count() {
		return &PollError{Err: fmt.Errorf("telemetry vector has %d angles, want %d", len(angles), p.joints.Count())}
	}

	var applyErr error
	if !p.session.applyIfCurrent(epoch, func() {
		applyErr = p.joints.applyMeasured(angles)
	}) {
		return ErrStaleResult
	}
	return applyErr
}
