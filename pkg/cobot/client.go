package cobot

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Client wires the joint read model, the link session, the telemetry poller
// and the command dispatcher together and is the surface the presentation
// layer talks to. It reads snapshots and calls commands; it never touches
// joint state directly.
type Client struct {
	cfg        Config
	joints     *Joints
	session    *Session
	poller     *Poller
	dispatcher *Dispatcher
}

// New builds a client from a validated config and a dialer for the link.
func New(cfg Config, dialer Dialer) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	joints := NewJoints(cfg.JointMeta())
	session := newSession(cfg, dialer, log.With().Str("component", "session").Logger())
	poller := newPoller(cfg, session, joints, log.With().Str("component", "poller").Logger())
	session.poller = poller
	dispatcher := newDispatcher(session, joints, log.With().Str("component", "dispatcher").Logger())

	return &Client{
		cfg:        cfg,
		joints:     joints,
		session:    session,
		poller:     poller,
		dispatcher: dispatcher,
	}, nil
}

// Config returns the config the client was built with.
func (c *Client) Config() Config { return c.cfg }

// State returns the current session state.
func (c *Client) State() State { return c.session.State() }

// States returns the session's state-transition channel.
func (c *Client) States() <-chan State { return c.session.States() }

// Snapshot returns a consistent snapshot of all joints.
func (c *Client) Snapshot() []JointState { return c.joints.Snapshot() }

// JointState returns a snapshot of one joint.
func (c *Client) JointState(id int) (JointState, bool) { return c.joints.State(id) }

// JointCount returns the number of configured joints.
func (c *Client) JointCount() int { return c.joints.Count() }

// Connect opens the link using the config's default port and baud rate.
func (c *Client) Connect(ctx context.Context) error {
	return c.session.Connect(ctx, c.cfg.Port, c.cfg.Baud)
}

// ConnectTo opens the link to an explicit port and baud rate.
func (c *Client) ConnectTo(ctx context.Context, port string, baud int) error {
	return c.session.Connect(ctx, port, baud)
}

// Initialize performs controller bring-up; on success the session is Ready
// and telemetry polling starts.
func (c *Client) Initialize(ctx context.Context) error {
	return c.session.Initialize(ctx)
}

// Disconnect tears down the link.
func (c *Client) Disconnect() error { return c.session.Disconnect() }

// MoveTo moves one joint to angle at speed.
func (c *Client) MoveTo(ctx context.Context, joint int, angle, speed float64) error {
	return c.dispatcher.MoveTo(ctx, joint, angle, speed)
}

// MoveAll moves several joints in one backend round trip.
func (c *Client) MoveAll(ctx context.Context, targets []MoveTarget) error {
	return c.dispatcher.MoveAll(ctx, targets)
}

// Stop halts one joint.
func (c *Client) Stop(ctx context.Context, joint int) error {
	return c.dispatcher.Stop(ctx, joint)
}

// StopAll halts every joint.
func (c *Client) StopAll(ctx context.Context, smooth bool) error {
	return c.dispatcher.StopAll(ctx, smooth)
}

// Calibrate runs controller-side calibration for the joints in mask.
func (c *Client) Calibrate(ctx context.Context, mask uint8) error {
	return c.dispatcher.Calibrate(ctx, mask)
}

// PollOnce performs a single telemetry fetch outside the regular cadence.
// Normally internal; exposed for hosts that drive polling themselves.
func (c *Client) PollOnce(ctx context.Context) error {
	return c.poller.PollOnce(ctx)
}
