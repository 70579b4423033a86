package cobot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTransport is a scriptable backend. Per-command behavior is overridden
// through the Fn fields; every call is recorded.
type fakeTransport struct {
	mu     sync.Mutex
	calls  []string
	closed bool

	initFn      func(ctx context.Context) error
	jointsFn    func(ctx context.Context) ([]float64, error)
	moveFn      func(ctx context.Context, joint int, angle, speed float64) error
	moveAllFn   func(ctx context.Context, targets []MoveTarget) error
	stopFn      func(ctx context.Context, joint int) error
	stopAllFn   func(ctx context.Context, smooth bool) error
	calibrateFn func(ctx context.Context, mask uint8) error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeTransport) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) Init(ctx context.Context) error {
	f.record("init")
	if f.initFn != nil {
		return f.initFn(ctx)
	}
	return nil
}

func (f *fakeTransport) Joints(ctx context.Context) ([]float64, error) {
	f.record("joints")
	if f.jointsFn != nil {
		return f.jointsFn(ctx)
	}
	return make([]float64, JointCount), nil
}

func (f *fakeTransport) MoveTo(ctx context.Context, joint int, angle, speed float64) error {
	f.record("move_to")
	if f.moveFn != nil {
		return f.moveFn(ctx, joint, angle, speed)
	}
	return nil
}

func (f *fakeTransport) MoveAll(ctx context.Context, targets []MoveTarget) error {
	f.record("move_all")
	if f.moveAllFn != nil {
		return f.moveAllFn(ctx, targets)
	}
	return nil
}

func (f *fakeTransport) Stop(ctx context.Context, joint int) error {
	f.record("stop")
	if f.stopFn != nil {
		return f.stopFn(ctx, joint)
	}
	return nil
}

func (f *fakeTransport) StopAll(ctx context.Context, smooth bool) error {
	f.record("stop_all")
	if f.stopAllFn != nil {
		return f.stopAllFn(ctx, smooth)
	}
	return nil
}

func (f *fakeTransport) Calibrate(ctx context.Context, mask uint8) error {
	f.record("calibrate")
	if f.calibrateFn != nil {
		return f.calibrateFn(ctx, mask)
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func dialerFor(tr Transport) Dialer {
	return DialerFunc(func(context.Context, string, int) (Transport, error) {
		return tr, nil
	})
}

// testConfig keeps the background poller quiet so tests drive PollOnce
// themselves.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = Duration(time.Hour)
	cfg.InitRetryDelay = Duration(time.Millisecond)
	return cfg
}

func newTestClient(t *testing.T, cfg Config, tr Transport) *Client {
	t.Helper()
	c, err := New(cfg, dialerFor(tr))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Disconnect() })
	return c
}

func readyClient(t *testing.T, tr Transport) *Client {
	t.Helper()
	c := newTestClient(t, testConfig(), tr)
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Initialize(context.Background()))
	require.Equal(t, Ready, c.State())
	return c
}
