// Package drbd checkpoints a domain's disks through DRBD.
//
// A disk is claimed when the block-drbd-probe script accepts its backing
// path. PostSuspend sends a checkpoint barrier; PreResume waits for the
// peer to acknowledge it before the domain runs again.
package drbd

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/randalmurphal/remusbuf/pkg/remusbuf"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/script"
)

// DefaultProbeScript is the probe script name under the script dir.
const DefaultProbeScript = "block-drbd-probe"

// ErrNotSetUp indicates a checkpoint operation on a disk without a control handle.
var ErrNotSetUp = errors.New("drbd disk not set up")

// Handler is the DRBD disk kind.
type Handler struct {
	probe   string
	timeout time.Duration
	open    Opener
}

// diskState is the per-device state kept in Device.State.
type diskState struct {
	conn Conn
	// ackwait is set once a barrier was sent and its ack not yet awaited.
	ackwait bool
	// waiting is closed when the last ack wait returned. It stays open
	// while an abandoned wait is still blocked on conn.
	waiting chan struct{}
}

// Option configures a Handler.
type Option func(*Handler)

// WithProbeScript sets the probe script path.
func WithProbeScript(path string) Option {
	return func(h *Handler) {
		h.probe = path
	}
}

// WithScriptDir sets the directory holding block-drbd-probe.
func WithScriptDir(dir string) Option {
	return func(h *Handler) {
		h.probe = filepath.Join(dir, DefaultProbeScript)
	}
}

// WithTimeout bounds each probe run. Default: script.DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithOpener replaces how control handles are opened.
func WithOpener(o Opener) Option {
	return func(h *Handler) {
		if o != nil {
			h.open = o
		}
	}
}

// New creates a DRBD disk handler.
func New(opts ...Option) *Handler {
	h := &Handler{
		probe:   filepath.Join("/etc/xen/scripts", DefaultProbeScript),
		timeout: script.DefaultTimeout,
		open:    Open,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Compile-time interface checks.
var (
	_ remusbuf.Handler       = (*Handler)(nil)
	_ remusbuf.Matcher       = (*Handler)(nil)
	_ remusbuf.PostSuspender = (*Handler)(nil)
	_ remusbuf.PreResumer    = (*Handler)(nil)
)

// Kind returns remusbuf.KindDisk.
func (h *Handler) Kind() remusbuf.Kind {
	return remusbuf.KindDisk
}

// Name returns "drbd".
func (h *Handler) Name() string {
	return "drbd"
}

// Init has no shared resources to acquire.
func (h *Handler) Init(ctx remusbuf.Context) error {
	ctx.Logger().Debug("drbd initialized", "probe", h.probe)
	return nil
}

// Cleanup does nothing.
func (h *Handler) Cleanup(remusbuf.Context) {}

// Match runs the probe script on the disk's backing path. Exit status 0
// claims the disk; any other status declines it.
func (h *Handler) Match(ctx remusbuf.Context, dev *remusbuf.Device) error {
	disk := dev.Disk()
	if disk == nil {
		return remusbuf.ErrNotClaimed
	}

	cmd := script.Cmd{
		Path:    h.probe,
		Args:    []string{disk.PdevPath},
		Timeout: h.timeout,
	}
	res, err := ctx.Scripts().Run(ctx, cmd)
	if errors.Is(err, script.ErrTimeout) {
		return fmt.Errorf("%w: %w", remusbuf.ErrNotClaimed, err)
	}
	if err != nil {
		return fmt.Errorf("run %s: %w", cmd, err)
	}
	if !res.Success() {
		return fmt.Errorf("%s exited with status %d: %w", cmd, res.ExitCode, remusbuf.ErrNotClaimed)
	}
	return nil
}

// Setup opens the control handle.
func (h *Handler) Setup(ctx remusbuf.Context, dev *remusbuf.Device) error {
	disk := dev.Disk()
	if disk == nil {
		return fmt.Errorf("drbd: %s is not a disk", dev.ID())
	}

	conn, err := h.open(disk.PdevPath)
	if err != nil {
		return err
	}
	dev.SetState(&diskState{conn: conn})
	return nil
}

// PostSuspend sends a checkpoint barrier unless one is still unacknowledged.
func (h *Handler) PostSuspend(ctx remusbuf.Context, dev *remusbuf.Device) error {
	st, err := state(dev)
	if err != nil {
		return err
	}
	if st.ackwait {
		return nil
	}
	if err := st.conn.SendCheckpoint(); err != nil {
		return err
	}
	st.ackwait = true
	return nil
}

// PreResume waits for the peer to acknowledge the pending barrier. The
// blocking call runs on its own goroutine; if ctx ends first PreResume
// returns without the ack and the wait keeps running until the driver
// answers. Teardown does not close the handle before then.
func (h *Handler) PreResume(ctx remusbuf.Context, dev *remusbuf.Device) error {
	st, err := state(dev)
	if err != nil {
		return err
	}
	if !st.ackwait {
		return nil
	}
	st.ackwait = false

	conn := st.conn
	done := make(chan error, 1)
	waiting := make(chan struct{})
	st.waiting = waiting
	go func() {
		defer close(waiting)
		done <- conn.WaitCheckpointAck()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("wait checkpoint ack: %w", ctx.Err())
	}
}

// Teardown closes the control handle. It is a no-op when already closed.
//
// If an abandoned ack wait is still blocked on the handle, Teardown waits
// for it first. When ctx ends before that, the handle stays open and a
// later Teardown may retry.
func (h *Handler) Teardown(ctx remusbuf.Context, dev *remusbuf.Device) error {
	st, _ := dev.State().(*diskState)
	if st == nil || st.conn == nil {
		return nil
	}
	if err := waitAck(ctx, st.waiting); err != nil {
		return fmt.Errorf("close %s: ack wait still pending: %w", dev.Disk().PdevPath, err)
	}
	conn := st.conn
	st.conn = nil
	st.ackwait = false
	if err := conn.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dev.Disk().PdevPath, err)
	}
	return nil
}

// waitAck blocks until a finished or absent ack wait, or until ctx ends.
func waitAck(ctx remusbuf.Context, waiting <-chan struct{}) error {
	if waiting == nil {
		return nil
	}
	select {
	case <-waiting:
		return nil
	default:
	}
	select {
	case <-waiting:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func state(dev *remusbuf.Device) (*diskState, error) {
	st, _ := dev.State().(*diskState)
	if st == nil || st.conn == nil {
		return nil, ErrNotSetUp
	}
	return st, nil
}

// AckPending reports whether dev has a barrier awaiting acknowledgment.
func AckPending(dev *remusbuf.Device) bool {
	st, _ := dev.State().(*diskState)
	return st != nil && st.ackwait
}
