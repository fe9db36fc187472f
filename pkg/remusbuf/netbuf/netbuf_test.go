package netbuf

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/randalmurphal/remusbuf/pkg/remusbuf"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/script"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/xs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNetlink is an in-memory Netlink.
type fakeNetlink struct {
	mu      sync.Mutex
	links   map[string]int
	qdiscs  []Qdisc
	plugs   []PlugAction
	plugErr error
	dumpErr error
	dumps   int
	closed  int
}

func newFakeNetlink() *fakeNetlink {
	return &fakeNetlink{links: make(map[string]int)}
}

// addIFB registers an ifb link with a root qdisc of the given kind.
func (f *fakeNetlink) addIFB(name string, index int, kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[name] = index
	f.qdiscs = append(f.qdiscs, Qdisc{LinkIndex: index, Handle: 1 << 16, Parent: HandleRoot, Kind: kind})
}

func (f *fakeNetlink) Qdiscs() ([]Qdisc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dumps++
	if f.dumpErr != nil {
		return nil, f.dumpErr
	}
	return append([]Qdisc(nil), f.qdiscs...), nil
}

func (f *fakeNetlink) LinkIndex(name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.links[name]
	if !ok {
		return 0, errors.New("link not found")
	}
	return i, nil
}

func (f *fakeNetlink) Plug(q Qdisc, action PlugAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.plugErr != nil {
		return f.plugErr
	}
	f.plugs = append(f.plugs, action)
	return nil
}

func (f *fakeNetlink) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

// fakeRunner simulates the netbuf script against a store.
type fakeRunner struct {
	mu    sync.Mutex
	cmds  []script.Cmd
	store xs.Store
	// ifb is written to XENBUS_PATH/ifb on setup when non-empty.
	ifb        string
	hotplugErr string
	exitCode   int
	runErr     error
}

func (r *fakeRunner) Run(ctx context.Context, c script.Cmd) (script.Result, error) {
	r.mu.Lock()
	r.cmds = append(r.cmds, c)
	r.mu.Unlock()

	if r.runErr != nil {
		return script.Result{}, r.runErr
	}
	if len(c.Args) > 0 && c.Args[0] == "setup" {
		base := c.Env["XENBUS_PATH"]
		if r.ifb != "" {
			_ = r.store.Write(ctx, base+"/ifb", r.ifb)
		}
		if r.hotplugErr != "" {
			_ = r.store.Write(ctx, base+"/hotplug-error", r.hotplugErr)
		}
	}
	return script.Result{ExitCode: r.exitCode, Stderr: []byte("script stderr")}, nil
}

func (r *fakeRunner) last() script.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmds[len(r.cmds)-1]
}

type fixture struct {
	nl      *fakeNetlink
	store   *xs.MemoryStore
	runner  *fakeRunner
	handler *Handler
	ctx     remusbuf.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{nl: newFakeNetlink(), store: xs.NewMemoryStore()}
	f.runner = &fakeRunner{store: f.store, ifb: "ifb7.0"}
	f.nl.addIFB("ifb7.0", 12, KindPlug)
	f.handler = New(
		WithScriptDir("/opt/scripts"),
		WithDialer(func() (Netlink, error) { return f.nl, nil }),
	)
	f.ctx = remusbuf.NewContext(context.Background(), 7,
		remusbuf.WithContextStore(f.store),
		remusbuf.WithContextScripts(f.runner))
	require.NoError(t, f.handler.Init(f.ctx))
	return f
}

func TestHandler_SetupAndBuffer(t *testing.T) {
	f := newFixture(t)
	dev := remusbuf.NewNICDevice(remusbuf.NIC{DevID: 0})

	require.NoError(t, f.handler.Setup(f.ctx, dev))

	cmd := f.runner.last()
	assert.Equal(t, "/opt/scripts/remus-netbuf-setup", cmd.Path)
	assert.Equal(t, []string{"setup"}, cmd.Args)
	assert.Equal(t, "vif7.0", cmd.Env["vifname"])
	assert.Equal(t, "/libxl/7/remus/netbuf/0", cmd.Env["XENBUS_PATH"])
	assert.Equal(t, script.DefaultTimeout, cmd.Timeout)

	require.NoError(t, f.handler.PostSuspend(f.ctx, dev))
	require.NoError(t, f.handler.Commit(f.ctx, dev))
	assert.Equal(t, []PlugAction{PlugBuffer, PlugReleaseOne}, f.nl.plugs)

	require.NoError(t, f.handler.Teardown(f.ctx, dev))
	cmd = f.runner.last()
	assert.Equal(t, []string{"teardown"}, cmd.Args)
	assert.Equal(t, "ifb7.0", cmd.Env["REMUS_IFB"])
	assert.Equal(t, "vif7.0", cmd.Env["vifname"])

	assert.ErrorIs(t, f.handler.PostSuspend(f.ctx, dev), ErrNotReady)
}

func TestHandler_VifNameFromStore(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(context.Background(), xs.VifNamePath(7, 0), "eth-guest"))

	dev := remusbuf.NewNICDevice(remusbuf.NIC{DevID: 0})
	require.NoError(t, f.handler.Setup(f.ctx, dev))
	assert.Equal(t, "eth-guest", f.runner.last().Env["vifname"])
}

func TestVifName_Fallback(t *testing.T) {
	store := xs.NewMemoryStore()
	ctx := remusbuf.NewContext(context.Background(), 3)

	name, err := VifName(ctx, store, 3, remusbuf.NIC{DevID: 2})
	require.NoError(t, err)
	assert.Equal(t, "vif3.2", name)

	name, err = VifName(ctx, store, 3, remusbuf.NIC{DevID: 2, Emulated: true})
	require.NoError(t, err)
	assert.Equal(t, "vif3.2-emu", name)
}

func TestHandler_SetupFailures(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *fixture)
		wantErr error
		wantMsg string
		wantIFB string
	}{
		{
			name:    "script exits nonzero",
			prepare: func(f *fixture) { f.runner.exitCode = 1 },
			wantMsg: "exited with status 1",
			wantIFB: "ifb7.0",
		},
		{
			name:    "hotplug error published",
			prepare: func(f *fixture) { f.runner.hotplugErr = "ifb allocation failed" },
			wantErr: ErrHotplug,
			wantIFB: "ifb7.0",
		},
		{
			name:    "script cannot run",
			prepare: func(f *fixture) { f.runner.runErr = script.ErrTimeout },
			wantErr: script.ErrTimeout,
		},
		{
			name:    "no ifb",
			prepare: func(f *fixture) { f.runner.ifb = "" },
			wantErr: ErrNoIFB,
		},
		{
			name: "root qdisc is not plug",
			prepare: func(f *fixture) {
				f.runner.ifb = "ifb7.9"
				f.nl.addIFB("ifb7.9", 40, "pfifo_fast")
			},
			wantErr: ErrNotPlug,
			wantIFB: "ifb7.9",
		},
		{
			name: "no root qdisc",
			prepare: func(f *fixture) {
				f.runner.ifb = "ifb7.8"
				f.nl.links["ifb7.8"] = 41
			},
			wantErr: ErrNotPlug,
			wantIFB: "ifb7.8",
		},
		{
			name:    "cache refresh fails",
			prepare: func(f *fixture) { f.nl.dumpErr = errors.New("netlink busy") },
			wantMsg: "refresh qdisc cache",
			wantIFB: "ifb7.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.prepare(f)
			dev := remusbuf.NewNICDevice(remusbuf.NIC{DevID: 0})

			err := f.handler.Setup(f.ctx, dev)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}

			// Teardown still runs the script and passes the ifb when known.
			f.runner.exitCode = 0
			f.runner.runErr = nil
			require.NoError(t, f.handler.Teardown(f.ctx, dev))
			cmd := f.runner.last()
			assert.Equal(t, []string{"teardown"}, cmd.Args)
			assert.Equal(t, tt.wantIFB, cmd.Env["REMUS_IFB"])
		})
	}
}

func TestHandler_EmptyHotplugErrorFails(t *testing.T) {
	f := newFixture(t)
	base := xs.NetbufPath(7, 0)
	require.NoError(t, f.store.Write(context.Background(), base+"/hotplug-error", ""))

	dev := remusbuf.NewNICDevice(remusbuf.NIC{DevID: 0})
	err := f.handler.Setup(f.ctx, dev)
	assert.ErrorIs(t, err, ErrHotplug)
	assert.Empty(t, f.nl.plugs)
}

func TestHandler_NoIFBWrapsNotFound(t *testing.T) {
	f := newFixture(t)
	f.runner.ifb = ""
	require.NoError(t, f.store.Write(context.Background(), xs.NetbufPath(7, 0)+"/ifb", ""))

	err := f.handler.Setup(f.ctx, remusbuf.NewNICDevice(remusbuf.NIC{DevID: 0}))
	assert.ErrorIs(t, err, ErrNoIFB)
	assert.ErrorIs(t, err, xs.ErrNotFound)
}

func TestHandler_TeardownIdempotent(t *testing.T) {
	f := newFixture(t)
	dev := remusbuf.NewNICDevice(remusbuf.NIC{DevID: 1})
	require.NoError(t, f.handler.Setup(f.ctx, dev))

	require.NoError(t, f.handler.Teardown(f.ctx, dev))
	n := len(f.runner.cmds)
	require.NoError(t, f.handler.Teardown(f.ctx, dev))
	assert.Len(t, f.runner.cmds, n)

	// Never set up.
	require.NoError(t, f.handler.Teardown(f.ctx, remusbuf.NewNICDevice(remusbuf.NIC{DevID: 5})))
}

func TestHandler_PlugErrorIsDeviceLocal(t *testing.T) {
	f := newFixture(t)
	dev := remusbuf.NewNICDevice(remusbuf.NIC{DevID: 0})
	require.NoError(t, f.handler.Setup(f.ctx, dev))

	f.nl.plugErr = errors.New("ENODEV")
	assert.ErrorContains(t, f.handler.PostSuspend(f.ctx, dev), "ENODEV")
}

func TestHandler_InitAndCleanup(t *testing.T) {
	nl := newFakeNetlink()
	h := New(WithDialer(func() (Netlink, error) { return nl, nil }))
	ctx := remusbuf.NewContext(context.Background(), 1)

	require.NoError(t, h.Init(ctx))
	assert.Equal(t, 1, nl.dumps, "cache loaded at init")

	h.Cleanup(ctx)
	assert.Equal(t, 1, nl.closed)
	h.Cleanup(ctx)
	assert.Equal(t, 1, nl.closed)

	dev := remusbuf.NewNICDevice(remusbuf.NIC{DevID: 0})
	dev.SetState(&nicState{qdisc: &Qdisc{Kind: KindPlug}})
	assert.ErrorIs(t, h.Commit(ctx, dev), ErrNotInitialized)
}

func TestHandler_InitFailures(t *testing.T) {
	ctx := remusbuf.NewContext(context.Background(), 1)

	h := New(WithDialer(func() (Netlink, error) { return nil, errors.New("EPERM") }))
	assert.ErrorContains(t, h.Init(ctx), "EPERM")

	nl := newFakeNetlink()
	nl.dumpErr = errors.New("dump failed")
	h = New(WithDialer(func() (Netlink, error) { return nl, nil }))
	assert.ErrorContains(t, h.Init(ctx), "load qdisc cache")
	assert.Equal(t, 1, nl.closed)
}

func TestHandler_NoStore(t *testing.T) {
	nl := newFakeNetlink()
	h := New(WithDialer(func() (Netlink, error) { return nl, nil }))
	ctx := remusbuf.NewContext(context.Background(), 1)
	require.NoError(t, h.Init(ctx))

	assert.ErrorIs(t, h.Setup(ctx, remusbuf.NewNICDevice(remusbuf.NIC{})), ErrNoStore)
}

func TestHandler_WithCoordinator(t *testing.T) {
	nl := newFakeNetlink()
	store := xs.NewMemoryStore()
	runner := &perDeviceRunner{store: store}
	for i := 0; i < 3; i++ {
		nl.addIFB("ifb2."+strconv.Itoa(i), 100+i, KindPlug)
	}

	h := New(WithDialer(func() (Netlink, error) { return nl, nil }))
	coord := remusbuf.New(2, remusbuf.Params{NetBuffer: true}, remusbuf.NewRegistry(h),
		remusbuf.NewStaticDiscoverer([]remusbuf.NIC{{DevID: 0}, {DevID: 1}, {DevID: 2}}, nil),
		remusbuf.WithStore(store), remusbuf.WithScripts(runner))
	ctx := context.Background()

	require.NoError(t, coord.Setup(ctx))
	require.NoError(t, coord.Postsuspend(ctx))
	require.NoError(t, coord.Commit(ctx))
	require.NoError(t, coord.Teardown(ctx))

	assert.Len(t, nl.plugs, 6)
	assert.Equal(t, 1, nl.closed)
}

// perDeviceRunner publishes ifb2.<devid> for each device.
type perDeviceRunner struct {
	mu    sync.Mutex
	store xs.Store
	runs  int
}

func (r *perDeviceRunner) Run(ctx context.Context, c script.Cmd) (script.Result, error) {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()
	if c.Args[0] == "setup" {
		base := c.Env["XENBUS_PATH"]
		devid := base[len(base)-1:]
		if err := r.store.Write(ctx, base+"/ifb", "ifb2."+devid); err != nil {
			return script.Result{}, err
		}
	}
	return script.Result{}, nil
}

func TestDisabled(t *testing.T) {
	coord := remusbuf.New(1, remusbuf.Params{NetBuffer: true}, remusbuf.NewRegistry(Disabled{}),
		remusbuf.NewStaticDiscoverer([]remusbuf.NIC{{DevID: 0}}, nil))
	ctx := context.Background()

	err := coord.Setup(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, remusbuf.ErrUnsupported)
	assert.ErrorIs(t, err, ErrNetbufDisabled)
	assert.Empty(t, coord.State().Worklist)
	require.NoError(t, coord.Teardown(ctx))
}
