// Package netbuf buffers a domain's outbound network traffic between
// checkpoints using the plug qdisc.
//
// Setup runs the remus-netbuf-setup script, which redirects the NIC's
// traffic through an ifb interface carrying a root plug qdisc and publishes
// the ifb name in the config store. PostSuspend plugs the qdisc so packets
// of the new epoch are held; Commit releases the previous epoch.
package netbuf

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/randalmurphal/remusbuf/pkg/remusbuf"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/script"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/xs"
)

// DefaultScript is the setup/teardown script name under the script dir.
const DefaultScript = "remus-netbuf-setup"

// Sentinel errors.
var (
	// ErrNotPlug indicates the ifb's root qdisc is missing or not a plug qdisc.
	ErrNotPlug = errors.New("root qdisc is not a plug qdisc")

	// ErrNoIFB indicates the setup script did not publish an ifb name.
	ErrNoIFB = errors.New("setup script did not publish an ifb")

	// ErrHotplug indicates the setup script reported an error in the store.
	ErrHotplug = errors.New("hotplug script error")

	// ErrNoStore indicates the Context carries no config store.
	ErrNoStore = errors.New("no config store")

	// ErrNotReady indicates a buffer operation on a device without a plug qdisc.
	ErrNotReady = errors.New("network buffer not set up")

	// ErrNotInitialized indicates the handler was used before Init.
	ErrNotInitialized = errors.New("netbuf handler not initialized")
)

// Handler is the network device kind. One Handler serves every NIC of a
// cycle and owns the shared netlink connection and qdisc cache.
type Handler struct {
	script  string
	timeout time.Duration
	dial    Dialer

	// mu serializes every use of nl and cache.
	mu    sync.Mutex
	nl    Netlink
	cache []Qdisc
}

// nicState is the per-device state kept in Device.State.
type nicState struct {
	vifname  string
	ifb      string
	qdisc    *Qdisc
	tornDown bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithScript sets the setup/teardown script path.
func WithScript(path string) Option {
	return func(h *Handler) {
		h.script = path
	}
}

// WithScriptDir sets the directory holding remus-netbuf-setup.
func WithScriptDir(dir string) Option {
	return func(h *Handler) {
		h.script = filepath.Join(dir, DefaultScript)
	}
}

// WithTimeout bounds each script run. Default: script.DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithDialer replaces how the netlink connection is opened.
func WithDialer(d Dialer) Option {
	return func(h *Handler) {
		if d != nil {
			h.dial = d
		}
	}
}

// New creates a network buffering handler.
func New(opts ...Option) *Handler {
	h := &Handler{
		script:  filepath.Join("/etc/xen/scripts", DefaultScript),
		timeout: script.DefaultTimeout,
		dial:    Dial,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Compile-time interface checks.
var (
	_ remusbuf.Handler       = (*Handler)(nil)
	_ remusbuf.PostSuspender = (*Handler)(nil)
	_ remusbuf.Committer     = (*Handler)(nil)
)

// Kind returns remusbuf.KindNIC.
func (h *Handler) Kind() remusbuf.Kind {
	return remusbuf.KindNIC
}

// Name returns "netbuf".
func (h *Handler) Name() string {
	return "netbuf"
}

// Init opens the netlink connection and loads the qdisc cache.
func (h *Handler) Init(ctx remusbuf.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.nl != nil {
		h.nl.Close()
		h.nl = nil
	}

	conn, err := h.dial()
	if err != nil {
		return fmt.Errorf("netlink: %w", err)
	}
	cache, err := conn.Qdiscs()
	if err != nil {
		conn.Close()
		return fmt.Errorf("load qdisc cache: %w", err)
	}
	h.nl = conn
	h.cache = cache

	ctx.Logger().Debug("netbuf initialized", "script", h.script, "qdiscs", len(cache))
	return nil
}

// Cleanup closes the netlink connection.
func (h *Handler) Cleanup(ctx remusbuf.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.nl != nil {
		h.nl.Close()
		h.nl = nil
	}
	h.cache = nil
}

// Setup runs the setup script for the NIC and locates the plug qdisc on
// the ifb it created.
func (h *Handler) Setup(ctx remusbuf.Context, dev *remusbuf.Device) error {
	nic := dev.NIC()
	if nic == nil {
		return fmt.Errorf("netbuf: %s is not a nic", dev.ID())
	}
	st := &nicState{}
	dev.SetState(st)

	store := ctx.Store()
	if store == nil {
		return ErrNoStore
	}

	domid := ctx.DomainID()
	vifname, err := VifName(ctx, store, domid, *nic)
	if err != nil {
		return err
	}
	st.vifname = vifname

	base := xs.NetbufPath(domid, nic.DevID)
	cmd := script.Cmd{
		Path: h.script,
		Args: []string{"setup"},
		Env: map[string]string{
			"vifname":     vifname,
			"XENBUS_PATH": base,
		},
		Timeout: h.timeout,
	}
	ctx.Logger().Debug("running netbuf setup script", "cmd", cmd.String(), "vifname", vifname)
	res, runErr := ctx.Scripts().Run(ctx, cmd)

	// The ifb is recorded even when the script failed so Teardown can
	// remove it.
	ifb, ifbErr := xs.ReadRequired(ctx, store, base+"/ifb")
	st.ifb = ifb

	if runErr != nil {
		return fmt.Errorf("run %s: %w", cmd, runErr)
	}
	// Any hotplug-error key fails setup, even an empty one.
	hotplugErr, failed, err := store.Read(ctx, base+"/hotplug-error")
	if err != nil {
		return fmt.Errorf("read hotplug-error: %w", err)
	}
	if failed {
		return fmt.Errorf("%s: %w: %q", cmd, ErrHotplug, hotplugErr)
	}
	if !res.Success() {
		return fmt.Errorf("%s exited with status %d: %s", cmd, res.ExitCode, res.Stderr)
	}
	if errors.Is(ifbErr, xs.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNoIFB, ifbErr)
	}
	if ifbErr != nil {
		return fmt.Errorf("read ifb: %w", ifbErr)
	}

	q, err := h.rootPlug(ifb)
	if err != nil {
		return err
	}
	st.qdisc = &q

	ctx.Logger().Info("network buffer ready", "vifname", vifname, "ifb", ifb, "qdisc", q.String())
	return nil
}

// rootPlug refreshes the cache and returns the plug qdisc at the root of ifb.
func (h *Handler) rootPlug(ifb string) (Qdisc, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.nl == nil {
		return Qdisc{}, ErrNotInitialized
	}

	cache, err := h.nl.Qdiscs()
	if err != nil {
		return Qdisc{}, fmt.Errorf("refresh qdisc cache: %w", err)
	}
	h.cache = cache

	index, err := h.nl.LinkIndex(ifb)
	if err != nil {
		return Qdisc{}, err
	}
	for _, q := range h.cache {
		if q.LinkIndex != index || !q.IsRoot() {
			continue
		}
		if q.Kind != KindPlug {
			return Qdisc{}, fmt.Errorf("%s: %w: found %q", ifb, ErrNotPlug, q.Kind)
		}
		return q, nil
	}
	return Qdisc{}, fmt.Errorf("%s: %w: no root qdisc", ifb, ErrNotPlug)
}

// PostSuspend starts buffering packets of the new epoch.
func (h *Handler) PostSuspend(ctx remusbuf.Context, dev *remusbuf.Device) error {
	return h.plug(dev, PlugBuffer)
}

// Commit releases the packets of the previous epoch.
func (h *Handler) Commit(ctx remusbuf.Context, dev *remusbuf.Device) error {
	return h.plug(dev, PlugReleaseOne)
}

func (h *Handler) plug(dev *remusbuf.Device, action PlugAction) error {
	st, _ := dev.State().(*nicState)
	if st == nil || st.qdisc == nil {
		return ErrNotReady
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.nl == nil {
		return ErrNotInitialized
	}
	return h.nl.Plug(*st.qdisc, action)
}

// Teardown runs the teardown script and drops the qdisc reference.
// It is a no-op on a device already torn down or never set up.
func (h *Handler) Teardown(ctx remusbuf.Context, dev *remusbuf.Device) error {
	st, _ := dev.State().(*nicState)
	if st == nil || st.tornDown {
		return nil
	}
	st.tornDown = true
	st.qdisc = nil

	if st.vifname == "" {
		return nil
	}

	env := map[string]string{
		"vifname":     st.vifname,
		"XENBUS_PATH": xs.NetbufPath(ctx.DomainID(), dev.NIC().DevID),
	}
	if st.ifb != "" {
		env["REMUS_IFB"] = st.ifb
	}
	cmd := script.Cmd{
		Path:    h.script,
		Args:    []string{"teardown"},
		Env:     env,
		Timeout: h.timeout,
	}
	res, err := ctx.Scripts().Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("run %s: %w", cmd, err)
	}
	if !res.Success() {
		return fmt.Errorf("%s exited with status %d: %s", cmd, res.ExitCode, res.Stderr)
	}
	return nil
}

// VifName returns the backend interface name of nic. It prefers the name
// the backend published in the store and falls back to vif<domid>.<devid>,
// with an "-emu" suffix for emulated NICs.
func VifName(ctx remusbuf.Context, store xs.Store, domid uint32, nic remusbuf.NIC) (string, error) {
	name, ok, err := store.Read(ctx, xs.VifNamePath(domid, nic.DevID))
	if err != nil {
		return "", fmt.Errorf("read vifname: %w", err)
	}
	if ok && name != "" {
		return name, nil
	}
	name = fmt.Sprintf("vif%d.%d", domid, nic.DevID)
	if nic.Emulated {
		name += "-emu"
	}
	return name, nil
}
