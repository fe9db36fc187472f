package remusbuf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// recorder logs handler calls across goroutines.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(op string, dev *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dev == nil {
		r.calls = append(r.calls, op)
		return
	}
	r.calls = append(r.calls, op+":"+dev.ID())
}

// count returns how many calls start with prefix.
func (r *recorder) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (r *recorder) has(call string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c == call {
			return true
		}
	}
	return false
}

// basicHandler implements only the required Handler methods.
type basicHandler struct {
	kind Kind
	name string
	rec  *recorder

	initErr error
	// errs maps "op:deviceID" to the error that op returns.
	errs map[string]error
	// delays maps a device ID to how long each of its ops takes.
	delays map[string]time.Duration
	// panics maps "op:deviceID" to a panic value.
	panics map[string]any

	running    atomic.Int32
	maxRunning atomic.Int32
	cleanups   atomic.Int32
}

func newBasic(kind Kind, name string, rec *recorder) *basicHandler {
	return &basicHandler{
		kind:   kind,
		name:   name,
		rec:    rec,
		errs:   make(map[string]error),
		delays: make(map[string]time.Duration),
		panics: make(map[string]any),
	}
}

func (h *basicHandler) do(op string, dev *Device) error {
	h.rec.record(h.name+"."+op, dev)

	n := h.running.Add(1)
	defer h.running.Add(-1)
	for {
		m := h.maxRunning.Load()
		if n <= m || h.maxRunning.CompareAndSwap(m, n) {
			break
		}
	}

	if d := h.delays[dev.ID()]; d > 0 {
		time.Sleep(d)
	}
	if v, ok := h.panics[op+":"+dev.ID()]; ok {
		panic(v)
	}
	return h.errs[op+":"+dev.ID()]
}

func (h *basicHandler) Kind() Kind   { return h.kind }
func (h *basicHandler) Name() string { return h.name }

func (h *basicHandler) Init(ctx Context) error {
	h.rec.record(h.name+".init", nil)
	return h.initErr
}

func (h *basicHandler) Cleanup(ctx Context) {
	h.rec.record(h.name+".cleanup", nil)
	h.cleanups.Add(1)
}

func (h *basicHandler) Setup(ctx Context, dev *Device) error {
	return h.do("setup", dev)
}

func (h *basicHandler) Teardown(ctx Context, dev *Device) error {
	return h.do("teardown", dev)
}

// matchHandler adds Match to basicHandler.
type matchHandler struct {
	*basicHandler
	matchErr error
}

func (h *matchHandler) Match(ctx Context, dev *Device) error {
	h.rec.record(h.name+".match", dev)
	return h.matchErr
}

// fullHandler implements every optional checkpoint operation.
type fullHandler struct {
	*basicHandler
}

func (h *fullHandler) PostSuspend(ctx Context, dev *Device) error {
	return h.do("postsuspend", dev)
}

func (h *fullHandler) PreResume(ctx Context, dev *Device) error {
	return h.do("preresume", dev)
}

func (h *fullHandler) Commit(ctx Context, dev *Device) error {
	return h.do("commit", dev)
}

// failingDiscoverer fails to list one kind.
type failingDiscoverer struct {
	err error
}

func (d failingDiscoverer) NICs(ctx context.Context, domid uint32) ([]NIC, error) {
	return nil, d.err
}

func (d failingDiscoverer) Disks(ctx context.Context, domid uint32) ([]Disk, error) {
	return []Disk{{Vdev: "xvda"}}, nil
}

// nics returns n NICs with DevIDs 0..n-1.
func nics(n int) []NIC {
	out := make([]NIC, n)
	for i := range out {
		out[i] = NIC{DevID: i}
	}
	return out
}

// disks returns disks named xvda, xvdb, ...
func disks(n int) []Disk {
	out := make([]Disk, n)
	for i := range out {
		name := fmt.Sprintf("xvd%c", 'a'+i)
		out[i] = Disk{Vdev: name, PdevPath: "/dev/drbd/" + name}
	}
	return out
}

var errBoom = errors.New("boom")

var allKinds = Params{NetBuffer: true, DiskBuffer: true}
