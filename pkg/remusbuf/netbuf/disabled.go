package netbuf

import (
	"errors"

	"github.com/randalmurphal/remusbuf/pkg/remusbuf"
)

// ErrNetbufDisabled is returned for every NIC on hosts without plug qdisc support.
var ErrNetbufDisabled = errors.New("network buffering not supported on this host")

// Disabled stands in for Handler on hosts without plug qdisc support.
// Its Match fails hard, so every NIC is reported unsupported and never set up.
type Disabled struct{}

// Compile-time interface checks.
var (
	_ remusbuf.Handler = Disabled{}
	_ remusbuf.Matcher = Disabled{}
)

// Kind returns remusbuf.KindNIC.
func (Disabled) Kind() remusbuf.Kind { return remusbuf.KindNIC }

// Name returns "netbuf-disabled".
func (Disabled) Name() string { return "netbuf-disabled" }

// Init does nothing.
func (Disabled) Init(remusbuf.Context) error { return nil }

// Cleanup does nothing.
func (Disabled) Cleanup(remusbuf.Context) {}

// Match rejects every device.
func (Disabled) Match(remusbuf.Context, *remusbuf.Device) error { return ErrNetbufDisabled }

// Setup rejects every device.
func (Disabled) Setup(remusbuf.Context, *remusbuf.Device) error { return ErrNetbufDisabled }

// Teardown does nothing.
func (Disabled) Teardown(remusbuf.Context, *remusbuf.Device) error { return nil }
