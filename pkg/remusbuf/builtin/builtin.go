// Package builtin assembles the stock handlers and stores from
// config.Settings.
//
//	settings, _ := config.LoadSettings(path)
//	store, _ := builtin.OpenStore(settings)
//	jrnl, _ := builtin.OpenJournal(settings)
//	coord := remusbuf.New(domid, builtin.Params(settings), builtin.Registry(settings),
//	    discoverer,
//	    append(builtin.Options(settings),
//	        remusbuf.WithStore(store),
//	        remusbuf.WithJournal(jrnl))...)
package builtin

import (
	"fmt"

	"github.com/randalmurphal/remusbuf/pkg/remusbuf"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/config"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/drbd"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/journal"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/netbuf"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/xs"
)

// buildConfig holds injectable transports.
type buildConfig struct {
	dialer netbuf.Dialer
	opener drbd.Opener
}

// Option configures Registry.
type Option func(*buildConfig)

// WithNetlinkDialer replaces the netlink transport of the netbuf handler.
func WithNetlinkDialer(d netbuf.Dialer) Option {
	return func(c *buildConfig) {
		c.dialer = d
	}
}

// WithDRBDOpener replaces how the drbd handler opens control handles.
func WithDRBDOpener(o drbd.Opener) Option {
	return func(c *buildConfig) {
		c.opener = o
	}
}

// Params returns the device kinds enabled by s.
func Params(s config.Settings) remusbuf.Params {
	return remusbuf.Params{
		NetBuffer:  s.NetBuffer,
		DiskBuffer: s.DiskBuffer,
	}
}

// Registry returns a fresh registry holding one handler per kind.
// Handlers keep per-cycle state, so build one registry per Coordinator.
//
// On hosts where s.NetBufferSupported is false the NIC kind is served by
// netbuf.Disabled, which reports every NIC unsupported.
func Registry(s config.Settings, opts ...Option) *remusbuf.Registry {
	var bc buildConfig
	for _, opt := range opts {
		opt(&bc)
	}

	reg := remusbuf.NewRegistry()

	if s.NetBufferSupported {
		reg.Register(netbuf.New(
			netbuf.WithScript(s.NetbufScriptPath()),
			netbuf.WithTimeout(s.HotplugTimeout),
			netbuf.WithDialer(bc.dialer),
		))
	} else {
		reg.Register(netbuf.Disabled{})
	}

	reg.Register(drbd.New(
		drbd.WithProbeScript(s.DRBDProbeScriptPath()),
		drbd.WithTimeout(s.HotplugTimeout),
		drbd.WithOpener(bc.opener),
	))

	return reg
}

// Options returns the coordinator options derived from s.
func Options(s config.Settings) []remusbuf.Option {
	return []remusbuf.Option{
		remusbuf.WithMaxConcurrency(s.MaxConcurrency),
	}
}

// OpenStore opens the config store named by s.StorePath, or an in-memory
// store when it is empty.
func OpenStore(s config.Settings) (xs.Store, error) {
	if s.StorePath == "" {
		return xs.NewMemoryStore(), nil
	}
	store, err := xs.NewSQLiteStore(s.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}
	return store, nil
}

// OpenJournal opens the round journal named by s.JournalPath, or an
// in-memory journal when it is empty.
func OpenJournal(s config.Settings) (journal.Store, error) {
	if s.JournalPath == "" {
		return journal.NewMemoryStore(), nil
	}
	store, err := journal.NewSQLiteStore(s.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return store, nil
}
