package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Defaults applied by Parse for keys that are absent.
const (
	DefaultScriptDir       = "/etc/xen/scripts"
	DefaultNetbufScript    = "remus-netbuf-setup"
	DefaultDRBDProbeScript = "block-drbd-probe"
	DefaultHotplugTimeout  = 40 * time.Second
)

// ErrInvalidSettings is returned when a settings document fails validation.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the typed coordinator configuration.
type Settings struct {
	// ScriptDir is where hotplug scripts live.
	ScriptDir string
	// NetbufScript overrides <ScriptDir>/remus-netbuf-setup.
	NetbufScript string
	// DRBDProbeScript overrides <ScriptDir>/block-drbd-probe.
	DRBDProbeScript string
	// HotplugTimeout bounds every script invocation.
	HotplugTimeout time.Duration

	// NetBuffer and DiskBuffer enable the NIC and disk kinds.
	NetBuffer  bool
	DiskBuffer bool
	// NetBufferSupported is false on hosts without the plug qdisc; NICs
	// are then reported unsupported instead of being set up.
	NetBufferSupported bool

	// MaxConcurrency bounds per-round device goroutines. 0 means unbounded.
	MaxConcurrency int

	// JournalPath is the SQLite round journal. Empty keeps it in memory.
	JournalPath string
	// StorePath is the SQLite config store. Empty keeps it in memory.
	StorePath string
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() Settings {
	return Settings{
		ScriptDir:          DefaultScriptDir,
		HotplugTimeout:     DefaultHotplugTimeout,
		NetBuffer:          true,
		DiskBuffer:         true,
		NetBufferSupported: true,
	}
}

// Parse builds Settings from a Config, applying defaults for absent keys.
func Parse(c Config) (Settings, error) {
	d := DefaultSettings()
	s := Settings{
		ScriptDir:          c.String("script_dir", d.ScriptDir),
		NetbufScript:       c.String("netbuf_script", ""),
		DRBDProbeScript:    c.String("drbd_probe_script", ""),
		HotplugTimeout:     c.Duration("hotplug_timeout", d.HotplugTimeout),
		NetBuffer:          c.Bool("netbuffer", d.NetBuffer),
		DiskBuffer:         c.Bool("diskbuffer", d.DiskBuffer),
		NetBufferSupported: c.Bool("netbuffer_supported", d.NetBufferSupported),
		MaxConcurrency:     c.Int("max_concurrency", 0),
		JournalPath:        c.String("journal_path", ""),
		StorePath:          c.String("store_path", ""),
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettings reads a YAML or JSON file and parses it into Settings.
func LoadSettings(path string) (Settings, error) {
	c, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	return Parse(c)
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	if s.HotplugTimeout <= 0 {
		return fmt.Errorf("%w: hotplug_timeout must be positive, got %s", ErrInvalidSettings, s.HotplugTimeout)
	}
	if s.MaxConcurrency < 0 {
		return fmt.Errorf("%w: max_concurrency must not be negative, got %d", ErrInvalidSettings, s.MaxConcurrency)
	}
	if s.ScriptDir == "" && (s.NetbufScript == "" || s.DRBDProbeScript == "") {
		return fmt.Errorf("%w: script_dir is empty", ErrInvalidSettings)
	}
	return nil
}

// NetbufScriptPath returns the netbuf setup script, honoring the override.
func (s Settings) NetbufScriptPath() string {
	if s.NetbufScript != "" {
		return s.NetbufScript
	}
	return filepath.Join(s.ScriptDir, DefaultNetbufScript)
}

// DRBDProbeScriptPath returns the DRBD probe script, honoring the override.
func (s Settings) DRBDProbeScriptPath() string {
	if s.DRBDProbeScript != "" {
		return s.DRBDProbeScript
	}
	return filepath.Join(s.ScriptDir, DefaultDRBDProbeScript)
}
