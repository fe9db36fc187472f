package remusbuf

import (
	"context"
	"slices"
)

// Discoverer lists a domain's devices.
type Discoverer interface {
	// NICs returns the domain's network interfaces.
	NICs(ctx context.Context, domid uint32) ([]NIC, error)

	// Disks returns the domain's disks.
	Disks(ctx context.Context, domid uint32) ([]Disk, error)
}

// StaticDiscoverer returns fixed device lists regardless of domain.
type StaticDiscoverer struct {
	nics  []NIC
	disks []Disk
}

// NewStaticDiscoverer creates a discoverer over the given devices.
func NewStaticDiscoverer(nics []NIC, disks []Disk) *StaticDiscoverer {
	return &StaticDiscoverer{nics: slices.Clone(nics), disks: slices.Clone(disks)}
}

// NICs returns a copy of the configured network interfaces.
func (s *StaticDiscoverer) NICs(_ context.Context, _ uint32) ([]NIC, error) {
	return slices.Clone(s.nics), nil
}

// Disks returns a copy of the configured disks.
func (s *StaticDiscoverer) Disks(_ context.Context, _ uint32) ([]Disk, error) {
	return slices.Clone(s.disks), nil
}
