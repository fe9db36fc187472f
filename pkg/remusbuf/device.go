package remusbuf

import "fmt"

// NIC is the public identity of a virtual network interface.
type NIC struct {
	// DevID is the device index within the domain.
	DevID int
	// Emulated marks an emulated (ioemu) interface, whose backend name
	// carries an "-emu" suffix.
	Emulated bool
}

// Disk is the public identity of a virtual disk.
type Disk struct {
	// Vdev is the guest-visible name, e.g. "xvda".
	Vdev string
	// PdevPath is the backing device path in dom0.
	PdevPath string
}

// Device is one concrete device under coordination.
//
// Kind and identity are fixed at creation. The handler is nil while the
// device is being matched and fixed once a handler claims it. Only one
// goroutine operates on a device at a time, so handlers may use State and
// SetState without locking.
type Device struct {
	kind    Kind
	nic     *NIC
	disk    *Disk
	probe   int
	handler Handler
	state   any
}

// NewNICDevice creates an unbound network device.
func NewNICDevice(nic NIC) *Device {
	return &Device{kind: KindNIC, nic: &nic}
}

// NewDiskDevice creates an unbound disk device.
func NewDiskDevice(disk Disk) *Device {
	return &Device{kind: KindDisk, disk: &disk}
}

// Kind returns the device kind.
func (d *Device) Kind() Kind { return d.kind }

// NIC returns the network identity, or nil for disks.
func (d *Device) NIC() *NIC { return d.nic }

// Disk returns the disk identity, or nil for NICs.
func (d *Device) Disk() *Disk { return d.disk }

// Handler returns the bound handler, or nil if the device is unbound.
func (d *Device) Handler() Handler { return d.handler }

// ProbeIndex returns the position, among handlers of the device's kind, of
// the candidate currently being tried or the one that claimed it.
func (d *Device) ProbeIndex() int { return d.probe }

// State returns the handler-private state.
func (d *Device) State() any { return d.state }

// SetState replaces the handler-private state.
func (d *Device) SetState(s any) { d.state = s }

// ID returns a stable identifier used in logs and errors.
func (d *Device) ID() string {
	switch {
	case d.nic != nil:
		return fmt.Sprintf("nic/%d", d.nic.DevID)
	case d.disk != nil:
		return "disk/" + d.disk.Vdev
	default:
		return "unknown"
	}
}

// bind fixes the handler. It is called once, by matching.
func (d *Device) bind(h Handler) {
	d.handler = h
}
