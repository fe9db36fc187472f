package remusbuf

// CheckpointState is a snapshot of a Coordinator's cycle state.
type CheckpointState struct {
	DomainID uint32
	CycleID  string
	Params   Params

	// SetUp is true between a successful device discovery and Teardown.
	SetUp bool
	// TornDown is true once Teardown has run.
	TornDown bool

	// Handlers is the number of initialized handlers.
	Handlers int
	// NICs and Disks are the discovered device counts.
	NICs  int
	Disks int
	// Worklist lists the IDs of devices that will be torn down, in the
	// order their setup completed.
	Worklist []string

	// LastPhase is the most recent round, empty before the first.
	LastPhase Phase
	// Handled is the number of devices that reported in the last round.
	Handled int
	// Failed is the number of those that failed.
	Failed int
	// Err is the last round's aggregated error.
	Err error
}

// State returns a snapshot of the cycle state. It waits for a running
// round to finish.
func (c *Coordinator) State() CheckpointState {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := CheckpointState{
		DomainID: c.domid,
		CycleID:  c.cfg.cycleID,
		Params:   c.params,
		SetUp:    c.lifecycle == stateSetUp,
		TornDown: c.lifecycle == stateTornDown,
		Handlers: len(c.initialized),
		NICs:     len(c.nics),
		Disks:    len(c.disks),
		Worklist: make([]string, 0, len(c.worklist)),
	}
	for _, dev := range c.worklist {
		s.Worklist = append(s.Worklist, dev.ID())
	}
	if c.last != nil {
		s.LastPhase = c.last.phase
		s.Handled = c.last.handled
		s.Failed = c.last.failed
		s.Err = c.last.err()
	}
	return s
}

// Worklist returns the devices that will be torn down.
func (c *Coordinator) Worklist() []*Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Device, len(c.worklist))
	copy(out, c.worklist)
	return out
}
