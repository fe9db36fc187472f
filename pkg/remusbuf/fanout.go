package remusbuf

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/randalmurphal/remusbuf/pkg/remusbuf/journal"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/observability"
)

// deviceOp is one round's operation on one device.
type deviceOp func(ctx Context, dev *Device) error

// deviceResult is what a device goroutine reports to the collector.
type deviceResult struct {
	dev *Device
	err error
}

// roundOutcome is the collector's view of a finished round.
type roundOutcome struct {
	phase    Phase
	devices  int
	handled  int
	failed   int
	firstErr error
	// completed lists devices in completion order.
	completed []*Device
	results   []journal.DeviceResult
	duration  time.Duration
}

// err returns nil or a *RoundError carrying the first failure.
func (o *roundOutcome) err() error {
	if o.firstErr == nil {
		return nil
	}
	return &RoundError{
		Phase:   o.phase,
		Devices: o.devices,
		Failed:  o.failed,
		Err:     o.firstErr,
	}
}

// fanOut runs op on every device concurrently and joins on all of them.
//
// Each device reports exactly once over a channel to this goroutine, which
// alone owns the handled count, the sticky first error and the completion
// order. A failed device never stops the others.
func (c *Coordinator) fanOut(ctx context.Context, phase Phase, devs []*Device, op deviceOp) *roundOutcome {
	elapsed := observability.TimedOperation()
	logger := c.cfg.logger

	observability.LogRoundStart(logger, string(phase), len(devs))
	tracingCtx, span := c.cfg.spans.StartRoundSpan(ctx, string(phase), c.base.cycleID, c.domid)
	base := c.base.withPhase(ctx, phase)

	// Set up concurrency control
	var sem chan struct{}
	if c.cfg.maxConcurrency > 0 {
		sem = make(chan struct{}, c.cfg.maxConcurrency)
	}

	results := make(chan deviceResult, len(devs))
	var wg sync.WaitGroup

	for _, dev := range devs {
		wg.Add(1)
		go func(dev *Device) {
			defer wg.Done()

			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			results <- c.runDevice(tracingCtx, base, dev, op)
		}(dev)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := &roundOutcome{
		phase:     phase,
		devices:   len(devs),
		completed: make([]*Device, 0, len(devs)),
		results:   make([]journal.DeviceResult, 0, len(devs)),
	}
	for res := range results {
		out.handled++
		out.completed = append(out.completed, res.dev)

		jr := journal.DeviceResult{Device: res.dev.ID(), Kind: res.dev.kind.String()}
		if res.err != nil {
			out.failed++
			jr.Error = res.err.Error()
			if out.firstErr == nil {
				out.firstErr = res.err
			}
		}
		out.results = append(out.results, jr)
	}
	out.duration = elapsed()

	roundErr := out.err()
	c.cfg.spans.EndSpanWithError(span, roundErr)
	c.cfg.metrics.RecordRound(ctx, string(phase), out.devices, roundErr == nil, out.duration)

	durationMs := observability.Ms(out.duration)
	if roundErr != nil {
		observability.LogRoundError(logger, string(phase), roundErr, durationMs, out.failed)
	} else {
		observability.LogRoundComplete(logger, string(phase), durationMs, out.handled)
	}

	c.appendJournal(out)
	return out
}

// runDevice executes op for one device with panic recovery, a device span,
// metrics and logging. Errors are returned as *DeviceError.
func (c *Coordinator) runDevice(tracingCtx context.Context, base *cycleContext, dev *Device, op deviceOp) (res deviceResult) {
	elapsed := observability.TimedOperation()
	phase := string(base.phase)
	spanCtx, span := c.cfg.spans.StartDeviceSpan(tracingCtx, phase, dev.ID())
	dctx := base.withDevice(spanCtx, dev)
	res.dev = dev

	defer func() {
		if r := recover(); r != nil {
			res.err = &DeviceError{
				Device: dev.ID(),
				Kind:   dev.kind,
				Op:     phase,
				Err: &PanicError{
					Device: dev.ID(),
					Value:  r,
					Stack:  string(debug.Stack()),
				},
			}
		}

		duration := elapsed()
		c.cfg.spans.EndSpanWithError(span, res.err)
		c.cfg.metrics.RecordDeviceOp(spanCtx, dev.kind.String(), phase, duration, res.err)
		if res.err != nil {
			observability.LogDeviceError(dctx.logger, phase, res.err)
		} else {
			observability.LogDeviceComplete(dctx.logger, phase, observability.Ms(duration))
		}
	}()

	if err := op(dctx, dev); err != nil {
		var de *DeviceError
		if !errors.As(err, &de) {
			err = &DeviceError{Device: dev.ID(), Kind: dev.kind, Op: phase, Err: err}
		}
		res.err = err
	}
	return res
}

// appendJournal records a round. Failures are logged only.
func (c *Coordinator) appendJournal(out *roundOutcome) {
	if c.cfg.journal == nil {
		return
	}

	rec := journal.New(c.base.cycleID, c.domid, string(out.phase))
	rec.Devices = out.devices
	rec.Failed = out.failed
	rec.DurationMs = out.duration.Milliseconds()
	rec.Results = out.results
	if err := out.err(); err != nil {
		rec.Error = err.Error()
	}

	data, err := rec.Marshal()
	if err != nil {
		observability.LogJournalError(c.cfg.logger, string(out.phase), err)
		return
	}
	if _, err := c.cfg.journal.Append(rec.CycleID, data); err != nil {
		observability.LogJournalError(c.cfg.logger, string(out.phase), err)
	}
}
