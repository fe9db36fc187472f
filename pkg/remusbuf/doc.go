/*
Package remusbuf coordinates checkpoint-time buffering of a domain's devices
during Remus/COLO-style continuous replication.

Before a checkpoint epoch is acknowledged by the backup host, outbound
packets and disk writes issued by the running domain are held back, so that
nothing depending on unreplicated state leaves the host if the primary
fails. remusbuf discovers the domain's network interfaces and disks,
matches each to a kind-specific Handler, and drives them all through

	Setup -> {Postsuspend, Preresume, Commit}* -> Teardown

# Rounds

Each Coordinator method is a fan-out round: the operation runs on every
targeted device concurrently, and the method returns once every device has
reported. A failing device never stops the others. The first failure in
completion order becomes the round's error, wrapped in a *RoundError that
also carries the device and failure counts:

	if err := coord.Postsuspend(ctx); err != nil {
	    var re *remusbuf.RoundError
	    if errors.As(err, &re) {
	        log.Printf("%d of %d devices failed", re.Failed, re.Devices)
	    }
	}

Every device whose Setup was invoked, whether it succeeded or not, is torn
down by Teardown exactly once.

# Handlers

A Handler serves one device kind (KindNIC or KindDisk) and must implement
Init, Cleanup, Setup and Teardown. Match, PostSuspend, PreResume and Commit
are optional interfaces; a device whose handler lacks one succeeds at that
round without any call.

Several handlers may serve one kind. Matching tries them in registration
order: a handler without Match claims the device, Match returning
ErrNotClaimed passes it on, and any other error makes the device
unsupported (ErrUnsupported).

Built-in handlers live in subpackages: netbuf (plug qdisc network
buffering) and drbd (DRBD disk checkpoints). Package builtin assembles them
into a Registry from config.Settings.

# Observability

Logging uses log/slog; WithMetrics and WithTracing enable OpenTelemetry
instruments and spans; WithJournal records every round's outcome.
*/
package remusbuf
