package driver

// Submit is the per-request entry point: it attempts to
// take the TX ring lock (WRITE/BROADCAST/MULTICAST) or the opener's lock
// (READ), servicing inline on success; on contention it posts the request
// to the unit task's mailbox and returns immediately. All other commands
// go to the mailbox unconditionally unless the caller set QUICK and the
// command is cheap enough to run synchronously from the caller's own
// goroutine (device-query, get-station-address, get-global-stats).
func (u *Unit) Submit(r *Request) {
	switch r.Command {
	case CmdWrite, CmdBroadcast, CmdMulticast:
		if u.txLock.TryLock() {
			defer u.txLock.Unlock()
			u.Dispatch(r)
			return
		}
		u.postMailbox(func() { u.Submit(r) })
		return

	case CmdRead, CmdReadOrphan:
		if r.Opener.mu.TryLock() {
			r.Opener.mu.Unlock()
			u.Dispatch(r)
			return
		}
		u.postMailbox(func() { u.Submit(r) })
		return

	case CmdDeviceQuery, CmdDeviceQueryV2, CmdGetStationAddress, CmdGetGlobalStats:
		if r.IsQuick() {
			u.Dispatch(r)
			return
		}
		u.postMailbox(func() { u.Dispatch(r) })
		return

	default:
		u.postMailbox(func() { u.Dispatch(r) })
	}
}

// Abort is a best-effort request cancellation: under the coarse unit
// lock, if r is still a pending message (not yet handed to the TX ring),
// unlink it and reply ABORTED; otherwise silently succeed.
func (u *Unit) Abort(r *Request) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if r.scheduled || r.pending == nil {
		return
	}

	o := r.Opener
	o.mu.Lock()
	switch r.pending.kind {
	case queueDefault:
		o.defaultQueue = removeRequest(o.defaultQueue, r)
	case queueTyped:
		o.typedQueues[r.pending.ethType] = removeRequest(o.typedQueues[r.pending.ethType], r)
	case queueOrphan:
		o.orphanQueue = removeRequest(o.orphanQueue, r)
	case queueEvent:
		o.eventQueue = removeRequest(o.eventQueue, r)
	}
	o.mu.Unlock()

	r.Reply(ErrAborted, WireErrorNone)
}

func removeRequest(q []*Request, target *Request) []*Request {
	for i, r := range q {
		if r == target {
			return append(q[:i], q[i+1:]...)
		}
	}
	return q
}
