package driver

import (
	"net"
	"sync"
)

// Command is the request's command code, matching the host network-device
// convention.
type Command int

const (
	CmdFlush Command = iota
	CmdRead
	CmdWrite
	CmdDeviceQuery
	CmdGetStationAddress
	CmdConfigInterface
	CmdAddMulticastAddress
	CmdDelMulticastAddress
	CmdMulticast
	CmdBroadcast
	CmdGetGlobalStats
	CmdOnEvent
	CmdReadOrphan
	CmdOnline
	CmdOffline
	CmdAddMulticastAddresses
	CmdDelMulticastAddresses
	CmdDeviceQueryV2
)

// Flags are the per-request bits recognised on the command surface.
type Flags uint32

const (
	FlagQuick Flags = 1 << iota
	FlagRaw
	FlagBCast
	FlagMCast
	FlagExclusive
	FlagProm
)

// Event is a bit in the event bitset.
type Event uint32

const (
	EventOnline Event = 1 << iota
	EventOffline
	EventTX
	EventRX
	EventBuff
	EventError
	EventHardware
	EventSoftware
)

// SupportedEvents is the full set of event bits this driver understands;
// ON-EVENT requests for any other bit fail BAD-EVENT.
const SupportedEvents = EventOnline | EventOffline | EventTX | EventRX |
	EventBuff | EventError | EventHardware | EventSoftware

// Request is the external IO object: both the unit of work and the reply
// vehicle.
type Request struct {
	Command Command
	Flags   Flags

	Dst      net.HardwareAddr
	Src      net.HardwareAddr
	PktType  uint16
	Length   int
	Data     []byte
	Opener   *Opener

	// EventMask carries the subscribed/reported mask for ON-EVENT requests.
	EventMask Event

	// MulticastRanges carries the [lower, upper] ranges for ADD/DEL-MULTICAST(-ES).
	MulticastRanges []MulticastRange

	// Result carries command-specific output that doesn't fit the Dst/Src/
	// Length/PktType fields above (e.g. *genet.Stats for GET-GLOBAL-STATS).
	Result any

	// scheduled marks the request as having left the caller's entry-point
	// stack frame, un-abortable once true; an explicit flag in place of
	// overloading a linkage-field sentinel.
	scheduled bool

	// pending records which queue (if any) currently holds this request, so
	// abort can unlink it; nil once serviced.
	pending *pendingQueue

	Err       ErrorCode
	WireError WireError

	replyOnce sync.Once
	done      chan struct{}
}

// pendingQueue identifies the queue a Request is parked on, enough for abort
// to find and unlink it without a second lookup structure.
type pendingQueue struct {
	kind queueKind
	// ethType is set only for queueKind typed.
	ethType uint16
}

type queueKind int

const (
	queueDefault queueKind = iota
	queueTyped
	queueOrphan
	queueEvent
)

// NewRequest constructs a Request ready for submission.
func NewRequest(cmd Command, flags Flags, opener *Opener) *Request {
	return &Request{
		Command: cmd,
		Flags:   flags,
		Opener:  opener,
		done:    make(chan struct{}, 1),
	}
}

// Reply marks the request serviced, recording the error/wire-error pair, and
// signals any waiter on Done. Replying an already-replied request is a
// no-op, matching the TX invariant that every request is replied exactly
// once.
func (r *Request) Reply(code ErrorCode, wire WireError) {
	r.replyOnce.Do(func() {
		r.Err = code
		r.WireError = wire
		r.pending = nil
		close(r.done)
	})
}

// Done returns a channel closed when the request has been replied.
func (r *Request) Done() <-chan struct{} { return r.done }

// IsQuick reports whether the caller requested inline completion.
func (r *Request) IsQuick() bool { return r.Flags&FlagQuick != 0 }

// IsRaw reports whether the Ethernet header should be neither added nor
// stripped.
func (r *Request) IsRaw() bool { return r.Flags&FlagRaw != 0 }
