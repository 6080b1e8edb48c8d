package driver

import (
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/rondoval/emu68-genet-driver/internal/logging"
	"github.com/rondoval/emu68-genet-driver/soc/bcm2711/genet"
)

// State is the Unit's lifecycle state.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateOnline
	StateOffline
)

// MAC is the hardware interface the Unit depends on, satisfied by
// *genet.MAC; tests substitute a fake implementing the same methods.
type MAC interface {
	Probe() error
	SetMAC(mac net.HardwareAddr) error
	Start(mac net.HardwareAddr, linkTimeout time.Duration) error
	Stop(onReclaim func(owner any))
	Running() bool
	Link() bool
	PollLink() (changed bool, up bool, err error)
	Push(f genet.TxFrame, onComplete func(owner any)) error
	Reclaim(onComplete func(owner any))
	Recv() ([]byte, error)
	FreePkt()
	ProgramRxMode(forcePromiscuous bool, multicast [][6]byte) error
	FreeTxDescriptors() int
	StationAddress() net.HardwareAddr
	StatsSnapshot() genet.Stats
	InternalSnapshot() genet.InternalStats
	CountReceived(bytes int)
	CountOrphan()
	CountTxDropped()
}

// Options carries the tunables read from the preferences file
// into the Unit.
type Options struct {
	PollDelayUS          []int
	TxPendingFastTicks   int
	TxReclaimSoftUS      int
	RxPollBurst          int
	RxPollBurstIdleBreak int
	UseDMA               bool
	UseMiamiWorkaround   bool
	LinkTimeout          time.Duration
	StatsInterval        time.Duration
}

// DefaultOptions returns the compile-time defaults that malformed or
// absent preference values fall back to.
func DefaultOptions() Options {
	return Options{
		PollDelayUS:          []int{500, 1000, 2000, 5000, 10000},
		TxPendingFastTicks:   50,
		TxReclaimSoftUS:      2000,
		RxPollBurst:          16,
		RxPollBurstIdleBreak: 2,
		UseDMA:               true,
		UseMiamiWorkaround:   false,
		LinkTimeout:          4 * time.Second,
		StatsInterval:        5 * time.Second,
	}
}

// Unit is the MAC instance.
type Unit struct {
	Number int
	opts   Options

	mu sync.Mutex

	// txLock is the TX ring's own lock for the per-request try-lock entry
	// point; the actual ring bookkeeping is serialized again,
	// independently, inside MAC.Push/Reclaim.
	txLock sync.Mutex

	state State
	mac   net.HardwareAddr

	hw MAC

	openers    []*Opener
	mset       multicastSet
	promForced bool // true if any opener carries the PROM flag

	startTime time.Time

	mailbox chan func()
	cancel  chan struct{}
	done    chan struct{}

	logger *logging.Logger
}

// NewUnit constructs a Unit bound to hw, in state UNCONFIGURED.
func NewUnit(number int, hw MAC, opts Options) *Unit {
	return &Unit{
		Number:  number,
		opts:    opts,
		state:   StateUnconfigured,
		hw:      hw,
		mailbox: make(chan func(), 256),
		logger:  logging.Default(),
	}
}

// State returns the Unit's current lifecycle state.
func (u *Unit) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// linkOpener appends opener to the unit's opener list under the unit mutex,
// honoring the exclusivity flag.
func (u *Unit) linkOpener(o *Opener) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.openers) > 0 && (o.exclusive || u.openers[0].exclusive) {
		return NewError("OPEN", ErrOpenFailure, WireErrorExclusivity)
	}
	u.openers = append(u.openers, o)
	return nil
}

// unlinkOpener removes opener from the unit's opener list.
func (u *Unit) unlinkOpener(o *Opener) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i, other := range u.openers {
		if other == o {
			u.openers = append(u.openers[:i], u.openers[i+1:]...)
			return
		}
	}
}

// configureInterface adopts srcMAC as the current address (if still
// UNCONFIGURED) and probes the MAC. Used by session entry points outside of Dispatch.
func (u *Unit) configureInterface(srcMAC net.HardwareAddr) (net.HardwareAddr, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	mac, err := u.configureInterfaceLocked(srcMAC)
	if err != nil {
		return nil, WrapError("CONFIG-INTERFACE", ErrSoftware, WireErrorNone, err)
	}
	return mac, nil
}

// online brings the MAC up. Idempotent:
// ONLINE while already ONLINE has no effect.
func (u *Unit) online() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.onlineLocked(); err != nil {
		return WrapError("ONLINE", ErrSoftware, WireErrorNone, err)
	}
	return nil
}

// offline stops the MAC. Idempotent.
func (u *Unit) offline() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.offlineLocked()
}

// now is the Unit's clock, a seam so tests can control start-time capture
// without sleeping; production always uses time.Now.
func (u *Unit) now() time.Time { return time.Now() }

// reprogramRxModeLocked recomputes the promiscuous-vs-MDF decision and reprograms
// the hardware filter. Must be called with u.mu held.
func (u *Unit) reprogramRxModeLocked() error {
	if u.state != StateOnline {
		return nil
	}
	return u.hw.ProgramRxMode(u.promForced, u.mset.Addresses())
}

// reportLocked fans triggered events out to every opener's event queue.
// Must be called with u.mu held; the per-opener drain itself takes the
// opener's own lock.
func (u *Unit) reportLocked(triggered Event) {
	for _, o := range u.openers {
		o.drainEvents(triggered)
	}
}

// deliver runs the fan-out decision tree for one received frame. Called by
// the unit task under the unit mutex.
func (u *Unit) deliver(frame []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(frame) < 14 {
		return
	}

	if !u.mdfProgrammed() {
		dst := frame[0:6]
		if !isBroadcast(dst) && !u.unicastMatch(dst) {
			if isMulticast(dst) && !u.mset.Contains(macBytesToUint64(dst)) {
				return
			}
		}
	}

	u.hw.CountReceived(len(frame))

	ethType := binary.BigEndian.Uint16(frame[12:14])

	delivered := false
	if ethType == 0x0800 || ethType == 0x0806 {
		for _, o := range u.openers {
			if r := o.popTyped(ethType); r != nil {
				u.copyPacket(r, frame, ethType)
				delivered = true
			} else {
				// No typed READ pending on this opener: the opener is
				// skipped and no counter is incremented (the MAC's
				// InternalStats.RxArpIPDropped is not updated by this path).
				_ = o
			}
		}
	} else {
		for _, o := range u.openers {
			if r := o.popDefaultMatching(ethType); r != nil {
				u.copyPacket(r, frame, ethType)
				delivered = true
			}
		}
	}

	if !delivered {
		u.hw.CountOrphan()
		for _, o := range u.openers {
			if r := o.popOrphan(); r != nil {
				u.copyPacket(r, frame, ethType)
			}
		}
	}
}

// mdfProgrammed reports whether the hardware filter (rather than the
// software fallback) is currently active.
func (u *Unit) mdfProgrammed() bool {
	return !u.promForced && 2+int(u.mset.Total()) <= genet.MDFCapacity
}

func (u *Unit) unicastMatch(dst []byte) bool {
	return u.mac != nil && net.HardwareAddr(dst).String() == u.mac.String()
}

func isBroadcast(dst []byte) bool {
	for _, b := range dst {
		if b != 0xff {
			return false
		}
	}
	return true
}

func isMulticast(dst []byte) bool {
	return dst[0]&0x01 != 0
}

func macBytesToUint64(mac []byte) uint64 {
	var buf [8]byte
	copy(buf[2:8], mac)
	return binary.BigEndian.Uint64(buf[:])
}

// copyPacket fills r's destination/source/type fields, sets BCAST/MCAST,
// optionally strips the Ethernet header, invokes the opener's filter hook
// and copy callback, and replies the request.
func (u *Unit) copyPacket(r *Request, frame []byte, ethType uint16) {
	r.Dst = append(net.HardwareAddr(nil), frame[0:6]...)
	r.Src = append(net.HardwareAddr(nil), frame[6:12]...)
	r.PktType = ethType
	if isBroadcast(frame[0:6]) {
		r.Flags |= FlagBCast
	} else if isMulticast(frame[0:6]) {
		r.Flags |= FlagMCast
	}

	payload := frame
	if !r.IsRaw() {
		payload = frame[14:]
	}

	caps := r.Opener.caps
	accept := true
	if caps.Filter != nil {
		accept = caps.Filter(payload)
	}

	if !accept {
		r.Reply(ErrAborted, WireErrorNone)
		return
	}

	dst := append([]byte(nil), payload...)
	ok := true
	if caps.CopyTo != nil {
		ok = caps.CopyTo(dst)
	}

	if !ok {
		r.Reply(ErrNoResources, WireErrorBuffError)
		u.reportLocked(EventBuff | EventRX | EventSoftware | EventError)
		return
	}

	r.Data = dst
	r.Length = len(payload)
	r.Reply("", WireErrorNone)
}
