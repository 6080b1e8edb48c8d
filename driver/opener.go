package driver

import (
	"sync"

	"github.com/rs/xid"
)

// FilterFunc is an opener's optional packet filter hook, invoked before
// delivery; only on accept is the copy callback invoked.
type FilterFunc func(frame []byte) bool

// CopyToFunc copies a received frame's payload, passed as its argument,
// into the opener-owned destination buffer identified by an opaque cookie
// (the RX path). Returns false on failure.
type CopyToFunc func(dst []byte) bool

// CopyFromFunc fills dst with up to len(dst) bytes from the opener-owned
// source buffer identified by an opaque cookie (the TX path). Returns false
// on failure.
type CopyFromFunc func(dst []byte) bool

// DMACookieFunc resolves an opaque buffer handle to a DMA-capable address,
// the optional zero-copy path.
type DMACookieFunc func() []byte

// Capabilities is the capability record an opener registers: up to four
// optional operations (copy-to, copy-from, dma-to, dma-from) plus a filter
// closure. Absent operations are null and the engine picks the next-best
// path.
type Capabilities struct {
	Filter   FilterFunc
	CopyTo   CopyToFunc
	CopyFrom CopyFromFunc
	DMATo    DMACookieFunc
	DMAFrom  DMACookieFunc
}

// Opener is one client session.
type Opener struct {
	id xid.ID

	mu sync.Mutex

	caps Capabilities

	exclusive bool

	defaultQueue []*Request
	typedQueues  map[uint16][]*Request
	orphanQueue  []*Request
	eventQueue   []*Request
}

// NewOpener constructs an Opener with empty queues.
func NewOpener(caps Capabilities, exclusive bool) *Opener {
	return &Opener{
		id:          xid.New(),
		caps:        caps,
		exclusive:   exclusive,
		typedQueues: make(map[uint16][]*Request),
	}
}

// ID returns the opener's opaque session identifier, for logging/debugging
// correlation.
func (o *Opener) ID() string { return o.id.String() }

// enqueueDefault appends to the default read queue.
func (o *Opener) enqueueDefault(r *Request) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r.pending = &pendingQueue{kind: queueDefault}
	o.defaultQueue = append(o.defaultQueue, r)
}

// enqueueTyped appends to the fast-path queue for the given Ethernet type.
func (o *Opener) enqueueTyped(ethType uint16, r *Request) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r.pending = &pendingQueue{kind: queueTyped, ethType: ethType}
	o.typedQueues[ethType] = append(o.typedQueues[ethType], r)
}

// enqueueOrphan appends to the orphan read queue.
func (o *Opener) enqueueOrphan(r *Request) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r.pending = &pendingQueue{kind: queueOrphan}
	o.orphanQueue = append(o.orphanQueue, r)
}

// enqueueEvent appends to the event queue.
func (o *Opener) enqueueEvent(r *Request) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r.pending = &pendingQueue{kind: queueEvent}
	o.eventQueue = append(o.eventQueue, r)
}

// popTyped removes and returns the head of the typed queue for ethType, if
// any.
func (o *Opener) popTyped(ethType uint16) *Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	q := o.typedQueues[ethType]
	if len(q) == 0 {
		return nil
	}
	r := q[0]
	o.typedQueues[ethType] = q[1:]
	return r
}

// popDefaultMatching removes and returns the first request in the default
// queue whose PktType matches ethType, or (if ethType ≤ 1500, an 802.3
// length field) any request whose own type is also ≤ 1500.
func (o *Opener) popDefaultMatching(ethType uint16) *Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, r := range o.defaultQueue {
		match := r.PktType == ethType
		if !match && ethType <= 1500 && r.PktType <= 1500 {
			match = true
		}
		if match {
			o.defaultQueue = append(o.defaultQueue[:i], o.defaultQueue[i+1:]...)
			return r
		}
	}
	return nil
}

// popOrphan removes and returns the head of the orphan queue, if any.
func (o *Opener) popOrphan() *Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.orphanQueue) == 0 {
		return nil
	}
	r := o.orphanQueue[0]
	o.orphanQueue = o.orphanQueue[1:]
	return r
}

// drainEvents walks the event queue under the opener lock, replying any
// request whose recorded mask intersects triggered, removing it from the
// queue.
func (o *Opener) drainEvents(triggered Event) {
	o.mu.Lock()
	remaining := o.eventQueue[:0]
	var toReply []*Request
	for _, r := range o.eventQueue {
		if r.EventMask&triggered != 0 {
			r.EventMask &= triggered
			toReply = append(toReply, r)
			continue
		}
		remaining = append(remaining, r)
	}
	o.eventQueue = remaining
	o.mu.Unlock()

	for _, r := range toReply {
		r.Reply(ErrorCode(""), WireErrorNone)
	}
}

// flush drains every queue, replying each pending request with Aborted.
func (o *Opener) flush() {
	o.mu.Lock()
	all := make([]*Request, 0, len(o.defaultQueue)+len(o.orphanQueue)+len(o.eventQueue))
	all = append(all, o.defaultQueue...)
	all = append(all, o.orphanQueue...)
	all = append(all, o.eventQueue...)
	for _, q := range o.typedQueues {
		all = append(all, q...)
	}
	o.defaultQueue = nil
	o.orphanQueue = nil
	o.eventQueue = nil
	o.typedQueues = make(map[uint16][]*Request)
	o.mu.Unlock()

	for _, r := range all {
		r.Reply(ErrAborted, WireErrorNone)
	}
}

// pendingCount reports how many requests remain queued across all of the
// opener's queues.
func (o *Opener) pendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.defaultQueue) + len(o.orphanQueue) + len(o.eventQueue)
	for _, q := range o.typedQueues {
		n += len(q)
	}
	return n
}
