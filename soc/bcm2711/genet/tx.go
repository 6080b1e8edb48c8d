package genet

import (
	"encoding/binary"
	"errors"
	"net"
)

// ETHHLen is the Ethernet header length (dst+src+ethertype), matching
// original_source's ETH_HLEN.
const ETHHLen = 14

// TxFrame describes one frame submission to Push, matching the fields
// original_source's Request carries that are relevant to TX.
type TxFrame struct {
	Dst     net.HardwareAddr
	Src     net.HardwareAddr
	EthType uint16
	Payload []byte
	Raw     bool // RAW flag: caller's Payload already includes the Ethernet header
	Owner   any  // opaque back-reference reclaimed with the completed descriptor

	// CopyPayload fills dst with the payload bytes (the opener's
	// CopyFromBuff-style callback); used when ZeroCopy is nil.
	CopyPayload func(dst []byte) bool

	// ZeroCopy, if non-nil, returns a caller-owned buffer to reference
	// directly instead of bouncing through CopyPayload: a zero-copy cookie
	// callback that returns a non-null DMA-capable address.
	ZeroCopy func() []byte
}

// ErrTxScheduled is returned by Push when the ring cannot accept the frame
// immediately; the caller is expected to post it to the unit task's mailbox
// and retry on the next reclaim.
var ErrTxScheduled = errors.New("genet: insufficient free descriptors, scheduled for retry")

// bdsRequired returns the number of descriptors a frame submission needs:
// 2 normally (header + payload), 1 if RAW (payload already carries its own
// header).
func bdsRequired(raw bool) int {
	if raw {
		return 1
	}
	return 2
}

// Push submits a frame to the TX ring. The caller holds the TX ring lock
// (the driver package's Unit enforces this; Push itself also serializes via
// the ring's own mutex so it is safe to call concurrently with Reclaim).
// onComplete is invoked for any descriptors reclaimed by Push's own leading
// reclaim step before the new frame is considered; it may be the same
// callback passed to Reclaim elsewhere.
func (m *MAC) Push(f TxFrame, onComplete func(owner any)) error {
	m.tx.mu.Lock()
	defer m.tx.mu.Unlock()

	m.reclaimLocked(onComplete)

	need := bdsRequired(f.Raw)
	if m.tx.freeBDs <= need {
		return ErrTxScheduled
	}

	headerLen := 0
	if !f.Raw {
		m.pushHeaderLocked(f)
		headerLen = ETHHLen
	}

	m.pushPayloadLocked(f, headerLen)

	m.reg.Write(tdmaOff+queue16RegOffset+dmaWritePtr, uint32(m.tx.writePtr))
	return nil
}

func (m *MAC) pushHeaderLocked(f TxFrame) {
	idx := int(m.tx.prodIndex) & ringMask
	s := m.tx.slots[idx]
	s.owner = nil // synthesized header has no owning request

	hdr := s.bounce[:ETHHLen]
	copy(hdr[0:6], f.Dst)
	copy(hdr[6:12], f.Src)
	binary.BigEndian.PutUint16(hdr[12:14], f.EthType)

	d := descriptor{
		length: ETHHLen,
		addr:   s.desc2Addr(),
		status: descStatusOwn, // only OWN is set; no SOP or CRC-append bit is encoded
	}
	m.tx.setDescAt(idx, d)

	m.advanceTxLocked()
	m.tx.freeBDs--
}

func (m *MAC) pushPayloadLocked(f TxFrame, headerLen int) {
	idx := int(m.tx.prodIndex) & ringMask
	s := m.tx.slots[idx]
	s.owner = f.Owner

	var buf []byte
	if f.ZeroCopy != nil {
		if zc := f.ZeroCopy(); zc != nil {
			s.zeroCopy = zc
			buf = zc
		}
	}
	if buf == nil {
		s.zeroCopy = nil
		n := len(f.Payload)
		if n > len(s.bounce) {
			n = len(s.bounce)
		}
		if f.CopyPayload != nil {
			f.CopyPayload(s.bounce[:n])
		} else {
			copy(s.bounce[:n], f.Payload)
		}
		buf = s.bounce[:n]
	}

	s.frameBytes = headerLen + len(buf)

	d := descriptor{
		length: uint16(len(buf)),
		addr:   s.desc2Addr(),
		status: descStatusOwn | descStatusLast,
	}
	m.tx.setDescAt(idx, d)

	m.advanceTxLocked()

	m.tx.freeBDs--
	if f.ZeroCopy != nil && s.zeroCopy != nil {
		m.Internal.TxDMA++
	} else {
		m.Internal.TxCopy++
	}
}

// CountTxDropped tallies one WRITE rejected before it ever reached the ring
// (e.g. a zero-length payload).
func (m *MAC) CountTxDropped() {
	m.Internal.TxDropped++
}

func (m *MAC) advanceTxLocked() {
	wrapped := int(m.tx.prodIndex)&ringMask == RingSize-1
	m.tx.prodIndex++
	if wrapped {
		m.tx.writePtr = 0
	} else {
		m.tx.writePtr++
	}
}

// desc2Addr is the descriptor's addr field: the DMA address of its data
// buffer. Slots are addressed by ring index rather than physical address in
// this driver (the bounce buffer is a plain Go slice, not a separate
// DMA-mapped region), so the field is carried for on-wire layout fidelity
// only and is not dereferenced by Push/Reclaim/Recv.
func (s *slot) desc2Addr() uint32 {
	return 0
}

// Reclaim walks completed TX descriptors, invoking onComplete once per
// descriptor that carried an owning request (nil owners, i.e. synthesized
// headers, are skipped).
func (m *MAC) Reclaim(onComplete func(owner any)) {
	m.tx.mu.Lock()
	defer m.tx.mu.Unlock()
	m.reclaimLocked(onComplete)
}

func (m *MAC) reclaimLocked(onComplete func(owner any)) {
	hwCons := uint16(m.reg.Read(tdmaOff + queue16RegOffset + dmaConsIndex))
	ready := (hwCons - m.tx.consIndex) & 0xffff

	for i := uint16(0); i < ready; i++ {
		idx := int(m.tx.consIndex) & ringMask
		s := m.tx.slots[idx]

		if s.owner != nil {
			if onComplete != nil {
				onComplete(s.owner)
			}
			m.Stats.PacketsSent++
			m.Stats.BytesSent += uint64(s.frameBytes)
			m.Internal.TxPackets++
			m.Internal.TxBytes += uint64(s.frameBytes)
		}
		s.owner = nil

		m.tx.consIndex++
		m.tx.freeBDs++
	}
}

// FreeTxDescriptors returns the current free-descriptor count, exposed for
// the TX_PENDING back-off ladder to decide whether descriptors are still
// outstanding.
func (m *MAC) FreeTxDescriptors() int {
	m.tx.mu.Lock()
	defer m.tx.mu.Unlock()
	return m.tx.freeBDs
}
