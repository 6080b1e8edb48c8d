package genet

// ErrRxEmpty is returned by Recv when the hardware producer index equals
// the software consumer index, i.e. there is nothing to drain, matching
// the original driver's EAGAIN.
type ErrRxEmpty struct{}

func (ErrRxEmpty) Error() string { return "genet: no frame available" }

// Recv drains a single frame from the RX ring. If the producer/consumer
// distance exceeds RingSize-1, the frame is considered lost to a hardware
// wrap and Overruns is incremented instead of returning data.
func (m *MAC) Recv() ([]byte, error) {
	hwProd := uint16(m.reg.Read(rdmaOff + queue16RegOffset + dmaProdIndex))

	if hwProd == m.rx.consIndex {
		return nil, ErrRxEmpty{}
	}

	distance := (hwProd - m.rx.consIndex) & 0xffff
	if int(distance) > RingSize-1 {
		m.Stats.Overruns++
		m.Internal.RxOverruns++
		// still advance: the hardware has already overwritten this slot's
		// descriptor, there is nothing meaningful to read back.
		m.ackRx()
		return nil, ErrRxEmpty{}
	}

	idx := int(m.rx.consIndex) & ringMask
	s := m.rx.slots[idx]
	d := m.rx.descAt(idx)

	length := d.length
	if length > BufferSize {
		length = BufferSize
	}

	buf := make([]byte, length)
	if s.zeroCopy != nil {
		copy(buf, s.zeroCopy)
	} else {
		copy(buf, s.bounce[:length])
	}

	return buf, nil
}

// CountReceived tallies one accepted received frame against the public and
// internal RX counters, called by the driver's opener fan-out once a frame
// has passed the software multicast filter.
func (m *MAC) CountReceived(n int) {
	m.Stats.PacketsReceived++
	m.Stats.BytesReceived += uint64(n)
	m.Internal.RxPackets++
	m.Internal.RxBytes += uint64(n)
}

// CountOrphan tallies one received frame that no opener's typed, default,
// or orphan queue accepted.
func (m *MAC) CountOrphan() {
	m.Stats.UnknownTypes++
}

// FreePkt advances the software consumer index and writes it to hardware,
// handing the descriptor back to the producer. This is the sole acknowledgement to hardware.
func (m *MAC) FreePkt() {
	m.ackRx()
}

func (m *MAC) ackRx() {
	wrapped := int(m.rx.consIndex)&ringMask == RingSize-1
	m.rx.consIndex++
	if wrapped {
		m.rx.readPtr = 0
	} else {
		m.rx.readPtr++
	}
	m.reg.Write(rdmaOff+queue16RegOffset+dmaReadPtr, uint32(m.rx.readPtr))
}
