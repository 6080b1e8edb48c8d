package genet

import "fmt"

// MDFCapacity is the hardware's multicast destination filter table size:
// up to 17 address slots.
const MDFCapacity = 17

// ErrFilterOverflow is a diagnostic, non-fatal condition: it is never
// returned as an error; on overflow ProgramRxMode sets the UMAC_CMD
// promiscuous bit instead. Kept for documentation of the MDFCapacity
// threshold.
var ErrFilterOverflow = fmt.Errorf("genet: multicast filter table exhausted, falling back to promiscuous mode")

// ProgramRxMode programs the UMAC_CMD promiscuous bit and the MDF address
// table: the broadcast address first, then the station address when m.MAC
// is set, followed by each multicast address. If
// forcePromiscuous is set, or the slot count (2 + len(multicast)) exceeds
// MDFCapacity, the MAC is switched to promiscuous mode and MDF is disabled.
func (m *MAC) ProgramRxMode(forcePromiscuous bool, multicast [][6]byte) error {
	needed := 2 + len(multicast)

	if forcePromiscuous || needed > MDFCapacity {
		m.reg.Set(umacCmd, cmdPromiscPos)
		m.disableAllMDFSlots()
		return nil
	}

	m.reg.Clear(umacCmd, cmdPromiscPos)

	slot := 0
	m.writeMDFSlot(slot, broadcastAddr())
	slot++

	if m.MAC != nil {
		var self [6]byte
		copy(self[:], m.MAC)
		m.writeMDFSlot(slot, self)
		slot++
	}

	for _, addr := range multicast {
		m.writeMDFSlot(slot, addr)
		slot++
	}

	for i := slot; i < MDFCapacity; i++ {
		m.disableMDFSlot(i)
	}

	m.enableMDFSlots(slot)
	return nil
}

func broadcastAddr() [6]byte {
	return [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

// mdfSlotStride is the byte distance between consecutive MDF address slots
// (each slot is two 32-bit words: the high 16 bits of the address, then
// the low 32 bits).
const mdfSlotStride = 8

func (m *MAC) writeMDFSlot(slot int, addr [6]byte) {
	off := uint32(umacMdfAddr + slot*mdfSlotStride)
	hi := uint32(addr[0])<<8 | uint32(addr[1])
	lo := uint32(addr[2])<<24 | uint32(addr[3])<<16 | uint32(addr[4])<<8 | uint32(addr[5])
	m.reg.Write(off, hi)
	m.reg.Write(off+4, lo)
}

func (m *MAC) disableMDFSlot(slot int) {
	m.reg.Clear(umacMdfCtrl, slot)
}

func (m *MAC) enableMDFSlots(n int) {
	for i := 0; i < n; i++ {
		m.reg.Set(umacMdfCtrl, i)
	}
}

func (m *MAC) disableAllMDFSlots() {
	for i := 0; i < MDFCapacity; i++ {
		m.disableMDFSlot(i)
	}
}
