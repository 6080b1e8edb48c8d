package genet

import (
	"encoding/binary"
	"sync"
)

// RingSize is the fixed depth of both TX and RX rings: 256 descriptor
// slots.
const RingSize = 256

// BufferSize is the size of each ring slot's bounce buffer: 2048 bytes for
// both the RX and TX rings.
const BufferSize = 2048

// descriptor is one in-memory buffer descriptor: length, status, and the
// DMA address of its data buffer, generalized from tamago's
// soc/nxp/enet/dma.go bufferDescriptor.
type descriptor struct {
	length uint16
	status uint16
	addr   uint32
}

const (
	descStatusOwn     = 1 << 15 // hardware owns the descriptor (RX: empty; TX: ready)
	descStatusWrap    = 1 << 13
	descStatusLast    = 1 << 11
	descStatusErrMask = 0x3e // CRC/length/overrun/truncation bits, bits 1-5
)

func (d descriptor) bytes() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf[0:2], d.length)
	binary.LittleEndian.PutUint16(buf[2:4], d.status)
	binary.LittleEndian.PutUint32(buf[4:8], d.addr)
	return buf
}

func decodeDescriptor(buf []byte) descriptor {
	return descriptor{
		length: binary.LittleEndian.Uint16(buf[0:2]),
		status: binary.LittleEndian.Uint16(buf[2:4]),
		addr:   binary.LittleEndian.Uint32(buf[4:8]),
	}
}

// slot is one control-block entry backing a descriptor: its bounce buffer,
// an optional zero-copy data pointer, and (TX only) the owning request.
type slot struct {
	desc     []byte // 8-byte little-endian encoded descriptor window
	bounce   []byte // BufferSize bytes, reused across transmissions/receptions
	zeroCopy []byte // set instead of bounce when a DMA cookie callback supplied one

	// owner is the originating request for a TX slot, or nil for a
	// synthesized-header slot with no owning request.
	owner any

	// frameBytes is the total on-wire frame length (header + payload) this
	// slot's owner submitted, tallied into Stats on reclaim; meaningless
	// when owner is nil.
	frameBytes int
}

// ring is the producer/consumer bookkeeping shared by TX and RX rings,
// generalized from tamago's bufferDescriptorRing (soc/nxp/enet/dma.go).
type ring struct {
	mu sync.Mutex

	slots [RingSize]*slot

	// 16-bit software indices (wrap modulo 2^16, masked to RingSize-1 when
	// indexing slots).
	prodIndex uint16
	consIndex uint16

	// 8-bit hardware-visible ring pointers (what's written to the
	// DMA_WRITE_PTR/DMA_READ_PTR registers).
	writePtr uint8
	readPtr  uint8

	freeBDs int
}

func newRing() *ring {
	r := &ring{freeBDs: RingSize}
	for i := range r.slots {
		r.slots[i] = &slot{
			desc:   descriptor{status: descStatusOwn}.bytes(),
			bounce: make([]byte, BufferSize),
		}
	}
	return r
}

func (r *ring) descAt(i int) descriptor {
	return decodeDescriptor(r.slots[i].desc)
}

func (r *ring) setDescAt(i int, d descriptor) {
	copy(r.slots[i].desc, d.bytes())
}

const ringMask = RingSize - 1
