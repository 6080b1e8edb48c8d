package driver

import (
	"encoding/binary"
	"net"
)

// MulticastRange is a [Lower, Upper] inclusive 48-bit address interval with a
// use-count.
type MulticastRange struct {
	Lower, Upper uint64 // 48-bit values, stored right-justified in a uint64
	useCount     int
}

// Width returns the number of addresses the range covers.
func (r MulticastRange) Width() uint64 { return r.Upper - r.Lower + 1 }

// multicastSet owns the ordered list of ranges for one Unit: add/delete by
// exact match only, with a running total used by the promiscuous-vs-MDF
// decision.
type multicastSet struct {
	ranges []*MulticastRange
	total  uint64
}

// Add locates an exactly-matching range and increments its use-count, or
// allocates and links a new one.
func (s *multicastSet) Add(lower, upper uint64) {
	for _, r := range s.ranges {
		if r.Lower == lower && r.Upper == upper {
			r.useCount++
			return
		}
	}
	r := &MulticastRange{Lower: lower, Upper: upper, useCount: 1}
	s.ranges = append(s.ranges, r)
	s.total += r.Width()
}

// Delete finds the exactly-matching range and decrements it, unlinking and
// freeing it at zero use-count. Only exact matches are affected; a
// non-matching delete is a silent no-op.
func (s *multicastSet) Delete(lower, upper uint64) {
	for i, r := range s.ranges {
		if r.Lower == lower && r.Upper == upper {
			r.useCount--
			if r.useCount <= 0 {
				s.total -= r.Width()
				s.ranges = append(s.ranges[:i], s.ranges[i+1:]...)
			}
			return
		}
	}
}

// Total returns the sum of interval widths across all registered ranges,
// the cardinality the promiscuous-vs-MDF decision uses.
func (s *multicastSet) Total() uint64 { return s.total }

// Contains reports whether addr falls within any registered range, used by
// the software multicast filter when MDF is not programmed.
func (s *multicastSet) Contains(addr uint64) bool {
	for _, r := range s.ranges {
		if addr >= r.Lower && addr <= r.Upper {
			return true
		}
	}
	return false
}

// Addresses enumerates every concrete address across all registered ranges,
// in range-registration order, for programming into the MDF table. Ranges
// wider than a single address enumerate every address they cover.
func (s *multicastSet) Addresses() [][6]byte {
	var out [][6]byte
	for _, r := range s.ranges {
		for a := r.Lower; a <= r.Upper; a++ {
			out = append(out, uint64ToMAC(a))
			if a == r.Upper {
				break // guards against overflow when Upper == ^uint64(0) is never hit (48-bit space)
			}
		}
	}
	return out
}

func uint64ToMAC(v uint64) [6]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	var mac [6]byte
	copy(mac[:], buf[2:8])
	return mac
}

func macToUint64(mac net.HardwareAddr) uint64 {
	var buf [8]byte
	copy(buf[2:8], mac)
	return binary.BigEndian.Uint64(buf[:])
}
