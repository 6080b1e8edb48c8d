package mmio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// PhysicalMapping is a Region backed by an mmap of /dev/mem, the hosted
// Linux equivalent of tamago's bare-metal physical addressing (GOOS=tamago
// register windows are just slices over a fixed physical base). Close
// unmaps the window.
type PhysicalMapping struct {
	*Region
	raw []byte
}

// MapPhysical opens /dev/mem and maps size bytes starting at the given
// physical address (already translated from bus to CPU address space by
// the caller via the devicetree's "ranges" translation).
func MapPhysical(physAddr uint64, size int) (*PhysicalMapping, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmio: open /dev/mem: %w", err)
	}
	defer f.Close()

	pageSize := int64(unix.Getpagesize())
	pageOff := int64(physAddr) % pageSize
	mapBase := int64(physAddr) - pageOff
	mapLen := int(pageOff) + size

	raw, err := unix.Mmap(int(f.Fd()), mapBase, mapLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmio: mmap %#x (%d bytes): %w", physAddr, mapLen, err)
	}

	return &PhysicalMapping{
		Region: NewRegion(raw[pageOff : int(pageOff)+size]),
		raw:    raw,
	}, nil
}

// Close unmaps the underlying page range.
func (p *PhysicalMapping) Close() error {
	return unix.Munmap(p.raw)
}
