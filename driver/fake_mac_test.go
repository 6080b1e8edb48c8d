package driver

import (
	"net"
	"time"

	"github.com/rondoval/emu68-genet-driver/soc/bcm2711/genet"
)

// fakeMAC is a minimal in-memory double for genet.MAC, satisfying the MAC
// interface so driver package tests exercise opener fan-out, multicast
// programming, and the command dispatcher without real hardware.
type fakeMAC struct {
	station net.HardwareAddr
	running bool
	link    bool

	probeErr error
	startErr error
	pushErr  error

	programmedPromiscuous bool
	programmedMulticast   [][6]byte

	pushed []genet.TxFrame

	rxQueue []string
	rxErr   error

	pollLinkChanged bool

	freeDescriptors int
	reclaimFreed    int

	stats    genet.Stats
	internal genet.InternalStats
}

func newFakeMAC() *fakeMAC {
	return &fakeMAC{freeDescriptors: genet.RingSize, rxErr: genet.ErrRxEmpty{}}
}

func (f *fakeMAC) Probe() error { return f.probeErr }

func (f *fakeMAC) SetMAC(mac net.HardwareAddr) error {
	f.station = append(net.HardwareAddr(nil), mac...)
	return nil
}

func (f *fakeMAC) Start(mac net.HardwareAddr, linkTimeout time.Duration) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.station = append(net.HardwareAddr(nil), mac...)
	f.running = true
	f.link = true
	return nil
}

func (f *fakeMAC) Stop(onReclaim func(owner any)) {
	f.running = false
	for _, frame := range f.pushed {
		if frame.Owner != nil {
			onReclaim(frame.Owner)
		}
	}
	f.pushed = nil
}

func (f *fakeMAC) Running() bool { return f.running }
func (f *fakeMAC) Link() bool    { return f.link }

func (f *fakeMAC) PollLink() (bool, bool, error) {
	changed := f.pollLinkChanged
	f.pollLinkChanged = false
	return changed, f.link, nil
}

func (f *fakeMAC) Push(frame genet.TxFrame, onComplete func(owner any)) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushed = append(f.pushed, frame)
	if onComplete != nil && frame.Owner != nil {
		onComplete(frame.Owner)
	}
	return nil
}

func (f *fakeMAC) Reclaim(onComplete func(owner any)) {
	if f.reclaimFreed != 0 {
		f.freeDescriptors += f.reclaimFreed
		f.reclaimFreed = 0
	}
}

func (f *fakeMAC) Recv() ([]byte, error) {
	if len(f.rxQueue) == 0 {
		return nil, f.rxErr
	}
	frame := f.rxQueue[0]
	f.rxQueue = f.rxQueue[1:]
	return []byte(frame), nil
}

func (f *fakeMAC) FreePkt() {}

func (f *fakeMAC) ProgramRxMode(forcePromiscuous bool, multicast [][6]byte) error {
	f.programmedPromiscuous = forcePromiscuous
	f.programmedMulticast = multicast
	return nil
}

func (f *fakeMAC) FreeTxDescriptors() int { return f.freeDescriptors }

func (f *fakeMAC) StationAddress() net.HardwareAddr { return f.station }

func (f *fakeMAC) StatsSnapshot() genet.Stats { return f.stats }

func (f *fakeMAC) InternalSnapshot() genet.InternalStats { return f.internal }

func (f *fakeMAC) CountReceived(n int) {
	f.stats.PacketsReceived++
	f.stats.BytesReceived += uint64(n)
	f.internal.RxPackets++
	f.internal.RxBytes += uint64(n)
}

func (f *fakeMAC) CountOrphan() {
	f.stats.UnknownTypes++
}

func (f *fakeMAC) CountTxDropped() {
	f.internal.TxDropped++
}
