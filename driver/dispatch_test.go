package driver

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rondoval/emu68-genet-driver/soc/bcm2711/genet"
)

func newTestUnit(hw MAC) *Unit {
	return NewUnit(0, hw, DefaultOptions())
}

func waitReplied(t *testing.T, r *Request) {
	t.Helper()
	select {
	case <-r.Done():
	default:
		t.Fatal("expected request to be replied synchronously")
	}
}

func TestConfigInterfaceThenOnline(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)

	cfg := NewRequest(CmdConfigInterface, 0, o)
	cfg.Src = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	u.Dispatch(cfg)
	waitReplied(t, cfg)
	require.Equal(t, ErrorCode(""), cfg.Err)
	assert.Equal(t, StateConfigured, u.State())

	online := NewRequest(CmdOnline, 0, o)
	u.Dispatch(online)
	waitReplied(t, online)
	require.Equal(t, ErrorCode(""), online.Err)
	assert.Equal(t, StateOnline, u.State())
	assert.True(t, hw.running)
}

func TestOnlineIsIdempotent(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)

	cfg := NewRequest(CmdConfigInterface, 0, o)
	cfg.Src = net.HardwareAddr{0x02, 0, 0, 0, 0, 1}
	u.Dispatch(cfg)
	waitReplied(t, cfg)

	for i := 0; i < 2; i++ {
		online := NewRequest(CmdOnline, 0, o)
		u.Dispatch(online)
		waitReplied(t, online)
		require.Equal(t, ErrorCode(""), online.Err)
	}
	assert.Equal(t, StateOnline, u.State())
}

func TestWriteFailsWhenOffline(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)

	w := NewRequest(CmdWrite, 0, o)
	w.Dst = net.HardwareAddr{1, 2, 3, 4, 5, 6}
	w.Data = []byte("hello")
	u.Dispatch(w)
	waitReplied(t, w)

	assert.Equal(t, ErrOutOfService, w.Err)
	assert.Equal(t, WireErrorUnitOffline, w.WireError)
}

func bringOnline(t *testing.T, u *Unit, o *Opener, hw *fakeMAC) {
	t.Helper()
	cfg := NewRequest(CmdConfigInterface, 0, o)
	cfg.Src = net.HardwareAddr{0x02, 0, 0, 0, 0, 1}
	u.Dispatch(cfg)
	waitReplied(t, cfg)

	online := NewRequest(CmdOnline, 0, o)
	u.Dispatch(online)
	waitReplied(t, online)
}

func TestWriteSucceedsAndMarksScheduled(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)
	bringOnline(t, u, o, hw)

	w := NewRequest(CmdWrite, 0, o)
	w.Dst = net.HardwareAddr{1, 2, 3, 4, 5, 6}
	w.PktType = 0x0800
	w.Data = []byte("payload")
	u.Dispatch(w)
	waitReplied(t, w)

	require.Equal(t, ErrorCode(""), w.Err)
	require.Len(t, hw.pushed, 1)
	assert.Equal(t, w.Data, hw.pushed[0].Payload)
	assert.True(t, w.scheduled)
}

func TestWriteEmptyPayloadFailsWithBuffError(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)
	bringOnline(t, u, o, hw)

	w := NewRequest(CmdWrite, 0, o)
	w.Dst = net.HardwareAddr{1, 2, 3, 4, 5, 6}
	u.Dispatch(w)
	waitReplied(t, w)

	assert.Equal(t, ErrNoResources, w.Err)
	assert.Equal(t, WireErrorBuffError, w.WireError)
	assert.Equal(t, uint32(1), hw.internal.TxDropped)
}

func TestBroadcastForcesDstAddress(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)
	bringOnline(t, u, o, hw)

	w := NewRequest(CmdBroadcast, 0, o)
	w.Data = []byte("x")
	u.Dispatch(w)
	waitReplied(t, w)

	require.Len(t, hw.pushed, 1)
	assert.Equal(t, broadcastAddr, hw.pushed[0].Dst)
}

func TestReadEnqueuesOnOnlineUnit(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)
	bringOnline(t, u, o, hw)

	r := NewRequest(CmdRead, 0, o)
	r.PktType = 0x0800
	u.Dispatch(r)

	select {
	case <-r.Done():
		t.Fatal("read request should remain pending until a frame arrives")
	default:
	}
	assert.Equal(t, 1, o.pendingCount())
}

func TestGetStationAddress(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)
	bringOnline(t, u, o, hw)

	r := NewRequest(CmdGetStationAddress, 0, o)
	u.Dispatch(r)
	waitReplied(t, r)

	assert.Equal(t, hw.station, r.Dst)
}

func TestDeviceQueryPopulatesResult(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)
	bringOnline(t, u, o, hw)

	r := NewRequest(CmdDeviceQuery, 0, o)
	u.Dispatch(r)
	waitReplied(t, r)

	info, ok := r.Result.(*DeviceInfo)
	require.True(t, ok)
	assert.Equal(t, DeviceTypeEthernet, info.Type)
}

func TestGetGlobalStatsPopulatesResult(t *testing.T) {
	hw := newFakeMAC()
	hw.stats.PacketsSent = 7
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)

	r := NewRequest(CmdGetGlobalStats, 0, o)
	u.Dispatch(r)
	waitReplied(t, r)

	stats, ok := r.Result.(*genet.Stats)
	require.True(t, ok)
	assert.EqualValues(t, 7, stats.PacketsSent)
}

func TestAddMulticastAddressReprogramsRxModeWhenOnline(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)
	bringOnline(t, u, o, hw)

	r := NewRequest(CmdAddMulticastAddress, 0, o)
	r.MulticastRanges = []MulticastRange{{Lower: 1, Upper: 1}}
	u.Dispatch(r)
	waitReplied(t, r)

	require.Equal(t, ErrorCode(""), r.Err)
	require.Len(t, hw.programmedMulticast, 1)
}

func TestFlushAbortsPendingReads(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)
	require.NoError(t, u.linkOpener(o))
	bringOnline(t, u, o, hw)

	pending := NewRequest(CmdRead, 0, o)
	pending.PktType = 0x0800
	u.Dispatch(pending)

	flush := NewRequest(CmdFlush, 0, o)
	u.Dispatch(flush)
	waitReplied(t, flush)

	waitReplied(t, pending)
	assert.Equal(t, ErrAborted, pending.Err)
}

func TestOnEventImmediateReplyWhenAlreadySatisfied(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)
	bringOnline(t, u, o, hw)

	r := NewRequest(CmdOnEvent, 0, o)
	r.EventMask = EventOnline
	u.Dispatch(r)
	waitReplied(t, r)
	assert.Equal(t, EventOnline, r.EventMask)
}

func TestOnEventRejectsUnsupportedBits(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)

	r := NewRequest(CmdOnEvent, 0, o)
	r.EventMask = Event(1 << 30)
	u.Dispatch(r)
	waitReplied(t, r)

	assert.Equal(t, ErrNotSupported, r.Err)
	assert.Equal(t, WireErrorBadEvent, r.WireError)
}

func TestOfflineTearsDownAndIsIdempotent(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)
	bringOnline(t, u, o, hw)

	for i := 0; i < 2; i++ {
		r := NewRequest(CmdOffline, 0, o)
		u.Dispatch(r)
		waitReplied(t, r)
	}
	assert.Equal(t, StateOffline, u.State())
	assert.False(t, hw.running)
}

func TestUnsupportedCommand(t *testing.T) {
	hw := newFakeMAC()
	u := newTestUnit(hw)
	o := NewOpener(Capabilities{}, false)

	r := NewRequest(Command(999), 0, o)
	u.Dispatch(r)
	waitReplied(t, r)

	assert.Equal(t, ErrNotSupported, r.Err)
	assert.Equal(t, WireErrorNoCommand, r.WireError)
}
