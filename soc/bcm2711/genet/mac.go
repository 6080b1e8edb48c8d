package genet

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/rondoval/emu68-genet-driver/internal/mmio"
	"github.com/rondoval/emu68-genet-driver/soc/bcm2711/mdio"
	"github.com/rondoval/emu68-genet-driver/soc/bcm2711/phy"
)

// PHYMode mirrors the device-tree phy-mode string enumeration. Only RGMII
// variants are meaningfully supported by this MAC; other values are
// accepted (so device-tree parsing never fails on them) but Probe rejects
// them at bring-up time.
type PHYMode string

const (
	PHYModeMII       PHYMode = "mii"
	PHYModeGMII      PHYMode = "gmii"
	PHYModeSGMII     PHYMode = "sgmii"
	PHYModeTBI       PHYMode = "tbi"
	PHYModeRevMII    PHYMode = "rev-mii"
	PHYModeRMII      PHYMode = "rmii"
	PHYModeRGMII     PHYMode = "rgmii"
	PHYModeRGMIIID   PHYMode = "rgmii-id"
	PHYModeRGMIIRXID PHYMode = "rgmii-rxid"
	PHYModeRGMIITXID PHYMode = "rgmii-txid"
	PHYModeRTBI      PHYMode = "rtbi"
	PHYModeSMII      PHYMode = "smii"
	PHYModeXGMII     PHYMode = "xgmii"
)

func (m PHYMode) isRGMII() bool {
	switch m {
	case PHYModeRGMII, PHYModeRGMIIID, PHYModeRGMIIRXID, PHYModeRGMIITXID:
		return true
	}
	return false
}

// ErrUnsupportedRevision is returned by Probe when SYS_REV_CTRL reports a
// major hardware revision other than 5, 6, or 7.
type ErrUnsupportedRevision struct {
	Major uint32
}

func (e *ErrUnsupportedRevision) Error() string {
	return fmt.Sprintf("genet: unsupported hardware revision v%d", e.Major)
}

// MAC drives a single GENET v5 controller instance: register access, PHY
// management, and the TX/RX descriptor rings.
//
// Grounded on tamago's soc/nxp/enet.ENET struct shape (Base/MAC/RxHandler
// fields, Init/setup/Start staged bring-up), generalized to GENET v5's
// register set and to a caller-driven (rather than RxHandler-loop-driven)
// RX/TX API so the driver package's unit task can interleave ring
// servicing with mailbox draining.
type MAC struct {
	reg     *mmio.Region
	MDIO    *mdio.Transactor
	PHYAddr int
	PHYMode PHYMode

	phy *phy.PHY

	// MAC is the current station address; nil/zero means unset.
	MAC net.HardwareAddr

	tx *ring
	rx *ring

	Stats    Stats
	Internal InternalStats

	// DiscardErrors mirrors original_source's RACC_LINEDIS toggle: when
	// true, MAC-layer receive errors are silently discarded rather than
	// tallied (not used by this driver, which always tallies, but kept
	// configurable for parity with tamago's ENET.DiscardErrors).
	DiscardErrors bool

	running bool
}

// New constructs a MAC bound to the given register window and MDIO
// transactor. reg must map the GENET's full SYS/EXT/RBUF/UMAC/TDMA/RDMA
// register span (see regs.go offsets).
func New(reg *mmio.Region, phyAddr int, mode PHYMode) *MAC {
	return &MAC{
		reg:     reg,
		MDIO:    mdio.New(reg, umacMdioCmd),
		PHYAddr: phyAddr,
		PHYMode: mode,
	}
}

// Probe validates the hardware revision, sets the external-PHY port mode to
// RGMII, issues a brief soft reset plus local loopback, and initializes the
// PHY.
func (m *MAC) Probe() error {
	rev := m.reg.Get(sysRevCtrl, revMajorShift, revMajorMask)
	if rev < 5 || rev > 7 {
		return &ErrUnsupportedRevision{Major: rev}
	}

	if !m.PHYMode.isRGMII() {
		return fmt.Errorf("genet: unsupported phy-mode %q (only RGMII variants are supported)", m.PHYMode)
	}

	m.reg.Set(extRgmiiOobCtrl, 3) // RGMII_OOB_MODE_EN-equivalent bit for the port mode select
	m.reg.Clear(extRgmiiOobCtrl, 5)

	// brief soft reset + local loopback
	m.reg.Set(umacCmd, cmdSwResetPos)
	time.Sleep(10 * time.Microsecond)
	m.reg.Clear(umacCmd, cmdSwResetPos)
	m.reg.Set(umacCmd, cmdLclLoopEnPos)
	m.reg.Clear(umacCmd, cmdLclLoopEnPos)

	p, err := phy.Create(m.MDIO, m.PHYAddr)
	if err != nil {
		return err
	}
	m.phy = p

	adv, ctrl1000 := phy.DefaultAdvertise()
	if err := m.phy.Config(adv, ctrl1000); err != nil {
		return err
	}

	return nil
}

// SetMAC programs the UMAC_MAC0/MAC1 station-address registers; this is
// also the source address used for synthesized TX headers.
func (m *MAC) SetMAC(mac net.HardwareAddr) error {
	if len(mac) != 6 {
		return fmt.Errorf("genet: invalid MAC address length %d", len(mac))
	}

	m.MAC = append(net.HardwareAddr(nil), mac...)

	mac0 := binary.BigEndian.Uint32(mac[0:4])
	mac1 := uint32(mac[4])<<8 | uint32(mac[5])

	m.reg.Write(umacMac0, mac0)
	m.reg.Write(umacMac1, mac1)
	return nil
}

// Start allocates the RX/TX descriptor rings, performs UMAC reset, writes
// the station MAC, initializes both DMA rings, programs the RX mode,
// brings the PHY link up, adjusts speed, and enables TX/RX.
func (m *MAC) Start(mac net.HardwareAddr, linkTimeout time.Duration) error {
	m.reg.Set(umacCmd, cmdSwResetPos)
	m.reg.WaitFor(time.Millisecond, umacCmd, cmdSwResetPos, 1, 0)
	m.reg.Clear(umacCmd, cmdSwResetPos)

	if err := m.SetMAC(mac); err != nil {
		return err
	}

	m.tx = newRing()
	m.rx = newRing()

	m.reg.Write(rdmaOff+queue16RegOffset+dmaProdIndex, 0)
	m.reg.Write(rdmaOff+queue16RegOffset+dmaReadPtr, 0)
	m.reg.Write(tdmaOff+queue16RegOffset+dmaConsIndex, 0)
	m.reg.Write(tdmaOff+queue16RegOffset+dmaWritePtr, 0)

	m.reg.Set(rdmaOff+dmaRingCfg, ring16EnableBit)
	m.reg.Set(tdmaOff+dmaRingCfg, ring16EnableBit)

	// RX coalescing: fire on each frame, 50us timeout.
	m.reg.Write(rdmaOff+queue16RegOffset+dmaMbufDoneThresh, 1)
	m.reg.Write(rdmaOff+dmaRing16Timeout, 50)

	if err := m.ProgramRxMode(false, nil); err != nil {
		return err
	}

	if err := m.phy.Startup(linkTimeout); err != nil {
		return err
	}

	var speed uint32
	switch m.phy.Speed {
	case 1000:
		speed = cmdSpeed1000
	case 100:
		speed = cmdSpeed100
	default:
		speed = cmdSpeed10
	}
	m.reg.SetN(umacCmd, cmdSpeedShift, cmdSpeedMask, speed)
	m.reg.SetTo(umacCmd, cmdHdEnPos, m.phy.Duplex == 0) // half-duplex bit

	m.reg.Set(rdmaOff+dmaCtrl, dmaEnPos)
	m.reg.Set(tdmaOff+dmaCtrl, dmaEnPos)

	m.reg.Set(umacCmd, cmdTxEnPos)
	m.reg.Set(umacCmd, cmdRxEnPos)

	m.running = true
	return nil
}

// Stop clears RX-enable, waits 1ms, disables DMA with a bounded poll on
// DMA_EN clearing, clears TX-enable, reclaims any remaining TX descriptors,
// and marks the rings as released. The TX
// reclaim callback is invoked once per outstanding descriptor so the caller
// can reply pending requests.
func (m *MAC) Stop(onReclaim func(owner any)) {
	m.reg.Clear(umacCmd, cmdRxEnPos)
	time.Sleep(time.Millisecond)

	m.reg.Clear(rdmaOff+dmaCtrl, dmaEnPos)
	// hardware timeout on DMA disable is not fatal:
	// shutdown proceeds regardless of whether the poll below succeeds.
	m.reg.WaitFor(10*time.Millisecond, rdmaOff+dmaCtrl, dmaEnPos, 1, 0)

	m.reg.Clear(umacCmd, cmdTxEnPos)

	m.Reclaim(onReclaim)

	// Descriptors the hardware never consumed are released as well, so
	// every owning request still reaches onReclaim exactly once.
	m.tx.mu.Lock()
	for ; m.tx.consIndex != m.tx.prodIndex; m.tx.consIndex++ {
		s := m.tx.slots[int(m.tx.consIndex)&ringMask]
		if s.owner != nil && onReclaim != nil {
			onReclaim(s.owner)
		}
		s.owner = nil
		m.tx.freeBDs++
	}
	m.tx.mu.Unlock()

	m.reg.Clear(tdmaOff+dmaCtrl, dmaEnPos)

	m.tx = nil
	m.rx = nil
	m.running = false
}

// Running reports whether Start has completed successfully and Stop has not
// yet been called.
func (m *MAC) Running() bool {
	return m.running
}

// Link reports the PHY's current link state.
func (m *MAC) Link() bool {
	return m.phy != nil && m.phy.Link
}

// StationAddress returns the MAC's current station address, satisfying
// driver.MAC without exposing the MAC field directly through an interface.
func (m *MAC) StationAddress() net.HardwareAddr {
	return m.MAC
}

// StatsSnapshot returns a copy of the public statistics counters.
func (m *MAC) StatsSnapshot() Stats {
	return m.Stats
}

// InternalSnapshot returns a copy of the internal diagnostic counters.
func (m *MAC) InternalSnapshot() InternalStats {
	return m.Internal
}

// PollLink re-reads BMSR and reports whether the link transitioned since
// the last poll, driving the link-change detection that the unit task runs
// on each packet-timer service pass.
func (m *MAC) PollLink() (changed bool, up bool, err error) {
	if m.phy == nil {
		return false, false, fmt.Errorf("genet: PHY not initialized")
	}

	was := m.phy.Link
	bmsr, err := m.MDIO.Read(m.PHYAddr, phy.MII_BMSR)
	if err != nil {
		return false, was, err
	}

	up = bmsr&phy.BMSR_LSTATUS != 0
	m.phy.Link = up
	return up != was, up, nil
}

