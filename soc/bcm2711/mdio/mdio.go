// Package mdio implements the single-transaction MDIO management interface
// exposed by the GENET MAC's UMAC_MDIO_CMD register.
//
// Grounded on tamago's soc/nxp/enet/mii.go MDIO22 transactor, generalized
// from the NXP ENET's ENETx_MMFR frame layout to GENET's UMAC_MDIO_CMD
// register (IEEE 802.3 Clause 22 read/write only — Clause 45 is not used by
// any PHY this driver targets).
package mdio

import (
	"fmt"
	"time"

	"github.com/rondoval/emu68-genet-driver/internal/mmio"
)

// UMAC_MDIO_CMD bit layout (IEEE 802.3-2008 Clause 22 framing reused by
// Broadcom UMAC).
const (
	cmdRegData  = 0  // 16-bit data field
	cmdRegRA    = 16 // 5-bit PHY register address
	cmdRegPA    = 21 // 5-bit PHY address
	cmdOp       = 26 // 2-bit opcode
	cmdStart    = 29 // start/busy bit
	cmdReadFail = 28

	opWrite = 0b01
	opRead  = 0b10
)

// busyTimeout bounds how long a single MDIO transaction waits for the BUSY
// bit to clear before giving up.
const busyTimeout = 20 * time.Millisecond

// Transactor drives the MDIO command register of a single MAC instance.
type Transactor struct {
	reg    *mmio.Region
	cmdOff uint32
}

// New returns a Transactor bound to the UMAC_MDIO_CMD register at cmdOff
// within reg.
func New(reg *mmio.Region, cmdOff uint32) *Transactor {
	return &Transactor{reg: reg, cmdOff: cmdOff}
}

// ErrTimeout is returned when the BUSY bit fails to clear within the
// protocol deadline.
type ErrTimeout struct {
	PHYAddr int
	Reg     int
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("mdio: busy-bit timeout (phy=%d reg=%d)", e.PHYAddr, e.Reg)
}

func (t *Transactor) transact(op uint32, phyAddr, reg int, data uint16) (uint16, error) {
	var cmd uint32
	cmd |= uint32(data) << cmdRegData
	cmd |= uint32(reg&0x1f) << cmdRegRA
	cmd |= uint32(phyAddr&0x1f) << cmdRegPA
	cmd |= op << cmdOp
	cmd |= 1 << cmdStart

	t.reg.Write(t.cmdOff, cmd)

	if err := t.reg.WaitFor(busyTimeout, t.cmdOff, cmdStart, 1, 0); err != nil {
		return 0, &ErrTimeout{PHYAddr: phyAddr, Reg: reg}
	}

	return uint16(t.reg.Read(t.cmdOff) & 0xffff), nil
}

// Read performs a Clause 22 register read against phyAddr/reg.
func (t *Transactor) Read(phyAddr, reg int) (uint16, error) {
	return t.transact(opRead, phyAddr, reg, 0)
}

// Write performs a Clause 22 register write against phyAddr/reg.
func (t *Transactor) Write(phyAddr, reg int, val uint16) error {
	_, err := t.transact(opWrite, phyAddr, reg, val)
	return err
}
