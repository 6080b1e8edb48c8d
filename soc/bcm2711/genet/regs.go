// Package genet implements the MAC bring-up/teardown, TX/RX descriptor-ring
// engines, and RX-mode/MDF multicast filter programming for a Broadcom
// GENET v5 Gigabit Ethernet MAC.
//
// Grounded on tamago's soc/nxp/enet package: the const-block register-offset
// style and staged Init/setup/Start bring-up sequence come from
// soc/nxp/enet/enet.go; the descriptor-ring producer/consumer/wrap
// bookkeeping comes from soc/nxp/enet/dma.go, both generalized from the
// NXP ENET's single embedded RX consumer to GENET v5's register set, its
// 256-entry rings, and opener-aware TX/RX engines.
package genet

// Register block bases: SYS, EXT, RBUF, UMAC, TDMA/RDMA.
const (
	sysOff  = 0x0000
	extOff  = 0x0080
	rbufOff = 0x0300
	umacOff = 0x0800
	rdmaOff = 0x2000
	tdmaOff = 0x4000
)

// SYS block.
const (
	sysRevCtrl       = sysOff + 0x00
	sysPortCtrl      = sysOff + 0x04
	sysRBufFlushCtrl = sysOff + 0x08
)

// EXT block.
const (
	extRgmiiOobCtrl = extOff + 0x08

	rgmiiOobDisableGTXClk = 1 << 5
	rgmiiOobRgmiiLink     = 1 << 4
	rgmiiOobOobDisable    = 1 << 6
	rgmiiOobIDModeDis     = 1 << 0
	rgmiiOobModeEn        = 1 << 3
)

// RBUF block.
const (
	rbufCtrl     = rbufOff + 0x00
	rbufSizeCtrl = rbufOff + 0xb4
)

// UMAC block.
const (
	umacCmd         = umacOff + 0x008
	umacMac0        = umacOff + 0x00c
	umacMac1        = umacOff + 0x010
	umacMaxFrameLen = umacOff + 0x014
	umacTxFlush     = umacOff + 0x334
	umacMibCtrl     = umacOff + 0x580
	umacMdioCmd     = umacOff + 0x614
	umacMdfCtrl     = umacOff + 0x650
	umacMdfAddr     = umacOff + 0x654 // 17 slots * 2 words (hi16/lo32)
)

// UMAC_CMD bit positions, matching original_source/include/unimac.h (whose
// CMD_* macros are expressed as 1<<N shifts there; here each name is the
// bare bit position N, since internal/mmio's Set/Clear take a position).
const (
	cmdTxEnPos      = 0
	cmdRxEnPos      = 1
	cmdSpeedShift   = 2
	cmdSpeedMask    = 0x3
	cmdSpeed10      = 0
	cmdSpeed100     = 1
	cmdSpeed1000    = 2
	cmdPromiscPos   = 4
	cmdPadEnPos     = 5
	cmdCrcFwdPos    = 6
	cmdHdEnPos      = 10
	cmdSwResetPos   = 13
	cmdLclLoopEnPos = 15
	cmdTxRxEnPos    = 29
)

// SYS_REV_CTRL major revision field (accepts 5, 6, 7 — all normalized to
// GENET v5 behavior).
const (
	revMajorShift = 24
	revMajorMask  = 0x0f
)

// DMA ring region layout: identical per-queue register blocks, stride
// dmaRingSize bytes, queue16RegOffset selects queue 16, the single default
// queue this driver uses.
const (
	dmaRingSize      = 0x40
	queue16RegOffset = 16 * dmaRingSize

	dmaWritePtr       = 0x00
	dmaWritePtrHi     = 0x04
	dmaProdIndex      = 0x08
	dmaConsIndex      = 0x0c
	dmaRingBufSize    = 0x10
	dmaStartAddr      = 0x14
	dmaEndAddr        = 0x1c
	dmaMbufDoneThresh = 0x24
	dmaXonXoffThresh  = 0x28
	dmaReadPtr        = 0x2c
)

// DMA top-level control block (present once per TDMA/RDMA block, above the
// per-queue ring regions).
const (
	dmaCtrl          = 0x00
	dmaRingCfg       = 0x08
	dmaScbBurstSize  = 0x0c
	dmaPriority      = 0x30
	dmaArbCtrl       = 0x38
	dmaRing16Timeout = 0x80
	dmaXoffThreshold = 0x0
	tdmaFlowPeriod   = 0x5c

	dmaEnPos = 0
)

const (
	// Queue 16's ring-enable bit within DMA_RING_CFG (bit N for ring N,
	// ring 16 is bit 16).
	ring16EnableBit = 16
)
