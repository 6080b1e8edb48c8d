package devicetree

import (
	"encoding/binary"
	"fmt"
	"net"
)

// EthernetConfig is the subset of devicetree information
// original_source/devtree.c's DevTreeParse collects before handing off to
// unit bring-up: register windows (already translated to CPU address
// space), PHY location, and the station address burned into the board.
type EthernetConfig struct {
	Compatible      string
	LocalMACAddress net.HardwareAddr
	PhyMode         string
	PhyAddress      uint32
	GenetBase       uint64
	GPIOBase        uint64
}

// LoadEthernetConfig parses blob and extracts the Nth ethernet alias's
// configuration, matching DevTreeParse's alias-lookup-then-key-walk
// sequence: /aliases/ethernetN, its phy-handle target, and the sibling GPIO
// alias needed for the MDIO bus.
func LoadEthernetConfig(blob []byte, unitNumber int) (*EthernetConfig, error) {
	root, err := Parse(blob)
	if err != nil {
		return nil, err
	}

	aliases := root.FindPath("/aliases")
	if aliases == nil {
		return nil, fmt.Errorf("devicetree: no /aliases node")
	}

	ethAlias := aliases.PropString(fmt.Sprintf("ethernet%d", unitNumber))
	gpioAlias := aliases.PropString("gpio")
	if ethAlias == "" || gpioAlias == "" {
		return nil, fmt.Errorf("devicetree: missing ethernet%d or gpio alias", unitNumber)
	}

	ethNode := root.FindPath(ethAlias)
	if ethNode == nil {
		return nil, fmt.Errorf("devicetree: alias %s does not resolve", ethAlias)
	}
	gpioNode := root.FindPath(gpioAlias)
	if gpioNode == nil {
		return nil, fmt.Errorf("devicetree: alias %s does not resolve", gpioAlias)
	}

	cfg := &EthernetConfig{
		Compatible: ethNode.PropString("compatible"),
		PhyMode:    ethNode.PropString("phy-mode"),
	}

	if mac, ok := ethNode.Prop("local-mac-address"); ok && len(mac) == 6 {
		cfg.LocalMACAddress = net.HardwareAddr(append([]byte(nil), mac...))
	}

	phyHandle := ethNode.PropU32("phy-handle", 0)
	phyNode := root.FindByPhandle(phyHandle)
	if phyNode == nil {
		return nil, fmt.Errorf("devicetree: phy-handle %#x not found", phyHandle)
	}
	cfg.PhyAddress = phyNode.PropU32Walk("reg", 1)

	genetBase, err := regBaseAddress(ethNode)
	if err != nil {
		return nil, fmt.Errorf("devicetree: ethernet reg: %w", err)
	}
	gpioBase, err := regBaseAddress(gpioNode)
	if err != nil {
		return nil, fmt.Errorf("devicetree: gpio reg: %w", err)
	}

	cfg.GenetBase = genetBase + translationOffset(root, genetBase)
	cfg.GPIOBase = gpioBase + translationOffset(root, gpioBase)

	return cfg, nil
}

// regBaseAddress reads a node's "reg" property's first address cell,
// matching GetBaseAddress. address-cells is inherited from the parent, not
// the node itself, matching DT_GetPropertyValueULONG(DT_GetParent(key), ...).
func regBaseAddress(n *Node) (uint64, error) {
	addressCells := n.Parent.PropU32Walk("#address-cells", 2)
	reg, ok := n.Prop("reg")
	if !ok {
		return 0, fmt.Errorf("no reg property")
	}
	return cellValue(reg, addressCells-1, addressCells), nil
}

// translationOffset mirrors GetAddressTranslationOffset: it finds /soc's
// "ranges" property and locates the record whose child (bus) address range
// contains addr, returning the difference between its CPU-side and bus-side
// base addresses. A record not found (or no /soc node) means no
// translation is needed.
func translationOffset(root *Node, addr uint64) uint64 {
	soc := root.FindPath("/soc")
	if soc == nil {
		return 0
	}

	addressCellsParent := soc.Parent.PropU32Walk("#address-cells", 2)
	addressCellsChild := soc.PropU32Walk("#address-cells", 2)
	sizeCells := soc.Parent.PropU32Walk("#size-cells", 2)
	recordCells := addressCellsParent + addressCellsChild + sizeCells

	ranges, ok := soc.Prop("ranges")
	if !ok || recordCells == 0 {
		return 0
	}

	cellBytes := 4
	recordBytes := int(recordCells) * cellBytes
	for off := 0; off+recordBytes <= len(ranges); off += recordBytes {
		rec := ranges[off : off+recordBytes]
		busAddr := cellValue(rec, addressCellsChild-1, addressCellsChild)
		cpuAddr := cellValue(rec, addressCellsChild+addressCellsParent-1, addressCellsParent)
		size := cellValue(rec[int(addressCellsChild+addressCellsParent)*cellBytes:], sizeCells-1, sizeCells)

		if addr >= busAddr && addr < busAddr+size {
			return cpuAddr - busAddr
		}
	}
	return 0
}

// cellValue reads the cellIndex-th 32-bit cell (0-based, counting from the
// start of a totalCells-cell record) out of data, matching the original's
// "i[address_cells_child - 1]" style last-cell addressing: totalCells and
// cellIndex are the same "last cell of an N-cell address" shape used
// throughout devtree.c, which only ever deals in 32-bit cells regardless of
// whether the full address is 1 or 2 cells wide.
func cellValue(data []byte, cellIndex, totalCells uint32) uint64 {
	if totalCells == 0 {
		return 0
	}
	off := int(cellIndex) * 4
	if off+4 > len(data) {
		return 0
	}
	return uint64(binary.BigEndian.Uint32(data[off : off+4]))
}
