package devicetree

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dtProp/dtNode/buildFDT construct a minimal, valid FDT blob in memory so
// Parse can be exercised without a real boot-time devicetree. Mirrors just
// enough of devicetree-specification v0.3 §5.3 for this driver's reader.
type dtProp struct {
	name  string
	value []byte
}

type dtNode struct {
	name     string
	props    []dtProp
	children []dtNode
}

func beU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func padTo4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

func buildFDT(root dtNode) []byte {
	var strs []byte
	strOff := map[string]uint32{}
	getStrOff := func(s string) uint32 {
		if off, ok := strOff[s]; ok {
			return off
		}
		off := uint32(len(strs))
		strs = append(strs, []byte(s)...)
		strs = append(strs, 0)
		strOff[s] = off
		return off
	}

	var structBlock []byte
	var emit func(n dtNode)
	emit = func(n dtNode) {
		structBlock = append(structBlock, beU32(tokenBeginNode)...)
		structBlock = append(structBlock, []byte(n.name)...)
		structBlock = append(structBlock, 0)
		structBlock = padTo4(structBlock)

		for _, p := range n.props {
			structBlock = append(structBlock, beU32(tokenProp)...)
			structBlock = append(structBlock, beU32(uint32(len(p.value)))...)
			structBlock = append(structBlock, beU32(getStrOff(p.name))...)
			structBlock = append(structBlock, p.value...)
			structBlock = padTo4(structBlock)
		}

		for _, c := range n.children {
			emit(c)
		}
		structBlock = append(structBlock, beU32(tokenEndNode)...)
	}
	emit(root)
	structBlock = append(structBlock, beU32(tokenEnd)...)

	const headerLen = 40
	offStruct := uint32(headerLen)
	offStrings := offStruct + uint32(len(structBlock))

	buf := make([]byte, headerLen)
	binary.BigEndian.PutUint32(buf[0:4], magic)
	binary.BigEndian.PutUint32(buf[8:12], offStruct)
	binary.BigEndian.PutUint32(buf[12:16], offStrings)

	buf = append(buf, structBlock...)
	buf = append(buf, strs...)
	return buf
}

func strProp(name, value string) dtProp {
	b := append([]byte(value), 0)
	return dtProp{name: name, value: b}
}

func cellsProp(name string, cells ...uint32) dtProp {
	var b []byte
	for _, c := range cells {
		b = append(b, beU32(c)...)
	}
	return dtProp{name: name, value: b}
}

func TestParseRejectsShortBlob(t *testing.T) {
	_, err := Parse(make([]byte, 10))
	assert.Error(t, err)
}

func TestParseRejectsBadMagic(t *testing.T) {
	blob := buildFDT(dtNode{name: ""})
	blob[0] = 0
	_, err := Parse(blob)
	assert.Error(t, err)
}

func TestParseBuildsNodeTreeWithProperties(t *testing.T) {
	blob := buildFDT(dtNode{
		name: "",
		props: []dtProp{
			cellsProp("#address-cells", 2),
		},
		children: []dtNode{
			{
				name: "soc",
				props: []dtProp{
					strProp("compatible", "brcm,bcm2711"),
				},
			},
		},
	})

	root, err := Parse(blob)
	require.NoError(t, err)
	require.NotNil(t, root)

	assert.Equal(t, uint32(2), root.PropU32("#address-cells", 0))

	soc := root.Child("soc")
	require.NotNil(t, soc)
	assert.Equal(t, "brcm,bcm2711", soc.PropString("compatible"))
	assert.Equal(t, "/soc", soc.Path)
	assert.Same(t, root, soc.Parent)
}

func TestFindPathResolvesNestedNode(t *testing.T) {
	blob := buildFDT(dtNode{
		name: "",
		children: []dtNode{
			{
				name: "soc",
				children: []dtNode{
					{name: "ethernet@7d580000"},
				},
			},
		},
	})
	root, err := Parse(blob)
	require.NoError(t, err)

	found := root.FindPath("/soc/ethernet@7d580000")
	require.NotNil(t, found)
	assert.Equal(t, "ethernet@7d580000", found.Name)

	assert.Nil(t, root.FindPath("/soc/missing"))
	assert.Same(t, root, root.FindPath("/"))
}

func TestFindByPhandleSearchesSubtree(t *testing.T) {
	blob := buildFDT(dtNode{
		name: "",
		children: []dtNode{
			{
				name: "soc",
				children: []dtNode{
					{
						name:  "ethernet-phy@1",
						props: []dtProp{cellsProp("phandle", 7), cellsProp("reg", 1)},
					},
				},
			},
		},
	})
	root, err := Parse(blob)
	require.NoError(t, err)

	phy := root.FindByPhandle(7)
	require.NotNil(t, phy)
	assert.Equal(t, "ethernet-phy@1", phy.Name)

	assert.Nil(t, root.FindByPhandle(99))
}

func TestPropU32WalkInheritsFromAncestor(t *testing.T) {
	blob := buildFDT(dtNode{
		name: "",
		props: []dtProp{
			cellsProp("#address-cells", 2),
		},
		children: []dtNode{
			{name: "soc", children: []dtNode{{name: "leaf"}}},
		},
	})
	root, err := Parse(blob)
	require.NoError(t, err)

	leaf := root.Child("soc").Child("leaf")
	assert.Equal(t, uint32(2), leaf.PropU32Walk("#address-cells", 0))
	assert.Equal(t, uint32(0), leaf.PropU32Walk("#nonexistent", 0))
}

func TestNilNodeIsSafeForAccessors(t *testing.T) {
	var n *Node
	assert.Nil(t, n.Child("x"))
	assert.Nil(t, n.FindByPhandle(1))
	_, ok := n.Prop("x")
	assert.False(t, ok)
}
