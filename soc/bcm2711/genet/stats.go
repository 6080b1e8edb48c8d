package genet

// Stats is the public, caller-visible statistics struct returned by the
// GET-GLOBAL-STATS command. Field names mirror the SANA-II Sana2DeviceStats
// shape this was distilled from (original_source/include/device.h).
type Stats struct {
	PacketsSent     uint32
	PacketsReceived uint32
	BytesSent       uint64
	BytesReceived   uint64
	PacketsDropped  uint32
	BadData         uint32
	Overruns        uint32
	UnknownTypes    uint32
}

// InternalStats are the driver-private diagnostic counters carried
// alongside Stats (grounded on original_source's internal_stats), logged
// on the unit task's stats tick but never returned to a caller directly.
type InternalStats struct {
	RxPackets       uint32
	RxBytes         uint64
	RxDropped       uint32
	RxArpIPDropped  uint32
	RxOverruns      uint32
	TxPackets       uint32
	TxBytes         uint64
	TxDMA           uint32
	TxCopy          uint32
	TxDropped       uint32
}
