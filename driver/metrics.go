package driver

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes a Unit's public and internal counters as a
// prometheus.Collector, grounded on runZeroInc-sockstats's
// pkg/exporter/exporter.go pattern of wrapping a stats struct as a
// collector with a fixed set of Desc/supplier pairs.
type Collector struct {
	unit *Unit

	packetsSent     *prometheus.Desc
	packetsReceived *prometheus.Desc
	bytesSent       *prometheus.Desc
	bytesReceived   *prometheus.Desc
	packetsDropped  *prometheus.Desc
	overruns        *prometheus.Desc
	rxOverruns      *prometheus.Desc
	txDMA           *prometheus.Desc
	txCopy          *prometheus.Desc
	txDropped       *prometheus.Desc
}

// NewCollector builds a Collector for unit.
func NewCollector(unit *Unit) *Collector {
	constLabels := prometheus.Labels{"unit": strconv.Itoa(unit.Number)}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("genet_"+name, help, nil, constLabels)
	}
	return &Collector{
		unit:            unit,
		packetsSent:     desc("packets_sent_total", "Total packets transmitted"),
		packetsReceived: desc("packets_received_total", "Total packets received"),
		bytesSent:       desc("bytes_sent_total", "Total bytes transmitted"),
		bytesReceived:   desc("bytes_received_total", "Total bytes received"),
		packetsDropped:  desc("packets_dropped_total", "Total packets dropped"),
		overruns:        desc("overruns_total", "Total RX ring overruns"),
		rxOverruns:      desc("internal_rx_overruns_total", "Internal RX overrun diagnostic counter"),
		txDMA:           desc("internal_tx_dma_total", "TX frames sent via zero-copy DMA"),
		txCopy:          desc("internal_tx_copy_total", "TX frames sent via bounce-buffer copy"),
		txDropped:       desc("internal_tx_dropped_total", "Internal TX dropped diagnostic counter"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.packetsSent
	ch <- c.packetsReceived
	ch <- c.bytesSent
	ch <- c.bytesReceived
	ch <- c.packetsDropped
	ch <- c.overruns
	ch <- c.rxOverruns
	ch <- c.txDMA
	ch <- c.txCopy
	ch <- c.txDropped
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.unit.hw.StatsSnapshot()
	internal := c.unit.hw.InternalSnapshot()

	ch <- prometheus.MustNewConstMetric(c.packetsSent, prometheus.CounterValue, float64(stats.PacketsSent))
	ch <- prometheus.MustNewConstMetric(c.packetsReceived, prometheus.CounterValue, float64(stats.PacketsReceived))
	ch <- prometheus.MustNewConstMetric(c.bytesSent, prometheus.CounterValue, float64(stats.BytesSent))
	ch <- prometheus.MustNewConstMetric(c.bytesReceived, prometheus.CounterValue, float64(stats.BytesReceived))
	ch <- prometheus.MustNewConstMetric(c.packetsDropped, prometheus.CounterValue, float64(stats.PacketsDropped))
	ch <- prometheus.MustNewConstMetric(c.overruns, prometheus.CounterValue, float64(stats.Overruns))
	ch <- prometheus.MustNewConstMetric(c.rxOverruns, prometheus.CounterValue, float64(internal.RxOverruns))
	ch <- prometheus.MustNewConstMetric(c.txDMA, prometheus.CounterValue, float64(internal.TxDMA))
	ch <- prometheus.MustNewConstMetric(c.txCopy, prometheus.CounterValue, float64(internal.TxCopy))
	ch <- prometheus.MustNewConstMetric(c.txDropped, prometheus.CounterValue, float64(internal.TxDropped))
}
