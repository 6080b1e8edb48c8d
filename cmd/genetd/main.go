// Command genetd brings up a single GENET v5 unit on a Raspberry Pi 4 and
// serves its diagnostic counters over HTTP.
//
// Grounded on the composition-root shape of runZeroInc-sockstats's cmd
// binaries (flag-driven config, an http.Server for /metrics), adapted to
// this driver's devicetree-driven hardware discovery.
package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rondoval/emu68-genet-driver/driver"
	"github.com/rondoval/emu68-genet-driver/internal/logging"
	"github.com/rondoval/emu68-genet-driver/internal/mmio"
	"github.com/rondoval/emu68-genet-driver/platform/config"
	"github.com/rondoval/emu68-genet-driver/platform/devicetree"
	"github.com/rondoval/emu68-genet-driver/soc/bcm2711/genet"
	"github.com/rondoval/emu68-genet-driver/soc/bcm2711/gpio"
)

const (
	genetWindowSize = 0x10000
	gpioWindowSize  = 0x1000
)

func main() {
	dtbPath := flag.String("dtb", "/sys/firmware/fdt", "path to the flattened devicetree blob")
	prefsPath := flag.String("prefs", "/etc/genet.prefs", "path to the genet.prefs preferences file")
	unitNumber := flag.Int("unit", 0, "ethernet alias index to bring up (ethernet0, ethernet1, ...)")
	listenAddr := flag.String("listen", ":9109", "address to serve /metrics on")
	flag.Parse()

	log := logging.Default()

	opts := driver.DefaultOptions()
	if f, err := os.Open(*prefsPath); err == nil {
		opts = config.Load(f)
		f.Close()
	} else {
		log.Warn("could not open preferences file, using defaults", "path", *prefsPath, "error", err)
	}

	dtb, err := os.ReadFile(*dtbPath)
	if err != nil {
		log.Error("failed to read devicetree blob", "path", *dtbPath, "error", err)
		os.Exit(1)
	}

	ethCfg, err := devicetree.LoadEthernetConfig(dtb, *unitNumber)
	if err != nil {
		log.Error("failed to parse devicetree", "error", err)
		os.Exit(1)
	}
	log.Info("devicetree parsed",
		"compatible", ethCfg.Compatible,
		"phy_mode", ethCfg.PhyMode,
		"phy_addr", ethCfg.PhyAddress,
		"genet_base", ethCfg.GenetBase,
		"gpio_base", ethCfg.GPIOBase,
		"mac", ethCfg.LocalMACAddress,
	)

	genetMap, err := mmio.MapPhysical(ethCfg.GenetBase, genetWindowSize)
	if err != nil {
		log.Error("failed to map GENET registers", "error", err)
		os.Exit(1)
	}
	defer genetMap.Close()

	gpioMap, err := mmio.MapPhysical(ethCfg.GPIOBase, gpioWindowSize)
	if err != nil {
		log.Error("failed to map GPIO registers", "error", err)
		os.Exit(1)
	}
	defer gpioMap.Close()

	gpioCtrl := gpio.New(gpioMap.Region)
	if err := gpioCtrl.ConfigureMDIO(); err != nil {
		log.Error("failed to configure MDIO pins", "error", err)
		os.Exit(1)
	}
	if err := gpioCtrl.ConfigureRGMII(); err != nil {
		log.Error("failed to configure RGMII pins", "error", err)
		os.Exit(1)
	}

	mac := genet.New(genetMap.Region, int(ethCfg.PhyAddress), genet.PHYMode(ethCfg.PhyMode))

	dev := driver.NewDevice(func() (*driver.Unit, error) {
		return driver.NewUnit(*unitNumber, mac, opts), nil
	})

	opener, err := dev.Open(*unitNumber, driver.Capabilities{}, false)
	if err != nil {
		log.Error("failed to open unit", "error", err)
		os.Exit(1)
	}

	unit := dev.Unit()

	configReq := driver.NewRequest(driver.CmdConfigInterface, 0, opener)
	configReq.Src = ethCfg.LocalMACAddress
	unit.Submit(configReq)
	<-configReq.Done()
	if configReq.Err != "" {
		log.Error("CONFIG-INTERFACE failed", "code", configReq.Err)
		os.Exit(1)
	}

	onlineReq := driver.NewRequest(driver.CmdOnline, 0, opener)
	unit.Submit(onlineReq)
	<-onlineReq.Done()
	if onlineReq.Err != "" {
		log.Error("ONLINE failed", "code", onlineReq.Err)
		os.Exit(1)
	}
	log.Info("unit online", "unit", *unitNumber)

	registry := prometheus.NewRegistry()
	registry.MustRegister(driver.NewCollector(unit))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              *listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("serving metrics", "addr", *listenAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server exited", "error", err)
		os.Exit(1)
	}
}
