package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"

	"github.com/sensorlink/aranet4/internal/log"
	"github.com/sensorlink/aranet4/pkg/cli"
	"github.com/sensorlink/aranet4/pkg/connector/ble"
)

var (
	btAdapter  = flag.String("btAdapter", "", "Optional ID of Bluetooth adapter to use (Linux only)")
	bleBackend = cli.BackendTinyGo
	testScan   = flag.Bool("testScan", false, "Also test BLE scan")
	showAll    = flag.Bool("all", false, "Report every advertisement, not only Aranet4 sensors")
)

func main() {
	flag.Var(&bleBackend, "backend", "Bluetooth `stack` (goble|tinygo)")
	flag.Parse()
	log.SetLevel(log.LevelDebug)

	if *btAdapter != "" {
		log.Info("Trying to use BLE adapter: %s", *btAdapter)
	} else {
		log.Info("Using first available BLE device")
	}
	adapter, err := cli.NewAdapter(bleBackend, *btAdapter)
	if err != nil {
		if strings.Contains(err.Error(), "failed to find a BLE device") {
			log.Error("No BLE device found")
		} else {
			log.Error("Failed to initialize BLE device: %v", err)
		}
		return
	}
	defer adapter.Close()

	log.Info("BLE adapter initialized")

	if !*testScan {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	filter := ble.Filter{}
	doneChan := make(chan struct{})
	go func() {
		// Never matches, so the scan runs until cancelled.
		_, err := adapter.Scan(ctx, func(b *ble.Beacon) bool {
			if *showAll || filter.Match(b) {
				log.Info("%s %q rssi=%d connectable=%v", b.Address, b.LocalName, b.RSSI, b.Connectable)
			}
			return false
		})
		if err != nil && ctx.Err() == nil {
			log.Error("Scan failed: %v", err)
		}
		close(doneChan)
	}()
	log.Info("Scanning for BLE devices until interrupted")

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	<-signalChan
	log.Info("Stopping scan")
	cancel()
	<-doneChan
}
