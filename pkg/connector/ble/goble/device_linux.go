package goble

import (
	"strconv"
	"strings"
	"time"

	goble "github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci/cmd"

	"github.com/sensorlink/aranet4/pkg/connector/ble"
)

const bleTimeout = 20 * time.Second

// Aranet4 advertises roughly every 4 seconds, so passive scanning with a wide window is enough.
var scanParams = cmd.LESetScanParameters{
	LEScanType:           0,      // Passive scanning
	LEScanInterval:       0x0060, // 60ms
	LEScanWindow:         0x0060, // 60ms
	OwnAddressType:       0,      // Static
	ScanningFilterPolicy: 0,      // Accept all
}

func newAdapter(id string) (goble.Device, error) {
	opts := []goble.Option{
		goble.OptListenerTimeout(bleTimeout),
		goble.OptDialerTimeout(bleTimeout),
		goble.OptScanParams(scanParams),
	}
	if id != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(id, "hci"))
		if err != nil {
			return nil, ble.ErrAdapterInvalidID
		}
		opts = append(opts, goble.OptDeviceID(n))
	}
	return linux.NewDevice(opts...)
}
