package goble

import (
	goble "github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"

	"github.com/sensorlink/aranet4/internal/log"
	"github.com/sensorlink/aranet4/pkg/connector/ble"
)

func newAdapter(id string) (goble.Device, error) {
	if id != "" {
		log.Warning("Darwin does not support specifying a Bluetooth adapter ID")
		return nil, ble.ErrAdapterInvalidID
	}
	return darwin.NewDevice()
}
