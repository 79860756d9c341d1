package tinygo

import (
	"tinygo.org/x/bluetooth"

	"github.com/sensorlink/aranet4/pkg/connector/ble"
	"github.com/sensorlink/aranet4/pkg/protocol"
)

func IsAdapterError(_ error) bool {
	// TODO: Add check for Darwin
	return false
}

func AdapterErrorHelpMessage(err error) string {
	return err.Error()
}

func newAdapter(id string) (*bluetooth.Adapter, error) {
	if id != "" {
		// TODO: Add support for Darwin
		return nil, ble.ErrAdapterInvalidID
	}

	return bluetooth.DefaultAdapter, nil
}

// Both modes use acknowledged writes on CoreBluetooth.
var (
	deviceCharacteristicWrite                = bluetooth.DeviceCharacteristic.Write
	deviceCharacteristicWriteWithoutResponse = bluetooth.DeviceCharacteristic.Write
)

// CoreBluetooth identifies peripherals by a per-host UUID rather than a MAC address.
func parseAddress(address string) (bluetooth.Address, error) {
	uuid, err := bluetooth.ParseUUID(address)
	if err != nil {
		return bluetooth.Address{}, &protocol.AddressParseError{Address: address, Err: err}
	}

	return bluetooth.Address{
		UUID: uuid,
	}, nil
}
