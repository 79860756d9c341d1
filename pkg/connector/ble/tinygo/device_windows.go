package tinygo

import (
	"tinygo.org/x/bluetooth"

	"github.com/sensorlink/aranet4/pkg/connector/ble"
	"github.com/sensorlink/aranet4/pkg/protocol"
)

func IsAdapterError(_ error) bool {
	// TODO: Add check for Windows
	return false
}

func AdapterErrorHelpMessage(err error) string {
	return err.Error()
}

func newAdapter(id string) (*bluetooth.Adapter, error) {
	if id != "" {
		// TODO: Add support for Windows
		return nil, ble.ErrAdapterInvalidID
	}

	return bluetooth.DefaultAdapter, nil
}

var (
	deviceCharacteristicWrite                = bluetooth.DeviceCharacteristic.Write
	deviceCharacteristicWriteWithoutResponse = bluetooth.DeviceCharacteristic.WriteWithoutResponse
)

func parseAddress(address string) (bluetooth.Address, error) {
	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return bluetooth.Address{}, &protocol.AddressParseError{Address: address, Err: err}
	}

	return bluetooth.Address{
		MACAddress: bluetooth.MACAddress{
			MAC: mac,
		},
	}, nil
}
