package tinygo

import (
	"strings"

	"tinygo.org/x/bluetooth"

	"github.com/sensorlink/aranet4/pkg/protocol"
)

func IsAdapterError(err error) bool {
	// D-Bus not found
	if strings.Contains(err.Error(), "dbus") && strings.HasSuffix(err.Error(), "no such file or directory") {
		return true
	}
	// D-Bus is running but org.bluez is not found
	if strings.Contains(err.Error(), "The name org.bluez was not provided by any .service files") {
		return true
	}
	return false
}

func AdapterErrorHelpMessage(err error) string {
	return "Failed to initialize BLE adapter: \n\t" + err.Error() + "\n" +
		"Make sure bluez and dbus are installed and running.\n" +
		"If running in a container, make sure the container has access to the host's D-Bus socket. (e.g. -v /var/run/dbus:/var/run/dbus)"
}

func newAdapter(id string) (*bluetooth.Adapter, error) {
	if id != "" {
		return bluetooth.NewAdapter(id), nil
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
