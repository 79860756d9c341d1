package tinygo

import (
	"fmt"

	"tinygo.org/x/bluetooth"

	"github.com/sensorlink/aranet4/pkg/connector/ble"
)

// maxValueSize is the largest attribute value allowed by the ATT protocol.
const maxValueSize = 512

type service struct {
	service bluetooth.DeviceService
}

func (s *service) Characteristics() ([]ble.Characteristic, error) {
	found, err := s.service.DiscoverCharacteristics(nil)
	if err != nil {
		return nil, fmt.Errorf("ble: failed to discover service characteristics: %w", err)
	}
	out := make([]ble.Characteristic, 0, len(found))
	for _, c := range found {
		out = append(out, &characteristic{characteristic: c})
	}
	return out, nil
}

type characteristic struct {
	characteristic bluetooth.DeviceCharacteristic
}

func (c *characteristic) UUID() string {
	return c.characteristic.UUID().String()
}

func (c *characteristic) Read() ([]byte, error) {
	buf := make([]byte, maxValueSize)
	n, err := c.characteristic.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *characteristic) Write(p []byte, withResponse bool) error {
	write := deviceCharacteristicWriteWithoutResponse
	if withResponse {
		write = deviceCharacteristicWrite
	}
	n, err := write(c.characteristic, p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("ble: failed to write %d bytes", len(p))
	}
	return nil
}

func (c *characteristic) Subscribe(callback func(buf []byte)) error {
	if err := c.characteristic.EnableNotifications(callback); err != nil {
		return fmt.Errorf("ble: failed to enable notifications: %w", err)
	}
	return nil
}
