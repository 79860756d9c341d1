package goble

import (
	"fmt"

	goble "github.com/go-ble/ble"

	"github.com/sensorlink/aranet4/pkg/connector/ble"
)

type service struct {
	client  goble.Client
	service *goble.Service
}

func (s *service) Characteristics() ([]ble.Characteristic, error) {
	found, err := s.client.DiscoverCharacteristics(nil, s.service)
	if err != nil {
		return nil, fmt.Errorf("ble: failed to discover service characteristics: %w", err)
	}

	out := make([]ble.Characteristic, 0, len(found))
	for _, c := range found {
		// Descriptors are needed to locate the CCCD used by Subscribe.
		if _, err := s.client.DiscoverDescriptors(nil, c); err != nil {
			return nil, fmt.Errorf("ble: couldn't fetch descriptors: %w", err)
		}
		out = append(out, &characteristic{client: s.client, characteristic: c})
	}
	return out, nil
}

type characteristic struct {
	client         goble.Client
	characteristic *goble.Characteristic
}

func (c *characteristic) UUID() string {
	return canonicalUUID(c.characteristic.UUID)
}

func (c *characteristic) Read() ([]byte, error) {
	return c.client.ReadCharacteristic(c.characteristic)
}

func (c *characteristic) Write(p []byte, withResponse bool) error {
	return c.client.WriteCharacteristic(c.characteristic, p, !withResponse)
}

func (c *characteristic) Subscribe(callback func(buf []byte)) error {
	if err := c.client.Subscribe(c.characteristic, false, callback); err != nil {
		return fmt.Errorf("ble: failed to subscribe: %w", err)
	}
	return nil
}
