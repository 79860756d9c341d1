package tinygo

import (
	"context"
	"fmt"

	"tinygo.org/x/bluetooth"

	"github.com/sensorlink/aranet4/pkg/connector/ble"
)

type device struct {
	client *bluetooth.Device
}

func (c *device) Service(_ context.Context, uuid string) (ble.Service, error) {
	id, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, fmt.Errorf("ble: invalid service UUID %s: %w", uuid, err)
	}
	services, err := c.client.DiscoverServices([]bluetooth.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("ble: failed to enumerate device services: %w", err)
	}
	if len(services) != 1 {
		return nil, fmt.Errorf("ble: failed to discover service %s", uuid)
	}

	return &service{service: services[0]}, nil
}

func (c *device) Close() error {
	client := c.client
	c.client = nil
	if client == nil {
		return nil
	}
	return client.Disconnect()
}
