package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goble "github.com/go-ble/ble"

	"github.com/sensorlink/aranet4/pkg/connector/ble"
)

// bluetoothBaseSuffix marks UUIDs assigned by the Bluetooth SIG, which peripherals advertise in
// their 16-bit short form.
const bluetoothBaseSuffix = "-0000-1000-8000-00805f9b34fb"

func parseUUID(s string) (goble.UUID, error) {
	s = strings.ToLower(s)
	if strings.HasPrefix(s, "0000") && strings.HasSuffix(s, bluetoothBaseSuffix) {
		s = s[4:8]
	}
	return goble.Parse(s)
}

func canonicalUUID(u goble.UUID) string {
	if len(u) == 2 {
		return "0000" + u.String() + bluetoothBaseSuffix
	}
	return strings.ToLower(u.String())
}

type device struct {
	client goble.Client
}

func (c *device) Service(_ context.Context, uuid string) (ble.Service, error) {
	id, err := parseUUID(uuid)
	if err != nil {
		return nil, fmt.Errorf("ble: invalid service UUID %s: %w", uuid, err)
	}
	services, err := c.client.DiscoverServices([]goble.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("ble: failed to enumerate device services: %w", err)
	}
	for _, s := range services {
		if s.UUID.Equal(id) {
			return &service{client: c.client, service: s}, nil
		}
	}
	return nil, fmt.Errorf("ble: failed to discover service %s", uuid)
}

func (c *device) Close() error {
	client := c.client
	c.client = nil
	if client == nil {
		return nil
	}

	err1 := client.ClearSubscriptions()
	err2 := client.CancelConnection()

	return errors.Join(err1, err2)
}
