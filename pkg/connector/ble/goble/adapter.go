// Package goble implements the ble.Adapter interface on top of github.com/go-ble/ble (raw HCI
// sockets on Linux, CoreBluetooth on macOS).
package goble

import (
	"context"
	"errors"
	"fmt"

	goble "github.com/go-ble/ble"

	"github.com/sensorlink/aranet4/internal/log"
	"github.com/sensorlink/aranet4/pkg/connector/ble"
)

// NewAdapter opens the HCI device identified by id ("hci0", "1", ...), or the default device if id
// is empty.
func NewAdapter(id string) (ble.Adapter, error) {
	device, err := newAdapter(id)
	if err != nil {
		return nil, fmt.Errorf("ble: failed to enable device: %w", err)
	}

	return &adapter{
		device: device,
	}, nil
}

type adapter struct {
	device goble.Device
}

func (s *adapter) Scan(ctx context.Context, match func(*ble.Beacon) bool) (*ble.Beacon, error) {
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan *ble.Beacon, 1)
	fn := func(a goble.Advertisement) {
		beacon := advertisementToBeacon(a)
		if !match(beacon) {
			return
		}
		select {
		case ch <- beacon:
			cancel() // Notify device.Scan() that we found a match
		case <-scanCtx.Done():
			// Another advertisement already matched. Returning unblocks the macOS implementation
			// of device.Scan(...).
		}
	}

	// device.Scan() always returns an error on macOS because it only terminates once the context
	// is canceled, so cancellation is not treated as a failure here.
	if err := s.device.Scan(scanCtx, false, fn); err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}

	select {
	case beacon := <-ch:
		return beacon, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *adapter) Connect(ctx context.Context, beacon *ble.Beacon) (ble.Device, error) {
	log.Debug("Dialing %s (%s)...", beacon.Address, beacon.LocalName)
	client, err := s.device.Dial(ctx, goble.NewAddr(beacon.Address))
	if err != nil {
		return nil, fmt.Errorf("ble: failed to dial %s: %w", beacon.Address, err)
	}
	if mtu, err := client.ExchangeMTU(goble.MaxMTU); err != nil {
		log.Warning("ble: failed to exchange MTU: %s", err)
	} else {
		log.Debug("MTU size: %d", mtu)
	}

	return &device{client: client}, nil
}

func (s *adapter) Close() error {
	if s.device == nil {
		return nil
	}

	device := s.device
	s.device = nil
	return device.Stop()
}

func advertisementToBeacon(a goble.Advertisement) *ble.Beacon {
	return &ble.Beacon{
		Address:     a.Addr().String(),
		LocalName:   a.LocalName(),
		RSSI:        int16(a.RSSI()),
		Connectable: a.Connectable(),
	}
}
