// Package tinygo implements the ble.Adapter interface on top of tinygo.org/x/bluetooth (BlueZ over
// D-Bus on Linux, CoreBluetooth on macOS, WinRT on Windows).
package tinygo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/sensorlink/aranet4/internal/log"
	"github.com/sensorlink/aranet4/pkg/connector/ble"
)

// NewAdapter enables the adapter identified by id, or the default adapter if id is empty.
func NewAdapter(id string) (ble.Adapter, error) {
	device, err := newAdapter(id)
	if err != nil {
		return nil, fmt.Errorf("ble: failed to create device: %w", err)
	}
	if err = device.Enable(); err != nil {
		if IsAdapterError(err) {
			return nil, fmt.Errorf("%s", AdapterErrorHelpMessage(err))
		}
		return nil, fmt.Errorf("ble: failed to enable device: %w", err)
	}

	return &adapter{
		device: device,
	}, nil
}

type adapter struct {
	device *bluetooth.Adapter
}

func (s *adapter) Scan(ctx context.Context, match func(*ble.Beacon) bool) (*ble.Beacon, error) {
	// FIXME: The bluetooth library does not support contexts, so starting a scan on an expired
	// context would leave the scan running. See https://github.com/tinygo-org/bluetooth/issues/339
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var once sync.Once
	stopScan := func() {
		once.Do(func() {
			if err := s.device.StopScan(); err != nil && !strings.Contains(err.Error(), "no scan in progress") {
				log.Warning("ble: failed to stop scan: %+v", err)
			}
		})
	}

	foundCh := make(chan *ble.Beacon, 1)
	errorCh := make(chan error, 1)
	scanFinished := make(chan struct{})
	// Scan must have returned before the adapter can be used again.
	defer func() {
		<-scanFinished
	}()

	go func() {
		defer close(scanFinished)
		err := s.device.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			beacon := advertisementToBeacon(result)
			if !match(beacon) {
				return
			}
			select {
			case foundCh <- beacon:
				stopScan()
			default:
			}
		})
		if err != nil {
			errorCh <- err
		}
	}()

	select {
	case beacon := <-foundCh:
		return beacon, nil
	case err := <-errorCh:
		stopScan()
		return nil, err
	case <-ctx.Done():
		stopScan()
		return nil, ctx.Err()
	}
}

func (s *adapter) Connect(ctx context.Context, beacon *ble.Beacon) (ble.Device, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	addr, err := parseAddress(beacon.Address)
	if err != nil {
		return nil, err
	}

	// FIXME: see Scan.
	deviceCh := make(chan bluetooth.Device, 1)
	errorCh := make(chan error, 1)
	go func() {
		params := bluetooth.ConnectionParams{}
		if deadline, ok := ctx.Deadline(); ok {
			params.ConnectionTimeout = bluetooth.NewDuration(time.Until(deadline))
		}
		client, err := s.device.Connect(addr, params)
		if err != nil {
			errorCh <- err
			return
		}
		if ctx.Err() == nil {
			deviceCh <- client
			return
		}
		if err := client.Disconnect(); err != nil {
			log.Warning("ble: failed to disconnect: %s", err)
		}
	}()

	select {
	case client := <-deviceCh:
		log.Debug("Connected to %s", beacon.Address)
		return &device{client: &client}, nil
	case err := <-errorCh:
		return nil, fmt.Errorf("ble: failed to connect to device: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *adapter) Close() error {
	s.device = nil
	return nil
}

func advertisementToBeacon(result bluetooth.ScanResult) *ble.Beacon {
	return &ble.Beacon{
		Address:     result.Address.String(),
		LocalName:   result.LocalName(),
		RSSI:        result.RSSI,
		Connectable: true,
	}
}
