// Package connector defines the transport contract between the sensor protocol and a connected
// BLE peripheral.
package connector

import (
	"context"

	"github.com/sensorlink/aranet4/pkg/protocol"
)

// WriteMode selects the GATT write procedure.
type WriteMode int

const (
	// WriteWithResponse waits for the peripheral to acknowledge the write.
	WriteWithResponse WriteMode = iota

	// WriteWithoutResponse issues a write command. The history request uses this mode.
	WriteWithoutResponse
)

func (m WriteMode) String() string {
	if m == WriteWithoutResponse {
		return "write without response"
	}
	return "write"
}

// Peripheral reads and writes GATT characteristics of a connected sensor.
type Peripheral interface {
	// HasCharacteristic reports whether service discovery found uuid. It never performs I/O.
	HasCharacteristic(uuid protocol.UUID) bool

	// Read returns the current value of a characteristic.
	//
	// Implementations must honour ctx and must be thread safe.
	Read(ctx context.Context, uuid protocol.UUID) ([]byte, error)

	// Write sends data to a characteristic.
	//
	// Implementations must honour ctx and must be thread safe.
	Write(ctx context.Context, uuid protocol.UUID, data []byte, mode WriteMode) error

	// Subscribe registers handler for notifications on uuid. The handler runs on a goroutine owned
	// by the BLE stack and must not block.
	Subscribe(ctx context.Context, uuid protocol.UUID, handler func([]byte)) error
}
