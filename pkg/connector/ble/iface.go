package ble

import (
	"context"
)

// Beacon is an advertisement that matched a Filter.
type Beacon struct {
	Address     string
	LocalName   string
	RSSI        int16
	Connectable bool
}

// Adapter is implemented by each BLE backend.
type Adapter interface {
	// Scan returns the first advertisement for which match returns true. It blocks until a match
	// is found, the scan fails, or ctx is done.
	Scan(ctx context.Context, match func(*Beacon) bool) (*Beacon, error)
	Connect(ctx context.Context, beacon *Beacon) (Device, error)
	Close() error
}

// Device is a connected peripheral.
type Device interface {
	// Service discovers the service identified by uuid and its characteristics.
	Service(ctx context.Context, uuid string) (Service, error)
	Close() error
}

type Service interface {
	Characteristics() ([]Characteristic, error)
}

// Characteristic performs blocking GATT operations on a single characteristic. Implementations do
// not need to honour contexts; Connection bounds every call.
type Characteristic interface {
	UUID() string
	Read() ([]byte, error)
	Write(p []byte, withResponse bool) error
	Subscribe(callback func(buf []byte)) error
}
