package protocol

import (
	"errors"
	"fmt"
)

// Error exposes methods useful for categorizing errors.
type Error interface {
	error

	// Temporary returns true if the Error might be the result of a transient condition. For
	// example, a sensor at the edge of radio range may miss a page deadline and answer normally
	// on the next attempt.
	Temporary() bool
}

var (
	// ErrCharacteristicNotFound indicates a required GATT characteristic was absent after service
	// discovery. No I/O is attempted once this is detected.
	ErrCharacteristicNotFound = NewError("cannot find characteristic", false)
	// ErrMalformedPacket indicates a fixed-layout packet was too short to decode.
	ErrMalformedPacket = NewError("packet deserialization error", false)
	// ErrProtocol indicates the sensor violated the history log protocol.
	ErrProtocol = NewError("history protocol error", false)
	// ErrDeviceNotFound indicates no matching sensor advertised before the scan deadline.
	ErrDeviceNotFound = NewError("unable to find sensor", true)
	// ErrTimeout indicates the sensor did not answer a read or write in time.
	ErrTimeout = NewError("timed out waiting for sensor", true)
	// ErrNotConnected indicates the connection was closed.
	ErrNotConnected = NewError("sensor not connected", false)
)

type SensorError struct {
	Err               error
	PossibleTemporary bool
}

func NewError(message string, temporary bool) error {
	return &SensorError{Err: errors.New(message), PossibleTemporary: temporary}
}

func (e *SensorError) Error() string {
	return e.Err.Error()
}

func (e *SensorError) Unwrap() error {
	return e.Err
}

func (e *SensorError) Temporary() bool {
	return e.PossibleTemporary
}

// Temporary returns true if err, or an error it wraps, indicates a possibly transient condition.
func Temporary(err error) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Temporary()
	}
	return false
}

// TransportError wraps a failure reported by the BLE stack.
type TransportError struct {
	Op   string
	UUID UUID
	Err  error
}

func (e *TransportError) Error() string {
	if e.UUID == "" {
		return fmt.Sprintf("ble: %s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("ble: %s %s: %s", e.Op, e.UUID.Name(), e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Temporary() bool {
	return Temporary(e.Err)
}

// AddressParseError indicates a peripheral address string could not be parsed.
type AddressParseError struct {
	Address string
	Err     error
}

func (e *AddressParseError) Error() string {
	return fmt.Sprintf("cannot parse bluetooth address %q: %s", e.Address, e.Err)
}

func (e *AddressParseError) Unwrap() error {
	return e.Err
}

// DeviceNotFoundError reports a failed lookup either by address or, when Address is empty, by
// local name.
type DeviceNotFoundError struct {
	Name    string
	Address string
}

func (e *DeviceNotFoundError) ByAddress() bool {
	return e.Address != ""
}

func (e *DeviceNotFoundError) Error() string {
	if e.ByAddress() {
		return "unable to find sensor by address: " + e.Address
	}
	return fmt.Sprintf("unable to find sensor by name %q", e.Name)
}

func (e *DeviceNotFoundError) Unwrap() error {
	return ErrDeviceNotFound
}

func (e *DeviceNotFoundError) Temporary() bool {
	return true
}

// CharacteristicError identifies which characteristic was missing.
type CharacteristicError struct {
	UUID UUID
}

func (e *CharacteristicError) Error() string {
	return fmt.Sprintf("cannot find characteristic %s (%s)", e.UUID.Name(), e.UUID)
}

func (e *CharacteristicError) Unwrap() error {
	return ErrCharacteristicNotFound
}

// MalformedPacketError describes a packet shorter than its fixed layout.
type MalformedPacketError struct {
	Packet string
	Want   int
	Got    int
}

func (e *MalformedPacketError) Error() string {
	return fmt.Sprintf("malformed %s packet: need %d bytes, got %d", e.Packet, e.Want, e.Got)
}

func (e *MalformedPacketError) Unwrap() error {
	return ErrMalformedPacket
}

// ProtocolError describes a history log protocol violation on one channel.
type ProtocolError struct {
	Parameter Parameter
	Reason    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("history protocol error on %s channel: %s", e.Parameter, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}
