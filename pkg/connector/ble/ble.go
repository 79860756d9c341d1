// Package ble connects to an Aranet4 over Bluetooth Low Energy and exposes it as a
// connector.Peripheral. Radio access is delegated to a backend Adapter (see the tinygo and goble
// subpackages).
package ble

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sensorlink/aranet4/internal/log"
	"github.com/sensorlink/aranet4/pkg/connector"
	"github.com/sensorlink/aranet4/pkg/protocol"
)

// DefaultLocalName is matched against advertised names when no address is configured.
const DefaultLocalName = "Aranet4"

var (
	ErrNotConnectable   = protocol.NewError("the sensor is not accepting connections", true)
	ErrAdapterInvalidID = protocol.NewError("the bluetooth adapter ID is invalid", false)
	ErrBusy             = protocol.NewError("a previous operation is still in progress", true)
)

// Filter selects the sensor to connect to. Address takes precedence over Name.
type Filter struct {
	// Name is matched as a substring of the advertised local name. Defaults to DefaultLocalName.
	Name string

	// Address is matched exactly, ignoring case.
	Address string
}

func (f Filter) name() string {
	if f.Name == "" {
		return DefaultLocalName
	}
	return f.Name
}

// Match reports whether b is the sensor f describes.
func (f Filter) Match(b *Beacon) bool {
	if f.Address != "" {
		return strings.EqualFold(b.Address, f.Address)
	}
	return strings.Contains(b.LocalName, f.name())
}

func (f Filter) String() string {
	if f.Address != "" {
		return "address " + f.Address
	}
	return fmt.Sprintf("name %q", f.name())
}

func (f Filter) notFound() error {
	if f.Address != "" {
		return &protocol.DeviceNotFoundError{Address: f.Address}
	}
	return &protocol.DeviceNotFoundError{Name: f.name()}
}

// ParseAddress validates and canonicalises a peripheral address. Linux and Windows report 48-bit
// MAC addresses; macOS reports a per-host UUID instead.
func ParseAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if mac, err := net.ParseMAC(address); err == nil {
		if len(mac) != 6 {
			return "", &protocol.AddressParseError{Address: address, Err: errors.New("not a 48-bit address")}
		}
		return strings.ToUpper(mac.String()), nil
	}
	// uuid.Parse also accepts braced and urn forms; CoreBluetooth only reports the plain one.
	if len(address) != 36 {
		return "", &protocol.AddressParseError{Address: address, Err: errors.New("not a MAC address or UUID")}
	}
	id, err := uuid.Parse(address)
	if err != nil {
		return "", &protocol.AddressParseError{Address: address, Err: err}
	}
	return id.String(), nil
}

// Connection is a connector.Peripheral backed by a BLE Device.
type Connection struct {
	beacon          *Beacon
	device          Device
	characteristics map[protocol.UUID]Characteristic

	lock   sync.Mutex
	closed bool
	// pending is closed when an abandoned backend call returns.
	pending chan struct{}
}

// NewConnection scans for a sensor matching filter and connects to it. Connection attempts are
// retried until ctx expires.
func NewConnection(ctx context.Context, adapter Adapter, filter Filter) (*Connection, error) {
	if filter.Address != "" {
		address, err := ParseAddress(filter.Address)
		if err != nil {
			return nil, err
		}
		filter.Address = address
	}
	log.Debug("Scanning for %s...", filter)
	beacon, err := adapter.Scan(ctx, filter.Match)
	if err != nil {
		if ctx.Err() != nil {
			return nil, filter.notFound()
		}
		return nil, err
	}
	if beacon == nil {
		return nil, filter.notFound()
	}
	return NewConnectionFromBeacon(ctx, beacon, adapter)
}

// NewConnectionFromBeacon connects to a previously scanned sensor.
func NewConnectionFromBeacon(ctx context.Context, beacon *Beacon, adapter Adapter) (*Connection, error) {
	var lastError error

	if !beacon.Connectable {
		return nil, ErrNotConnectable
	}

	for {
		conn, err := tryToConnect(ctx, beacon, adapter)
		if err == nil {
			return conn, nil
		}

		log.Warning("BLE connection attempt failed: %+v", err)
		if err := ctx.Err(); err != nil {
			if lastError != nil {
				return nil, lastError
			}
			return nil, err
		}
		lastError = err
	}
}

func tryToConnect(ctx context.Context, beacon *Beacon, adapter Adapter) (*Connection, error) {
	log.Debug("Connecting to %s (%s)...", beacon.Address, beacon.LocalName)
	device, err := adapter.Connect(ctx, beacon)
	if err != nil {
		return nil, &protocol.TransportError{Op: "connect", Err: err}
	}

	characteristics := make(map[protocol.UUID]Characteristic)
	for _, serviceUUID := range protocol.Services {
		service, err := device.Service(ctx, string(serviceUUID))
		if err != nil {
			if serviceUUID == protocol.ServiceUUID {
				closeDevice(device)
				return nil, &protocol.TransportError{Op: "discover", UUID: serviceUUID, Err: err}
			}
			log.Debug("Optional %s not available: %s", serviceUUID.Name(), err)
			continue
		}
		found, err := service.Characteristics()
		if err != nil {
			closeDevice(device)
			return nil, &protocol.TransportError{Op: "discover", UUID: serviceUUID, Err: err}
		}
		for _, c := range found {
			characteristics[protocol.NormalizeUUID(c.UUID())] = c
		}
	}

	log.Info("Connected to %s (%s), %d characteristics", beacon.LocalName, beacon.Address, len(characteristics))
	return &Connection{
		beacon:          beacon,
		device:          device,
		characteristics: characteristics,
	}, nil
}

func closeDevice(device Device) {
	if err := device.Close(); err != nil {
		log.Warning("ble: failed to close device: %s", err)
	}
}

// Address returns the address of the connected sensor.
func (c *Connection) Address() string {
	return c.beacon.Address
}

// Name returns the advertised local name of the connected sensor.
func (c *Connection) Name() string {
	return c.beacon.LocalName
}

func (c *Connection) HasCharacteristic(uuid protocol.UUID) bool {
	_, ok := c.characteristics[uuid]
	return ok
}

func (c *Connection) Read(ctx context.Context, uuid protocol.UUID) ([]byte, error) {
	var data []byte
	err := c.do(ctx, "read", uuid, func(ch Characteristic) (err error) {
		data, err = ch.Read()
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Debug("RX %s: %02x", uuid.Name(), data)
	return data, nil
}

func (c *Connection) Write(ctx context.Context, uuid protocol.UUID, data []byte, mode connector.WriteMode) error {
	log.Debug("TX %s: %02x", uuid.Name(), data)
	return c.do(ctx, "write", uuid, func(ch Characteristic) error {
		return ch.Write(data, mode == connector.WriteWithResponse)
	})
}

func (c *Connection) Subscribe(ctx context.Context, uuid protocol.UUID, handler func([]byte)) error {
	return c.do(ctx, "subscribe", uuid, func(ch Characteristic) error {
		return ch.Subscribe(func(buf []byte) {
			log.Debug("RX %s: %02x", uuid.Name(), buf)
			handler(buf)
		})
	})
}

// do runs op against the characteristic identified by uuid. Backends block without honouring
// contexts, so op runs in its own goroutine and is abandoned if ctx finishes first. Until an
// abandoned call returns, further operations fail with ErrBusy.
func (c *Connection) do(ctx context.Context, name string, uuid protocol.UUID, op func(Characteristic) error) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return protocol.ErrNotConnected
	}
	ch, ok := c.characteristics[uuid]
	if !ok {
		return &protocol.CharacteristicError{UUID: uuid}
	}
	if c.pending != nil {
		select {
		case <-c.pending:
			c.pending = nil
		default:
			return &protocol.TransportError{Op: name, UUID: uuid, Err: ErrBusy}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		done <- op(ch)
	}()

	select {
	case err := <-done:
		if err != nil {
			return &protocol.TransportError{Op: name, UUID: uuid, Err: err}
		}
		return nil
	case <-ctx.Done():
		c.pending = finished
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &protocol.TransportError{Op: name, UUID: uuid, Err: protocol.ErrTimeout}
		}
		return ctx.Err()
	}
}

// Close disconnects from the sensor. Repeated calls are no-ops.
func (c *Connection) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	closeDevice(c.device)
}

func (c *Connection) String() string {
	return fmt.Sprintf("%s (%s)", c.beacon.LocalName, c.beacon.Address)
}
