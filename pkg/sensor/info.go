package sensor

import (
	"context"
	"fmt"
	"strings"

	"github.com/sensorlink/aranet4/pkg/protocol"
)

// DeviceInfo collects the identification strings exposed through the standard GATT services.
// Fields the sensor does not expose are left empty.
type DeviceInfo struct {
	Name             string `json:"name,omitempty"`
	Manufacturer     string `json:"manufacturer,omitempty"`
	Model            string `json:"model,omitempty"`
	Serial           string `json:"serial,omitempty"`
	HardwareRevision string `json:"hardware_revision,omitempty"`
	SoftwareRevision string `json:"software_revision,omitempty"`

	// Battery is nil if the battery service is absent.
	Battery *uint8 `json:"battery_pct,omitempty"`
}

func (d *DeviceInfo) String() string {
	var b strings.Builder
	fields := []struct{ label, value string }{
		{"Name", d.Name},
		{"Manufacturer", d.Manufacturer},
		{"Model", d.Model},
		{"Serial", d.Serial},
		{"Hardware revision", d.HardwareRevision},
		{"Software revision", d.SoftwareRevision},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.label, f.value)
		}
	}
	if d.Battery != nil {
		fmt.Fprintf(&b, "Battery: %d%%\n", *d.Battery)
	}
	return b.String()
}

// DeviceInfo reads whichever identification characteristics the sensor exposes.
func (s *Sensor) DeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	info := &DeviceInfo{}
	strs := []struct {
		capability protocol.Capability
		dst        *string
	}{
		{protocol.CapabilityDeviceName, &info.Name},
		{protocol.CapabilityManufacturerName, &info.Manufacturer},
		{protocol.CapabilityModelNumber, &info.Model},
		{protocol.CapabilitySerialNumber, &info.Serial},
		{protocol.CapabilityHardwareRevision, &info.HardwareRevision},
		{protocol.CapabilitySoftwareRevision, &info.SoftwareRevision},
	}
	for _, field := range strs {
		if !s.has(field.capability) {
			continue
		}
		data, err := s.read(ctx, field.capability)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", field.capability, err)
		}
		*field.dst = strings.TrimRight(string(data), "\x00")
	}

	if s.has(protocol.CapabilityBatteryLevel) {
		data, err := s.read(ctx, protocol.CapabilityBatteryLevel)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", protocol.CapabilityBatteryLevel, err)
		}
		if len(data) < 1 {
			return nil, &protocol.MalformedPacketError{Packet: "battery level", Want: 1, Got: 0}
		}
		level := data[0]
		info.Battery = &level
	}
	return info, nil
}

func (s *Sensor) has(capability protocol.Capability) bool {
	uuid, ok := capability.UUID()
	return ok && s.peripheral.HasCharacteristic(uuid)
}
