package protocol

import "strings"

// UUID is a 128-bit GATT identifier in canonical lower-case string form.
type UUID string

// Aranet4 proprietary service.
const (
	ServiceUUID            UUID = "f0cd1400-95da-4f4b-9ac8-aa55d312af0c"
	CurrentReadingsUUID    UUID = "f0cd1503-95da-4f4b-9ac8-aa55d312af0c"
	IntervalUUID           UUID = "f0cd2002-95da-4f4b-9ac8-aa55d312af0c"
	SecondsSinceUpdateUUID UUID = "f0cd2004-95da-4f4b-9ac8-aa55d312af0c"
	TotalReadingsUUID      UUID = "f0cd2001-95da-4f4b-9ac8-aa55d312af0c"
	HistoryReadingsUUID    UUID = "f0cd2005-95da-4f4b-9ac8-aa55d312af0c"
	CommandUUID            UUID = "f0cd1402-95da-4f4b-9ac8-aa55d312af0c"
)

// Standard Bluetooth SIG services used for device information.
const (
	GenericAccessServiceUUID     UUID = "00001800-0000-1000-8000-00805f9b34fb"
	DeviceNameUUID               UUID = "00002a00-0000-1000-8000-00805f9b34fb"
	DeviceInformationServiceUUID UUID = "0000180a-0000-1000-8000-00805f9b34fb"
	ManufacturerNameUUID         UUID = "00002a29-0000-1000-8000-00805f9b34fb"
	ModelNumberUUID              UUID = "00002a24-0000-1000-8000-00805f9b34fb"
	SerialNumberUUID             UUID = "00002a25-0000-1000-8000-00805f9b34fb"
	HardwareRevisionUUID         UUID = "00002a27-0000-1000-8000-00805f9b34fb"
	SoftwareRevisionUUID         UUID = "00002a28-0000-1000-8000-00805f9b34fb"
	BatteryServiceUUID           UUID = "0000180f-0000-1000-8000-00805f9b34fb"
	BatteryLevelUUID             UUID = "00002a19-0000-1000-8000-00805f9b34fb"
)

// Services lists every service a connection discovers. Only ServiceUUID is required.
var Services = []UUID{
	ServiceUUID,
	GenericAccessServiceUUID,
	DeviceInformationServiceUUID,
	BatteryServiceUUID,
}

// Capability names a logical sensor operation.
type Capability int

const (
	CapabilityCurrentReadings Capability = iota + 1
	CapabilitySecondsSinceUpdate
	CapabilityCommand
	CapabilityHistoryReadings
	CapabilityInterval
	CapabilityTotalReadings
	CapabilityDeviceName
	CapabilityManufacturerName
	CapabilityModelNumber
	CapabilitySerialNumber
	CapabilityHardwareRevision
	CapabilitySoftwareRevision
	CapabilityBatteryLevel
)

var capabilities = map[Capability]UUID{
	CapabilityCurrentReadings:    CurrentReadingsUUID,
	CapabilitySecondsSinceUpdate: SecondsSinceUpdateUUID,
	CapabilityCommand:            CommandUUID,
	CapabilityHistoryReadings:    HistoryReadingsUUID,
	CapabilityInterval:           IntervalUUID,
	CapabilityTotalReadings:      TotalReadingsUUID,
	CapabilityDeviceName:         DeviceNameUUID,
	CapabilityManufacturerName:   ManufacturerNameUUID,
	CapabilityModelNumber:        ModelNumberUUID,
	CapabilitySerialNumber:       SerialNumberUUID,
	CapabilityHardwareRevision:   HardwareRevisionUUID,
	CapabilitySoftwareRevision:   SoftwareRevisionUUID,
	CapabilityBatteryLevel:       BatteryLevelUUID,
}

var uuidNames = map[UUID]string{
	ServiceUUID:                  "aranet service",
	CurrentReadingsUUID:          "current readings",
	IntervalUUID:                 "interval",
	SecondsSinceUpdateUUID:       "seconds since update",
	TotalReadingsUUID:            "total readings",
	HistoryReadingsUUID:          "history readings",
	CommandUUID:                  "command",
	GenericAccessServiceUUID:     "generic access service",
	DeviceNameUUID:               "device name",
	DeviceInformationServiceUUID: "device information service",
	ManufacturerNameUUID:         "manufacturer name",
	ModelNumberUUID:              "model number",
	SerialNumberUUID:             "serial number",
	HardwareRevisionUUID:         "hardware revision",
	SoftwareRevisionUUID:         "software revision",
	BatteryServiceUUID:           "battery service",
	BatteryLevelUUID:             "battery level",
}

// UUID returns the characteristic that implements c.
func (c Capability) UUID() (UUID, bool) {
	u, ok := capabilities[c]
	return u, ok
}

func (c Capability) String() string {
	if u, ok := capabilities[c]; ok {
		return uuidNames[u]
	}
	return "unknown capability"
}

// NormalizeUUID returns u in the canonical lower-case form used as a registry key.
func NormalizeUUID(u string) UUID {
	return UUID(strings.ToLower(strings.TrimSpace(u)))
}

// Name returns a human readable label, or the UUID itself if it is not in the registry.
func (u UUID) Name() string {
	if name, ok := uuidNames[u]; ok {
		return name
	}
	return string(u)
}

func (u UUID) String() string {
	return string(u)
}
