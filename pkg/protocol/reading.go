package protocol

import (
	"encoding/binary"
	"fmt"
)

// ReadingSize is the length of the current-readings packet.
const ReadingSize = 9

// Reading is one snapshot of the sensor's current values.
type Reading struct {
	// units: ppm
	CO2 uint16 `json:"co2_ppm"`

	// units: degrees Fahrenheit
	TemperatureF float32 `json:"temperature_f"`

	// units: kPa
	PressureKPa float32 `json:"pressure_kpa"`

	// units: % relative humidity
	Humidity uint8 `json:"humidity_pct"`

	// units: %
	Battery uint8 `json:"battery_pct"`

	// Raw indicator colour code, not interpreted.
	StatusColor uint8 `json:"status_color"`
}

// DecodeReading decodes the current-readings packet. Extra trailing bytes are ignored.
func DecodeReading(data []byte) (Reading, error) {
	if len(data) < ReadingSize {
		return Reading{}, &MalformedPacketError{Packet: "current readings", Want: ReadingSize, Got: len(data)}
	}
	return Reading{
		CO2:          binary.LittleEndian.Uint16(data[0:2]),
		TemperatureF: ConvertTemperature(binary.LittleEndian.Uint16(data[2:4])),
		PressureKPa:  ConvertPressure(binary.LittleEndian.Uint16(data[4:6])),
		Humidity:     data[6],
		Battery:      data[7],
		StatusColor:  data[8],
	}, nil
}

func (r Reading) String() string {
	return fmt.Sprintf("CO2: %dppm, Temperature: %gF, Pressure: %gkPa, Humidity: %d%%, Battery: %d%%, Status Color: %d",
		r.CO2, r.TemperatureF, r.PressureKPa, r.Humidity, r.Battery, r.StatusColor)
}

// DecodeUint16 decodes a single little-endian u16 value, as used by the seconds-since-update,
// interval and total-readings characteristics.
func DecodeUint16(packet string, data []byte) (uint16, error) {
	if len(data) < 2 {
		return 0, &MalformedPacketError{Packet: packet, Want: 2, Got: len(data)}
	}
	return binary.LittleEndian.Uint16(data), nil
}
