package protocol

import "fmt"

// Parameter selects one of the four logged measurement channels. The numeric value is the tag
// used on the wire.
type Parameter uint8

const (
	ParameterTemperature Parameter = 1
	ParameterHumidity    Parameter = 2
	ParameterPressure    Parameter = 3
	ParameterCO2         Parameter = 4
)

// HistoryOrder is the order in which channels are pulled from the device.
var HistoryOrder = []Parameter{
	ParameterTemperature,
	ParameterHumidity,
	ParameterCO2,
	ParameterPressure,
}

var parameterNames = map[Parameter]string{
	ParameterTemperature: "temperature",
	ParameterHumidity:    "humidity",
	ParameterPressure:    "pressure",
	ParameterCO2:         "co2",
}

func (p Parameter) Valid() bool {
	_, ok := parameterNames[p]
	return ok
}

// SampleWidth returns the byte width of one logged sample, or 0 for an invalid Parameter.
func (p Parameter) SampleWidth() int {
	switch p {
	case ParameterHumidity:
		return 1
	case ParameterTemperature, ParameterPressure, ParameterCO2:
		return 2
	}
	return 0
}

func (p Parameter) String() string {
	if name, ok := parameterNames[p]; ok {
		return name
	}
	return fmt.Sprintf("parameter(%d)", uint8(p))
}

// ConvertTemperature converts a raw sensor value (1/20 °C) to degrees Fahrenheit.
func ConvertTemperature(raw uint16) float32 {
	celsius := float32(raw) / 20
	// Explicit conversions keep each step rounded to float32 so results are reproducible.
	return float32(celsius*1.8) + 32
}

// ConvertPressure converts a raw sensor value (1/10 hPa) to kPa as reported by the device.
func ConvertPressure(raw uint16) float32 {
	return float32(raw) / 10
}
