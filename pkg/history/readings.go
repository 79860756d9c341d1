package history

import (
	"encoding/binary"
	"iter"
	"time"

	"github.com/sensorlink/aranet4/pkg/protocol"
)

// Channel holds the raw samples of one parameter in the order the sensor sent them.
type Channel struct {
	Parameter protocol.Parameter
	Samples   []uint16

	// Information is set only for channels whose policy reports timing.
	Information *Information

	// Pages counts the non-terminal pages that were decoded.
	Pages int
}

func (c *Channel) append(data []byte, width int) {
	for len(data) >= width {
		if width == 1 {
			c.Samples = append(c.Samples, uint16(data[0]))
		} else {
			c.Samples = append(c.Samples, binary.LittleEndian.Uint16(data))
		}
		data = data[width:]
	}
}

// Temperature returns the samples converted to degrees Fahrenheit.
func (c *Channel) Temperature() []float32 {
	out := make([]float32, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = protocol.ConvertTemperature(s)
	}
	return out
}

// Pressure returns the samples converted to kPa.
func (c *Channel) Pressure() []float32 {
	out := make([]float32, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = protocol.ConvertPressure(s)
	}
	return out
}

func (c *Channel) Humidity() []uint8 {
	out := make([]uint8, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = uint8(s)
	}
	return out
}

func (c *Channel) CO2() []uint16 {
	out := make([]uint16, len(c.Samples))
	copy(out, c.Samples)
	return out
}

// Information describes the time axis of the log.
type Information struct {
	Interval time.Duration `json:"interval"`
	Start    time.Time     `json:"start"`
}

// NewInformation derives timing from the first page header of the canonical channel. The start is
// approximated from that page's sample count rather than the total number of stored samples. If
// the approximation would predate the Unix epoch, now is used instead. The start is rounded to
// whole seconds, the resolution of the header.
func NewInformation(first protocol.HistoryHeader, now time.Time) *Information {
	start, ok := first.StartTime(now)
	if !ok {
		start = now
	}
	return &Information{Interval: first.IntervalDuration(), Start: start.Round(time.Second)}
}

// Readings is the assembled measurement log. No channel is longer than Temperature.
type Readings struct {
	Information Information
	Temperature []float32
	Humidity    []uint8
	CO2         []uint16
	Pressure    []float32
}

// Record is one time-aligned row of the log.
type Record struct {
	Time        time.Time `json:"time"`
	Temperature float32   `json:"temperature_f"`
	Humidity    uint8     `json:"humidity_pct"`
	Pressure    float32   `json:"pressure_kpa"`
	CO2         uint16    `json:"co2_ppm"`
}

// Assemble truncates humidity, co2 and pressure to the length of temperature. Shorter channels are
// kept as they are.
func Assemble(temperature []float32, humidity []uint8, co2 []uint16, pressure []float32, info Information) *Readings {
	n := len(temperature)
	return &Readings{
		Information: info,
		Temperature: temperature,
		Humidity:    humidity[:min(n, len(humidity))],
		CO2:         co2[:min(n, len(co2))],
		Pressure:    pressure[:min(n, len(pressure))],
	}
}

// Len returns the number of records, which is always the number of temperature samples.
func (r *Readings) Len() int {
	return len(r.Temperature)
}

// Record returns row i. Values missing from a shorter channel are zero.
func (r *Readings) Record(i int) Record {
	rec := Record{
		Time:        r.Information.Start.Add(time.Duration(i) * r.Information.Interval),
		Temperature: r.Temperature[i],
	}
	if i < len(r.Humidity) {
		rec.Humidity = r.Humidity[i]
	}
	if i < len(r.CO2) {
		rec.CO2 = r.CO2[i]
	}
	if i < len(r.Pressure) {
		rec.Pressure = r.Pressure[i]
	}
	return rec
}

// Records iterates over every row in order. The sequence can be ranged over more than once.
func (r *Readings) Records() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for i := range r.Len() {
			if !yield(r.Record(i)) {
				return
			}
		}
	}
}

// Slice collects Records into a slice.
func (r *Readings) Slice() []Record {
	out := make([]Record, 0, r.Len())
	for rec := range r.Records() {
		out = append(out, rec)
	}
	return out
}
