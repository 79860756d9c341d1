package protocol

import (
	"encoding/binary"
	"time"
)

const (
	// HistoryHeaderSize is the length of the header that prefixes every history page.
	HistoryHeaderSize = 10

	historyCommand = 0x61
)

// HistoryRequest asks the sensor to stream one channel starting at FirstIndex (1-based).
type HistoryRequest struct {
	Parameter  Parameter
	FirstIndex uint16
}

// Encode returns the command opcode followed by the request fields.
func (r HistoryRequest) Encode() []byte {
	out := make([]byte, 4)
	out[0] = historyCommand
	out[1] = uint8(r.Parameter)
	binary.LittleEndian.PutUint16(out[2:], r.FirstIndex)
	return out
}

// HistoryHeader is the metadata prefixed to each page of a history channel. A NumMeasurements of
// zero marks the end of the channel.
type HistoryHeader struct {
	Parameter                Parameter
	Interval                 uint16 // seconds between samples
	TotalMeasurements        uint16
	TimeSinceLastMeasurement uint16 // seconds
	FirstMeasureIndex        uint16
	NumMeasurements          uint8
}

// DecodeHistoryHeader decodes the first HistoryHeaderSize bytes of data. It returns false if data
// is too short or the parameter tag is unknown.
func DecodeHistoryHeader(data []byte) (HistoryHeader, bool) {
	if len(data) < HistoryHeaderSize {
		return HistoryHeader{}, false
	}
	h := HistoryHeader{
		Parameter:                Parameter(data[0]),
		Interval:                 binary.LittleEndian.Uint16(data[1:3]),
		TotalMeasurements:        binary.LittleEndian.Uint16(data[3:5]),
		TimeSinceLastMeasurement: binary.LittleEndian.Uint16(data[5:7]),
		FirstMeasureIndex:        binary.LittleEndian.Uint16(data[7:9]),
		NumMeasurements:          data[9],
	}
	if !h.Parameter.Valid() {
		return HistoryHeader{}, false
	}
	return h, true
}

// Encode returns the wire form of h.
func (h HistoryHeader) Encode() []byte {
	out := make([]byte, HistoryHeaderSize)
	out[0] = uint8(h.Parameter)
	binary.LittleEndian.PutUint16(out[1:3], h.Interval)
	binary.LittleEndian.PutUint16(out[3:5], h.TotalMeasurements)
	binary.LittleEndian.PutUint16(out[5:7], h.TimeSinceLastMeasurement)
	binary.LittleEndian.PutUint16(out[7:9], h.FirstMeasureIndex)
	out[9] = h.NumMeasurements
	return out
}

// IntervalDuration returns the logging interval.
func (h HistoryHeader) IntervalDuration() time.Duration {
	return time.Duration(h.Interval) * time.Second
}

// StartTime estimates the time of the first sample as
// now - TimeSinceLastMeasurement - Interval*NumMeasurements.
//
// Only this page's sample count is used, not TotalMeasurements. It returns false if the estimate
// would predate the Unix epoch.
func (h HistoryHeader) StartTime(now time.Time) (time.Time, bool) {
	window := int64(h.TimeSinceLastMeasurement) + int64(h.Interval)*int64(h.NumMeasurements)
	start := now.Add(-time.Duration(window) * time.Second)
	if start.Before(time.Unix(0, 0)) {
		return time.Time{}, false
	}
	return start, true
}
