/*
Package export serialises a downloaded measurement log.

Two formats are supported. [FormatJSON] writes a single object holding the interval and an array of
records. [FormatProto] writes a stream of length-delimited protobuf messages, one per record, with
the following schema:

	message Record {
	  int64  time_unix_ms  = 1;
	  float  temperature_f = 2;
	  uint32 humidity_pct  = 3;
	  float  pressure_kpa  = 4;
	  uint32 co2_ppm       = 5;
	}

Each message is prefixed by its length as a varint, matching protodelim.
*/
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/sensorlink/aranet4/pkg/history"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatProto Format = "proto"
)

// ParseFormat accepts a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatProto:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format '%s' (json|proto)", s)
}

// Write encodes readings to w in format f.
func Write(w io.Writer, f Format, readings *history.Readings) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, readings)
	case FormatProto:
		return WriteProto(w, readings)
	}
	return fmt.Errorf("unknown export format '%s'", f)
}

type document struct {
	IntervalSeconds int              `json:"interval_s"`
	Start           time.Time        `json:"start"`
	Records         []history.Record `json:"records"`
}

// WriteJSON writes readings as an indented JSON document.
func WriteJSON(w io.Writer, readings *history.Readings) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(document{
		IntervalSeconds: int(readings.Information.Interval / time.Second),
		Start:           readings.Information.Start.UTC(),
		Records:         readings.Slice(),
	})
}

const (
	fieldTime        protowire.Number = 1
	fieldTemperature protowire.Number = 2
	fieldHumidity    protowire.Number = 3
	fieldPressure    protowire.Number = 4
	fieldCO2         protowire.Number = 5
)

// WriteProto writes one length-delimited Record message per row.
func WriteProto(w io.Writer, readings *history.Readings) error {
	bw := bufio.NewWriter(w)
	for rec := range readings.Records() {
		msg := MarshalRecord(rec)
		if _, err := bw.Write(protowire.AppendVarint(nil, uint64(len(msg)))); err != nil {
			return err
		}
		if _, err := bw.Write(msg); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// MarshalRecord encodes one Record message.
func MarshalRecord(rec history.Record) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Time.UnixMilli()))
	b = protowire.AppendTag(b, fieldTemperature, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(rec.Temperature))
	b = protowire.AppendTag(b, fieldHumidity, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Humidity))
	b = protowire.AppendTag(b, fieldPressure, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(rec.Pressure))
	b = protowire.AppendTag(b, fieldCO2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.CO2))
	return b
}

// UnmarshalRecord decodes one Record message. Unknown fields are skipped.
func UnmarshalRecord(b []byte) (history.Record, error) {
	var rec history.Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return rec, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == fieldTime && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return rec, protowire.ParseError(n)
			}
			rec.Time = time.UnixMilli(int64(v))
			b = b[n:]
		case (num == fieldTemperature || num == fieldPressure) && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return rec, protowire.ParseError(n)
			}
			if num == fieldTemperature {
				rec.Temperature = math.Float32frombits(v)
			} else {
				rec.Pressure = math.Float32frombits(v)
			}
			b = b[n:]
		case (num == fieldHumidity || num == fieldCO2) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return rec, protowire.ParseError(n)
			}
			if num == fieldHumidity {
				rec.Humidity = uint8(v)
			} else {
				rec.CO2 = uint16(v)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return rec, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return rec, nil
}

// ReadProto decodes a stream written by WriteProto.
func ReadProto(data []byte) ([]history.Record, error) {
	var out []history.Record
	for len(data) > 0 {
		msg, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		rec, err := UnmarshalRecord(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
		data = data[n:]
	}
	return out, nil
}
