package protocol

import (
	"bytes"
	"testing"
	"time"
)

func TestDecodeHistoryHeader(t *testing.T) {
	packet := []byte{1, 10, 0, 20, 0, 30, 0, 40, 0, 50}
	h, ok := DecodeHistoryHeader(packet)
	if !ok {
		t.Fatalf("failed to decode header")
	}
	expected := HistoryHeader{
		Parameter:                ParameterTemperature,
		Interval:                 10,
		TotalMeasurements:        20,
		TimeSinceLastMeasurement: 30,
		FirstMeasureIndex:        40,
		NumMeasurements:          50,
	}
	if h != expected {
		t.Errorf("got %+v, expected %+v", h, expected)
	}
	if !bytes.Equal(h.Encode(), packet) {
		t.Errorf("header re-encodes as %x", h.Encode())
	}
}

func TestDecodeHistoryHeaderFailures(t *testing.T) {
	tests := map[string][]byte{
		"empty":       nil,
		"short":       {1, 10, 0, 20, 0, 30, 0, 40, 0},
		"zero tag":    {0, 10, 0, 20, 0, 30, 0, 40, 0, 50},
		"unknown tag": {9, 10, 0, 20, 0, 30, 0, 40, 0, 50},
	}
	for name, packet := range tests {
		if _, ok := DecodeHistoryHeader(packet); ok {
			t.Errorf("%s: expected decode failure", name)
		}
	}
}

func TestEncodeHistoryRequest(t *testing.T) {
	got := HistoryRequest{Parameter: ParameterTemperature, FirstIndex: 1}.Encode()
	if !bytes.Equal(got, []byte{0x61, 1, 1, 0}) {
		t.Errorf("got %x", got)
	}
	got = HistoryRequest{Parameter: ParameterCO2, FirstIndex: 0x0102}.Encode()
	if !bytes.Equal(got, []byte{0x61, 4, 2, 1}) {
		t.Errorf("got %x", got)
	}
}

func TestHistoryStartTime(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	h := HistoryHeader{Interval: 60, TimeSinceLastMeasurement: 30, NumMeasurements: 10, TotalMeasurements: 500}
	start, ok := h.StartTime(now)
	if !ok {
		t.Fatalf("expected a start time")
	}
	if expected := now.Add(-630 * time.Second); !start.Equal(expected) {
		t.Errorf("got %s, expected %s", start, expected)
	}
}

func TestHistoryStartTimeBeforeEpoch(t *testing.T) {
	now := time.Unix(100, 0)
	h := HistoryHeader{Interval: 65535, TimeSinceLastMeasurement: 65535, NumMeasurements: 255}
	if _, ok := h.StartTime(now); ok {
		t.Errorf("expected underflow to be reported")
	}
}
