package history

import (
	"testing"
	"time"

	"github.com/sensorlink/aranet4/pkg/protocol"
)

func TestAssembleTruncatesToTemperature(t *testing.T) {
	info := Information{Interval: time.Minute, Start: fixedNow}
	r := Assemble(
		[]float32{68, 69},
		[]uint8{40, 41, 42, 43},
		[]uint16{500, 510, 520},
		[]float32{101.3, 101.4, 101.5},
		info,
	)
	if r.Len() != 2 || len(r.Humidity) != 2 || len(r.CO2) != 2 || len(r.Pressure) != 2 {
		t.Fatalf("unexpected lengths %+v", r)
	}
	records := r.Slice()
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	expected := Record{Time: fixedNow.Add(time.Minute), Temperature: 69, Humidity: 41, Pressure: 101.4, CO2: 510}
	if records[1] != expected {
		t.Errorf("got %+v, expected %+v", records[1], expected)
	}
}

func TestRecordCountMatchesTemperature(t *testing.T) {
	for temps := 0; temps < 5; temps++ {
		for others := 0; others < 5; others++ {
			r := Assemble(
				make([]float32, temps),
				make([]uint8, others),
				make([]uint16, others),
				make([]float32, others),
				Information{},
			)
			count := 0
			for range r.Records() {
				count++
			}
			if count != temps {
				t.Errorf("temps=%d others=%d: got %d records", temps, others, count)
			}
		}
	}
}

func TestRecordsZeroFillShortChannels(t *testing.T) {
	r := Assemble([]float32{68, 69, 70}, []uint8{40}, nil, []float32{101.3, 101.4}, Information{})
	records := r.Slice()
	last := records[2]
	if last.Temperature != 70 || last.Humidity != 0 || last.CO2 != 0 || last.Pressure != 0 {
		t.Errorf("unexpected record %+v", last)
	}
	if records[1].Pressure != 101.4 || records[0].Humidity != 40 {
		t.Errorf("unexpected records %+v", records)
	}
}

func TestRecordsRestartable(t *testing.T) {
	r := Assemble([]float32{68, 69}, nil, nil, nil, Information{})
	for pass := 0; pass < 2; pass++ {
		var got []float32
		for rec := range r.Records() {
			got = append(got, rec.Temperature)
		}
		if len(got) != 2 {
			t.Errorf("pass %d yielded %v", pass, got)
		}
	}
	for range r.Records() {
		break
	}
}

func TestNewInformationFallsBackToNow(t *testing.T) {
	now := time.Unix(10, 0)
	h := protocol.HistoryHeader{Interval: 300, TimeSinceLastMeasurement: 60, NumMeasurements: 200}
	info := NewInformation(h, now)
	if !info.Start.Equal(now) {
		t.Errorf("expected fallback to now, got %s", info.Start)
	}
	if info.Interval != 5*time.Minute {
		t.Errorf("unexpected interval %s", info.Interval)
	}
}

func TestNewInformationRoundsToSeconds(t *testing.T) {
	h := protocol.HistoryHeader{Interval: 60, TimeSinceLastMeasurement: 10, NumMeasurements: 3}
	before := NewInformation(h, time.Unix(1000, 900_000_000))
	after := NewInformation(h, time.Unix(1001, 100_000_000))
	if !before.Start.Equal(time.Unix(811, 0)) || !after.Start.Equal(before.Start) {
		t.Errorf("got starts %s and %s, expected both at 811s", before.Start, after.Start)
	}
}
