package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sensorlink/aranet4/pkg/history"
	"github.com/sensorlink/aranet4/pkg/protocol"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "aranet.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestLatestReading(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LatestReading(ctx, "kitchen")
	require.NoError(t, err)
	require.False(t, ok)

	older := protocol.Reading{CO2: 410, TemperatureF: 68, PressureKPa: 101.3, Humidity: 45, Battery: 90, StatusColor: 1}
	newer := protocol.Reading{CO2: 1200, TemperatureF: 71.5, PressureKPa: 100.9, Humidity: 50, Battery: 89, StatusColor: 2}
	t0 := time.Unix(1_700_000_000, 0)
	require.NoError(t, s.SaveReading(ctx, "kitchen", t0, older))
	require.NoError(t, s.SaveReading(ctx, "kitchen", t0.Add(time.Minute), newer))
	require.NoError(t, s.SaveReading(ctx, "office", t0.Add(time.Hour), older))

	snap, ok, err := s.LatestReading(ctx, "kitchen")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, newer, snap.Reading)
	require.Equal(t, t0.Add(time.Minute).Unix(), snap.Time.Unix())
}

func TestSaveHistoryIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)
	info := history.Information{Interval: 5 * time.Minute, Start: start}

	first := history.Assemble([]float32{68, 69}, []uint8{40, 41}, []uint16{500, 510}, []float32{101.3, 101.4}, info)
	n, err := s.SaveHistory(ctx, "kitchen", first)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Overlaps the first download by one record.
	overlap := history.Assemble([]float32{69, 70}, []uint8{41, 42}, []uint16{510, 520}, []float32{101.4, 101.5},
		history.Information{Interval: 5 * time.Minute, Start: start.Add(5 * time.Minute)})
	n, err = s.SaveHistory(ctx, "kitchen", overlap)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	records, err := s.HistorySince(ctx, "kitchen", start.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, start.Add(5*time.Minute).Unix(), records[0].Time.Unix())
	require.Equal(t, uint16(520), records[1].CO2)
	require.Equal(t, float32(101.5), records[1].Pressure)
}

func TestSaveHistoryAcrossSecondBoundary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	temperature := []float32{68, 69, 70}
	humidity := []uint8{40, 41, 42}
	co2 := []uint16{500, 510, 520}
	pressure := []float32{101.3, 101.4, 101.5}

	// The last sample was logged at 990.5s and the sensor reports whole seconds since then. The
	// last sync takes its clock reading a second after the header arrived.
	syncs := []struct {
		now   time.Time
		since uint16
	}{
		{time.Unix(1000, 900_000_000), 10},
		{time.Unix(1001, 100_000_000), 10},
		{time.Unix(1001, 600_000_000), 11},
		{time.Unix(1002, 300_000_000), 10},
	}
	total := 0
	for i, sync := range syncs {
		h := protocol.HistoryHeader{
			Parameter:                protocol.ParameterTemperature,
			Interval:                 60,
			TimeSinceLastMeasurement: sync.since,
			NumMeasurements:          3,
		}
		readings := history.Assemble(temperature, humidity, co2, pressure, *history.NewInformation(h, sync.now))
		n, err := s.SaveHistory(ctx, "kitchen", readings)
		require.NoError(t, err)
		if i == 0 {
			require.Equal(t, 3, n)
		} else {
			require.Zero(t, n, "sync at %s", sync.now)
		}
		total += n
	}

	records, err := s.HistorySince(ctx, "kitchen", time.Unix(0, 0))
	require.NoError(t, err)
	require.Len(t, records, total)
}

func TestSaveHistoryKeepsShortIntervalsDistinct(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	info := history.Information{Interval: time.Second, Start: time.Unix(1_700_000_000, 0)}
	readings := history.Assemble([]float32{68, 69, 70}, []uint8{40, 41, 42}, []uint16{500, 510, 520}, []float32{101.3, 101.4, 101.5}, info)
	n, err := s.SaveHistory(ctx, "kitchen", readings)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	records, err := s.HistorySince(context.Background(), "none", time.Unix(0, 0))
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()
	dsn, err := buildDSN(filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	require.Equal(t, "file:"+filepath.Join(dir, "a.db")+"?_busy_timeout=5000&_journal_mode=WAL", dsn)

	dsn, err = buildDSN("file:" + filepath.Join(dir, "b.db") + "?cache=shared")
	require.NoError(t, err)
	require.Equal(t, "file:"+filepath.Join(dir, "b.db")+"?cache=shared&_busy_timeout=5000&_journal_mode=WAL", dsn)
}
