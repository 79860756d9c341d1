package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/sensorlink/aranet4/pkg/metrics"
	"github.com/sensorlink/aranet4/pkg/protocol"
	"github.com/sensorlink/aranet4/pkg/store"
)

type fakeSensor struct {
	reading protocol.Reading
	age     time.Duration
	err     error
	ageErr  error
	reads   int
}

func (f *fakeSensor) ReadCurrentValues(context.Context) (protocol.Reading, error) {
	f.reads++
	return f.reading, f.err
}

func (f *fakeSensor) LastUpdateTime(context.Context) (time.Duration, error) {
	return f.age, f.ageErr
}

type published struct {
	sensor string
	age    time.Duration
}

type fakePublisher struct {
	messages []published
	err      error
}

func (f *fakePublisher) PublishReading(sensor string, _ time.Time, _ protocol.Reading, age time.Duration) error {
	f.messages = append(f.messages, published{sensor, age})
	return f.err
}

var testReading = protocol.Reading{CO2: 420, TemperatureF: 68, PressureKPa: 101.3, Humidity: 45, Battery: 87, StatusColor: 1}

func newTestPoller(t *testing.T, s *fakeSensor) *poller {
	collector, err := metrics.New()
	require.NoError(t, err)
	return &poller{
		sensor:  s,
		id:      "AA:BB:CC:DD:EE:FF",
		metrics: collector,
		now:     func() time.Time { return time.Unix(1_700_000_000, 0) },
	}
}

func TestPollUpdatesSinks(t *testing.T) {
	p := newTestPoller(t, &fakeSensor{reading: testReading, age: 42 * time.Second})
	pub := &fakePublisher{}
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	p.publisher = pub
	p.store = db

	require.NoError(t, p.poll(context.Background()))

	require.Equal(t, []published{{"AA:BB:CC:DD:EE:FF", 42 * time.Second}}, pub.messages)
	snapshot, ok, err := db.LatestReading(context.Background(), p.id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, testReading, snapshot.Reading)
}

func TestPollWithoutAge(t *testing.T) {
	p := newTestPoller(t, &fakeSensor{reading: testReading, ageErr: &protocol.CharacteristicError{UUID: protocol.SecondsSinceUpdateUUID}})
	pub := &fakePublisher{}
	p.publisher = pub

	require.NoError(t, p.poll(context.Background()))
	require.Len(t, pub.messages, 1)
	require.Negative(t, pub.messages[0].age)
}

func TestPollSinkFailureIsNotFatal(t *testing.T) {
	p := newTestPoller(t, &fakeSensor{reading: testReading})
	p.publisher = &fakePublisher{err: errors.New("broker down")}
	require.NoError(t, p.poll(context.Background()))
}

func TestPollFailureCounted(t *testing.T) {
	p := newTestPoller(t, &fakeSensor{err: protocol.ErrTimeout})
	require.ErrorIs(t, p.poll(context.Background()), protocol.ErrTimeout)
	require.ErrorIs(t, p.poll(context.Background()), protocol.ErrTimeout)

	series, err := testutil.GatherAndCount(p.metrics.Registry(), "aranet4_co2_ppm")
	require.NoError(t, err)
	require.Zero(t, series)
}

func TestRunGivesUpAfterConsecutiveFailures(t *testing.T) {
	s := &fakeSensor{err: protocol.ErrTimeout}
	p := newTestPoller(t, s)

	err := p.run(context.Background(), time.Millisecond, time.Second)
	require.ErrorIs(t, err, errConnectionLost)
	require.Equal(t, maxConsecutiveFailures, s.reads)
}

func TestRunStopsWhenDisconnected(t *testing.T) {
	s := &fakeSensor{err: protocol.ErrNotConnected}
	p := newTestPoller(t, s)

	err := p.run(context.Background(), time.Millisecond, time.Second)
	require.ErrorIs(t, err, protocol.ErrNotConnected)
	require.Equal(t, 1, s.reads)
}

func TestRunStopsOnCancel(t *testing.T) {
	p := newTestPoller(t, &fakeSensor{reading: testReading})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.run(ctx, time.Millisecond, time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	series, err := testutil.GatherAndCount(p.metrics.Registry(), "aranet4_co2_ppm")
	require.NoError(t, err)
	require.Equal(t, 1, series)
}
