package main

import (
	"context"
	"errors"
	"time"

	"github.com/sensorlink/aranet4/internal/log"
	"github.com/sensorlink/aranet4/pkg/metrics"
	"github.com/sensorlink/aranet4/pkg/protocol"
)

// maxConsecutiveFailures is the number of failed polls after which the connection is considered
// lost.
const maxConsecutiveFailures = 3

var errConnectionLost = errors.New("sensor stopped responding")

type currentReader interface {
	ReadCurrentValues(ctx context.Context) (protocol.Reading, error)
	LastUpdateTime(ctx context.Context) (time.Duration, error)
}

type readingPublisher interface {
	PublishReading(sensor string, t time.Time, r protocol.Reading, age time.Duration) error
}

type readingStore interface {
	SaveReading(ctx context.Context, sensor string, t time.Time, r protocol.Reading) error
}

// poller copies current readings from one sensor into the configured sinks. publisher and store
// are optional.
type poller struct {
	sensor    currentReader
	id        string
	metrics   *metrics.Collector
	publisher readingPublisher
	store     readingStore
	now       func() time.Time
}

// poll reads the sensor once. Sink failures are logged and do not fail the poll.
func (p *poller) poll(ctx context.Context) error {
	reading, err := p.sensor.ReadCurrentValues(ctx)
	if err != nil {
		p.metrics.ObserveError(p.id)
		return err
	}
	age, err := p.sensor.LastUpdateTime(ctx)
	if err != nil {
		log.Debug("Could not read time since update: %s", err)
		age = -1
	}
	now := p.now()
	log.Debug("%s: %s", p.id, reading)

	p.metrics.Observe(p.id, reading, max(age, 0))
	if p.publisher != nil {
		if err := p.publisher.PublishReading(p.id, now, reading, age); err != nil {
			log.Warning("Failed to publish reading: %s", err)
		}
	}
	if p.store != nil {
		if err := p.store.SaveReading(ctx, p.id, now, reading); err != nil {
			log.Warning("Failed to store reading: %s", err)
		}
	}
	return nil
}

// run polls every interval until ctx is done or the sensor stops responding.
func (p *poller) run(ctx context.Context, interval, timeout time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		pollCtx, cancel := context.WithTimeout(ctx, timeout)
		err := p.poll(pollCtx)
		cancel()
		switch {
		case err == nil:
			failures = 0
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, protocol.ErrNotConnected):
			return err
		default:
			failures++
			log.Warning("Poll %d/%d failed: %s", failures, maxConsecutiveFailures, err)
			if failures >= maxConsecutiveFailures {
				return errConnectionLost
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
