// Package sensor exposes the measurements of a connected Aranet4 over its GATT characteristics.
package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/sensorlink/aranet4/internal/log"
	"github.com/sensorlink/aranet4/pkg/connector"
	"github.com/sensorlink/aranet4/pkg/history"
	"github.com/sensorlink/aranet4/pkg/protocol"
)

// DefaultReadTimeout bounds single characteristic reads when the caller's context has no deadline.
const DefaultReadTimeout = 10 * time.Second

// Options configure a Sensor. A nil *Options selects defaults.
type Options struct {
	// ReadTimeout bounds each non-history characteristic read.
	ReadTimeout time.Duration

	// PageTimeout and Policies are passed to the history.PagePuller.
	PageTimeout time.Duration
	Policies    map[protocol.Parameter]ChannelPolicy

	// Puller replaces the default page puller.
	Puller history.Puller
}

// ChannelPolicy is re-exported so callers can override history behaviour without importing the
// history package.
type ChannelPolicy = history.ChannelPolicy

// A Sensor represents one connected Aranet4.
type Sensor struct {
	peripheral  connector.Peripheral
	puller      history.Puller
	readTimeout time.Duration
}

// New creates a Sensor that talks to p.
func New(p connector.Peripheral, options *Options) *Sensor {
	if options == nil {
		options = &Options{}
	}
	s := &Sensor{
		peripheral:  p,
		puller:      options.Puller,
		readTimeout: options.ReadTimeout,
	}
	if s.readTimeout <= 0 {
		s.readTimeout = DefaultReadTimeout
	}
	if s.puller == nil {
		s.puller = history.NewPagePuller(p, history.Options{
			PageTimeout: options.PageTimeout,
			Policies:    options.Policies,
		})
	}
	return s
}

func (s *Sensor) read(ctx context.Context, capability protocol.Capability) ([]byte, error) {
	uuid, ok := capability.UUID()
	if !ok || !s.peripheral.HasCharacteristic(uuid) {
		return nil, &protocol.CharacteristicError{UUID: uuid}
	}
	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()
	return s.peripheral.Read(ctx, uuid)
}

func (s *Sensor) readUint16(ctx context.Context, capability protocol.Capability) (uint16, error) {
	data, err := s.read(ctx, capability)
	if err != nil {
		return 0, err
	}
	return protocol.DecodeUint16(capability.String(), data)
}

// ReadCurrentValues returns the sensor's latest measurement.
func (s *Sensor) ReadCurrentValues(ctx context.Context) (protocol.Reading, error) {
	data, err := s.read(ctx, protocol.CapabilityCurrentReadings)
	if err != nil {
		return protocol.Reading{}, err
	}
	return protocol.DecodeReading(data)
}

// LastUpdateTime returns how long ago the sensor took its latest measurement.
func (s *Sensor) LastUpdateTime(ctx context.Context) (time.Duration, error) {
	seconds, err := s.readUint16(ctx, protocol.CapabilitySecondsSinceUpdate)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

// Interval returns the configured measurement interval.
func (s *Sensor) Interval(ctx context.Context) (time.Duration, error) {
	seconds, err := s.readUint16(ctx, protocol.CapabilityInterval)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

// TotalReadings returns the number of samples stored in the on-device log.
func (s *Sensor) TotalReadings(ctx context.Context) (int, error) {
	total, err := s.readUint16(ctx, protocol.CapabilityTotalReadings)
	return int(total), err
}

// HistoricalData downloads the on-device log and returns it as time-aligned records.
//
// Channels are pulled one after another: temperature, humidity, CO2, pressure. Both history
// characteristics must be present; otherwise no I/O is performed.
func (s *Sensor) HistoricalData(ctx context.Context) (*history.Readings, error) {
	for _, capability := range []protocol.Capability{protocol.CapabilityCommand, protocol.CapabilityHistoryReadings} {
		uuid, _ := capability.UUID()
		if !s.peripheral.HasCharacteristic(uuid) {
			return nil, &protocol.CharacteristicError{UUID: uuid}
		}
	}

	channels := make(map[protocol.Parameter]*history.Channel, len(protocol.HistoryOrder))
	for _, parameter := range protocol.HistoryOrder {
		channel, err := s.puller.Pull(ctx, parameter)
		if err != nil {
			return nil, fmt.Errorf("pulling %s history: %w", parameter, err)
		}
		channels[parameter] = channel
	}

	temperature := channels[protocol.ParameterTemperature]
	if temperature.Information == nil {
		return nil, &protocol.ProtocolError{Parameter: protocol.ParameterTemperature, Reason: "no timing information"}
	}
	readings := history.Assemble(
		temperature.Temperature(),
		channels[protocol.ParameterHumidity].Humidity(),
		channels[protocol.ParameterCO2].CO2(),
		channels[protocol.ParameterPressure].Pressure(),
		*temperature.Information,
	)
	log.Info("Downloaded %d history records starting %s", readings.Len(), readings.Information.Start.Format(time.RFC3339))
	return readings, nil
}
