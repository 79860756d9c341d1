// Package history downloads and assembles the sensor's on-device measurement log.
//
// The log is stored as four independent channels (temperature, humidity, CO2 and pressure). Each
// channel is requested with a single write to the command characteristic and then streamed back as
// a sequence of pages read from the history characteristic. Every page carries a 10-byte header
// followed by packed little-endian samples; a header that declares zero samples ends the channel.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sensorlink/aranet4/internal/log"
	"github.com/sensorlink/aranet4/pkg/connector"
	"github.com/sensorlink/aranet4/pkg/protocol"
)

// DefaultPageTimeout bounds how long a single page read may take.
const DefaultPageTimeout = 10 * time.Second

// ShortPacketPolicy decides what a channel does with a page shorter than a header.
type ShortPacketPolicy int

const (
	// Fail aborts the pull with a *protocol.ProtocolError.
	Fail ShortPacketPolicy = iota
	// StopCleanly treats the page as the end of the channel.
	StopCleanly
)

func (p ShortPacketPolicy) String() string {
	if p == StopCleanly {
		return "stop"
	}
	return "fail"
}

// ChannelPolicy configures how one channel is pulled.
type ChannelPolicy struct {
	OnShortPacket ShortPacketPolicy

	// ReportsTiming channels keep their first header so that the record set can be timestamped.
	ReportsTiming bool
}

// DefaultPolicy returns the policy used for p when Options does not override it. Temperature is
// the canonical channel: it fails on short pages and supplies the timing information.
func DefaultPolicy(p protocol.Parameter) ChannelPolicy {
	if p == protocol.ParameterTemperature {
		return ChannelPolicy{OnShortPacket: Fail, ReportsTiming: true}
	}
	return ChannelPolicy{OnShortPacket: StopCleanly}
}

// Options tune a PagePuller. The zero value is usable.
type Options struct {
	// PageTimeout bounds each page read. Defaults to DefaultPageTimeout.
	PageTimeout time.Duration

	// Policies overrides DefaultPolicy per parameter.
	Policies map[protocol.Parameter]ChannelPolicy

	// Now is used to compute the start of the log window. Defaults to time.Now.
	Now func() time.Time
}

func (o *Options) policy(p protocol.Parameter) ChannelPolicy {
	if policy, ok := o.Policies[p]; ok {
		return policy
	}
	return DefaultPolicy(p)
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Puller retrieves one channel of the measurement log.
type Puller interface {
	Pull(ctx context.Context, parameter protocol.Parameter) (*Channel, error)
}

// PagePuller implements Puller by polling the history characteristic one page at a time.
type PagePuller struct {
	peripheral connector.Peripheral
	options    Options
}

// NewPagePuller returns a Puller that reads pages from p.
func NewPagePuller(p connector.Peripheral, options Options) *PagePuller {
	if options.PageTimeout <= 0 {
		options.PageTimeout = DefaultPageTimeout
	}
	return &PagePuller{peripheral: p, options: options}
}

// Pull requests parameter's channel starting at the first stored sample and reads pages until the
// sensor signals the end of the channel.
//
// Malformed or zero-count pages end the channel. Transport errors, deadline expiry and violations
// of the channel's ChannelPolicy are returned as errors.
func (p *PagePuller) Pull(ctx context.Context, parameter protocol.Parameter) (*Channel, error) {
	width := parameter.SampleWidth()
	if width == 0 {
		return nil, fmt.Errorf("history: invalid parameter %s", parameter)
	}
	for _, uuid := range []protocol.UUID{protocol.CommandUUID, protocol.HistoryReadingsUUID} {
		if !p.peripheral.HasCharacteristic(uuid) {
			return nil, &protocol.CharacteristicError{UUID: uuid}
		}
	}

	policy := p.options.policy(parameter)
	request := protocol.HistoryRequest{Parameter: parameter, FirstIndex: 1}
	if err := p.peripheral.Write(ctx, protocol.CommandUUID, request.Encode(), connector.WriteWithoutResponse); err != nil {
		return nil, err
	}

	channel := &Channel{Parameter: parameter}
	var first *protocol.HistoryHeader
	for {
		packet, err := p.readPage(ctx)
		if err != nil {
			return nil, err
		}

		if len(packet) < protocol.HistoryHeaderSize {
			if policy.OnShortPacket == Fail {
				return nil, &protocol.ProtocolError{
					Parameter: parameter,
					Reason:    fmt.Sprintf("page of %d bytes is shorter than its header", len(packet)),
				}
			}
			log.Debug("history: %s channel ended on a %d byte page", parameter, len(packet))
			break
		}

		header, ok := protocol.DecodeHistoryHeader(packet)
		if !ok {
			log.Debug("history: %s channel ended on an undecodable header %02x", parameter, packet[:protocol.HistoryHeaderSize])
			break
		}
		if header.NumMeasurements == 0 {
			break
		}
		if header.Parameter != parameter {
			log.Debug("history: %s channel received a page tagged %s", parameter, header.Parameter)
		}
		if first == nil {
			first = &header
		}

		end := min(protocol.HistoryHeaderSize+int(header.NumMeasurements)*width, len(packet))
		channel.append(packet[protocol.HistoryHeaderSize:end], width)
		channel.Pages++
	}

	if policy.ReportsTiming {
		if first == nil {
			return nil, &protocol.ProtocolError{Parameter: parameter, Reason: "no page header received"}
		}
		channel.Information = NewInformation(*first, p.options.now())
	}
	log.Debug("history: pulled %d %s samples in %d pages", len(channel.Samples), parameter, channel.Pages)
	return channel, nil
}

func (p *PagePuller) readPage(ctx context.Context) ([]byte, error) {
	pageCtx, cancel := context.WithTimeout(ctx, p.options.PageTimeout)
	defer cancel()

	packet, err := p.peripheral.Read(pageCtx, protocol.HistoryReadingsUUID)
	if err == nil {
		return packet, nil
	}
	// Only the page deadline maps to ErrTimeout; the caller's own deadline or cancellation is
	// returned unchanged.
	if ctx.Err() == nil && errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: history page after %s", protocol.ErrTimeout, p.options.PageTimeout)
	}
	return nil, err
}
