// Package publish forwards sensor readings to an MQTT broker as JSON.
//
// Topics:
//
//	aranet4/<sensor>/telemetry  one message per current reading
//	aranet4/<sensor>/history    one message per downloaded log
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sensorlink/aranet4/internal/log"
	"github.com/sensorlink/aranet4/pkg/history"
	"github.com/sensorlink/aranet4/pkg/protocol"
)

const (
	topicPrefix    = "aranet4"
	publishTimeout = 5 * time.Second
	qos            = 1
)

// Options configure the broker connection.
type Options struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Username string
	Password string
}

// Telemetry is the payload published for a current reading.
type Telemetry struct {
	Sensor    string    `json:"sensor"`
	Timestamp time.Time `json:"timestamp"`
	protocol.Reading
	SecondsSinceUpdate *int `json:"seconds_since_update,omitempty"`
}

// HistoryBatch is the payload published for a downloaded log.
type HistoryBatch struct {
	Sensor   string           `json:"sensor"`
	Interval int              `json:"interval_s"`
	Records  []history.Record `json:"records"`
}

// Publisher sends readings to MQTT.
type Publisher struct {
	client mqtt.Client

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New configures a Publisher. Call Connect before publishing.
func New(o Options) *Publisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Info("MQTT connected to %s", o.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warning("MQTT connection lost: %s", err)
	})
	return newPublisher(mqtt.NewClient(opts))
}

func newPublisher(client mqtt.Client) *Publisher {
	return &Publisher{client: client, stopCh: make(chan struct{})}
}

// Connect waits for the initial broker connection, honouring ctx and Disconnect. If the
// connection fails the publisher is disconnected, stopping background retries.
func (p *Publisher) Connect(ctx context.Context) error {
	err := p.connect(ctx)
	if err != nil {
		p.Disconnect()
	}
	return err
}

func (p *Publisher) connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return fmt.Errorf("publisher stopped")
	default:
	}
	if p.client.IsConnected() {
		return nil
	}

	token := p.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return fmt.Errorf("publisher stopped")
		default:
		}
	}
}

// PublishReading publishes r for sensor. A negative age is omitted from the payload.
func (p *Publisher) PublishReading(sensor string, t time.Time, r protocol.Reading, age time.Duration) error {
	payload := Telemetry{Sensor: sensor, Timestamp: t.UTC(), Reading: r}
	if age >= 0 {
		seconds := int(age / time.Second)
		payload.SecondsSinceUpdate = &seconds
	}
	return p.publish(fmt.Sprintf("%s/%s/telemetry", topicPrefix, sensor), payload, false)
}

// PublishHistory publishes every record of readings in one retained message.
func (p *Publisher) PublishHistory(sensor string, readings *history.Readings) error {
	payload := HistoryBatch{
		Sensor:   sensor,
		Interval: int(readings.Information.Interval / time.Second),
		Records:  readings.Slice(),
	}
	return p.publish(fmt.Sprintf("%s/%s/history", topicPrefix, sensor), payload, true)
}

func (p *Publisher) publish(topic string, payload any, retained bool) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	token := p.client.Publish(topic, qos, retained, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	log.Debug("Published %d bytes to %s", len(data), topic)
	return nil
}

// Disconnect closes the broker connection. Repeated calls are safe.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.client.Disconnect(250)
}
