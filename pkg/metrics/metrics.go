// Package metrics exposes sensor readings as Prometheus gauges.
package metrics

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sensorlink/aranet4/pkg/protocol"
)

const namespace = "aranet4"

// Collector holds one gauge per measurement, labelled by sensor.
type Collector struct {
	registry *prometheus.Registry

	co2         *prometheus.GaugeVec
	temperature *prometheus.GaugeVec
	pressure    *prometheus.GaugeVec
	humidity    *prometheus.GaugeVec
	battery     *prometheus.GaugeVec
	statusColor *prometheus.GaugeVec
	age         *prometheus.GaugeVec
	polls       *prometheus.CounterVec
}

func gauge(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, []string{"sensor"})
}

// New creates a Collector registered on its own registry.
func New() (*Collector, error) {
	c := &Collector{
		registry:    prometheus.NewRegistry(),
		co2:         gauge("co2_ppm", "CO2 concentration in parts per million."),
		temperature: gauge("temperature_fahrenheit", "Air temperature in degrees Fahrenheit."),
		pressure:    gauge("pressure_kilopascals", "Atmospheric pressure in kPa."),
		humidity:    gauge("humidity_percent", "Relative humidity."),
		battery:     gauge("battery_percent", "Remaining battery charge."),
		statusColor: gauge("status_color", "Raw status indicator colour code."),
		age:         gauge("seconds_since_update", "Age of the latest measurement when it was read."),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Sensor polls by result.",
		}, []string{"sensor", "result"}),
	}
	for _, collector := range []prometheus.Collector{
		c.co2, c.temperature, c.pressure, c.humidity, c.battery, c.statusColor, c.age, c.polls,
	} {
		if err := c.registry.Register(collector); err != nil {
			return nil, errors.Wrap(err, "register prometheus metric")
		}
	}
	return c, nil
}

// Observe records a successful poll of sensor.
func (c *Collector) Observe(sensor string, r protocol.Reading, age time.Duration) {
	c.co2.WithLabelValues(sensor).Set(float64(r.CO2))
	c.temperature.WithLabelValues(sensor).Set(float64(r.TemperatureF))
	c.pressure.WithLabelValues(sensor).Set(float64(r.PressureKPa))
	c.humidity.WithLabelValues(sensor).Set(float64(r.Humidity))
	c.battery.WithLabelValues(sensor).Set(float64(r.Battery))
	c.statusColor.WithLabelValues(sensor).Set(float64(r.StatusColor))
	c.age.WithLabelValues(sensor).Set(age.Seconds())
	c.polls.WithLabelValues(sensor, "ok").Inc()
}

// ObserveError records a failed poll of sensor.
func (c *Collector) ObserveError(sensor string) {
	c.polls.WithLabelValues(sensor, "error").Inc()
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests and for callers that add their own collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
