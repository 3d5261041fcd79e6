package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bkbilly/tpms-ble/registry"
)

type metrics struct {
	pressure    *prometheus.GaugeVec
	temperature *prometheus.GaugeVec
	battery     *prometheus.GaugeVec
	rssi        *prometheus.GaugeVec
	alarm       *prometheus.GaugeVec
	decodes     *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		pressure: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tpms_pressure_kilopascals",
			Help: "Tire pressure as last reported by the sensor.",
		}, []string{"addr", "name"}),
		temperature: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tpms_temperature_celsius",
			Help: "Tire temperature as last reported by the sensor.",
		}, []string{"addr", "name"}),
		battery: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tpms_battery_percent",
			Help: "Sensor battery level.",
		}, []string{"addr", "name"}),
		rssi: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tpms_rssi_dbm",
			Help: "Signal strength of the last received advertisement.",
		}, []string{"addr", "name"}),
		alarm: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tpms_alarm",
			Help: "1 when the sensor reports its alarm flag.",
		}, []string{"addr", "name"}),
		decodes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tpms_decodes_total",
			Help: "Advertisements processed, by outcome.",
		}, []string{"result"}),
	}
}

// observe updates the per-device gauges. Series are keyed by the full
// address; the short-address name is informational only, two sensors
// can share it.
func (m *metrics) observe(dev registry.Device) {
	r := dev.Reading
	if r.Pressure != nil {
		m.pressure.WithLabelValues(dev.Addr, dev.Name).Set(*r.Pressure)
	}
	if r.Temperature != nil {
		m.temperature.WithLabelValues(dev.Addr, dev.Name).Set(*r.Temperature)
	}
	if r.Battery != nil {
		m.battery.WithLabelValues(dev.Addr, dev.Name).Set(float64(*r.Battery))
	}
	if r.Alarm != nil {
		v := 0.0
		if *r.Alarm {
			v = 1
		}
		m.alarm.WithLabelValues(dev.Addr, dev.Name).Set(v)
	}
	m.rssi.WithLabelValues(dev.Addr, dev.Name).Set(float64(r.RSSI))
}
