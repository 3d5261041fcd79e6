package tpms

// Plausibility bounds for decoded fields. Values outside these ranges
// are treated as garbage (signature collision or sensor glitch) and
// dropped from the reading.
const (
	MinPressureKPa  = 0
	MaxPressureKPa  = 1200
	MinTemperatureC = -40
	MaxTemperatureC = 100
)

// Reading is the normalized result of decoding one advertisement.
// Pointer fields are nil when the payload did not carry the value or
// the value failed its plausibility check.
type Reading struct {
	Format      FormatID `json:"format"`
	Pressure    *float64 `json:"pressure,omitempty"`    // kPa
	Temperature *float64 `json:"temperature,omitempty"` // °C
	Battery     *uint8   `json:"battery,omitempty"`     // percent
	Alarm       *bool    `json:"alarm,omitempty"`
	RSSI        int      `json:"rssi"` // dBm, passed through from the transport
}

func (r *Reading) setPressure(kpa float64) {
	if kpa < MinPressureKPa || kpa > MaxPressureKPa {
		return
	}
	r.Pressure = &kpa
}

func (r *Reading) setTemperature(c float64) {
	if c < MinTemperatureC || c > MaxTemperatureC {
		return
	}
	r.Temperature = &c
}

func (r *Reading) setBattery(pct uint8) {
	if pct > 100 {
		return
	}
	r.Battery = &pct
}

func (r *Reading) setAlarm(on bool) {
	r.Alarm = &on
}
