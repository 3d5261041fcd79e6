package tpms

// Advertisement is a single received BLE broadcast as delivered by the
// host transport: the vendor payloads plus the source address and
// signal strength. Manufacturer data is keyed by company ID with the
// two ID bytes already stripped; service data is keyed by the 16-bit
// service UUID.
type Advertisement struct {
	Addr             Addr
	RSSI             int
	LocalName        string
	ManufacturerData map[uint16][]byte
	ServiceData      map[uint16][]byte
}

// AdvHandler handles an advertisement together with its decoded reading.
type AdvHandler func(a Advertisement, r Reading)

// AdvFilter returns true if the advertisement matches specified condition.
type AdvFilter func(a Advertisement) bool
