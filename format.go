package tpms

// FormatID identifies a supported vendor packet format.
type FormatID string

const (
	FormatTypeA FormatID = "type_a"
	FormatTypeB FormatID = "type_b"
	FormatTypeC FormatID = "type_c"
)

// carrier is the advertising structure a signature inspects.
type carrier int

const (
	carrierManufacturer carrier = iota
	carrierService
)

// format binds a signature (carrier, company ID or service UUID, exact
// payload length) to the fixed-offset field extractor for that vendor.
type format struct {
	id      FormatID
	carrier carrier
	key     uint16
	length  int
	decode  func(data []byte, r *Reading) error
}

// formats is the dispatch table, in priority order. The first matching
// signature wins; signatures are disjoint on (carrier, key, length) so
// order only matters if a future format overlaps an existing one.
var formats = []format{typeA, typeB, typeC}

// match returns the candidate payload for this format's signature, or
// false if the advertisement doesn't carry it.
func (f format) match(a Advertisement) ([]byte, bool) {
	var data []byte
	var ok bool
	switch f.carrier {
	case carrierManufacturer:
		data, ok = a.ManufacturerData[f.key]
	case carrierService:
		data, ok = a.ServiceData[f.key]
	}
	if !ok || len(data) != f.length {
		return nil, false
	}
	return data, true
}
