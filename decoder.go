package tpms

import "errors"

// ErrUnrecognized reports that the advertisement matched no known
// format signature. Too-short payloads fall under it as well.
var ErrUnrecognized = errors.New("unrecognized advertisement format")

// ErrMalformed reports that a signature matched but the payload is
// structurally unusable (e.g. a failed checksum).
var ErrMalformed = errors.New("malformed payload")

// Decode classifies the advertisement against the known format
// signatures in priority order and extracts a normalized reading from
// the first match.
//
// A matched payload with out-of-range field values yields a partial
// Reading: the offending fields are left absent rather than passed
// through, the rest are populated. Decode is a pure function of its
// input and safe for concurrent use.
func Decode(a Advertisement) (Reading, error) {
	for _, f := range formats {
		data, ok := f.match(a)
		if !ok {
			continue
		}

		r := Reading{Format: f.id, RSSI: a.RSSI}
		if err := f.decode(data, &r); err != nil {
			return Reading{}, err
		}
		return r, nil
	}
	return Reading{}, ErrUnrecognized
}
