package tpms

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Type C sensors advertise manufacturer data under company ID 0x00ac,
// always 6 bytes, big endian with an XOR checksum:
//
//	[0:2] pressure, uint16 BE, kPa
//	[2]   temperature, int8, °C
//	[3]   battery, percent
//	[4]   XOR of bytes 0..3
//	[5]   sequence counter, unused here
var typeC = format{
	id:      FormatTypeC,
	carrier: carrierManufacturer,
	key:     0x00ac,
	length:  6,
	decode:  decodeTypeC,
}

func decodeTypeC(data []byte, r *Reading) error {
	var sum byte
	for _, b := range data[:4] {
		sum ^= b
	}
	if sum != data[4] {
		return errors.Wrapf(ErrMalformed, "checksum mismatch: want %#02x, have %#02x", sum, data[4])
	}

	r.setPressure(float64(binary.BigEndian.Uint16(data[0:2])))
	r.setTemperature(float64(int8(data[2])))
	r.setBattery(data[3])
	return nil
}
