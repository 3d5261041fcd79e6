package tpms

import "encoding/binary"

// Type A sensors advertise manufacturer data under company ID 0x0100,
// always 16 bytes. The first 6 bytes echo the sensor address; readings
// start at offset 6:
//
//	[6:10]  pressure, int32 LE, Pa
//	[10:14] temperature, int32 LE, 0.01 °C
//	[14]    battery, percent
//	[15]    alarm flag
var typeA = format{
	id:      FormatTypeA,
	carrier: carrierManufacturer,
	key:     0x0100,
	length:  16,
	decode:  decodeTypeA,
}

func decodeTypeA(data []byte, r *Reading) error {
	pressurePa := int32(binary.LittleEndian.Uint32(data[6:10]))
	tempRaw := int32(binary.LittleEndian.Uint32(data[10:14]))

	r.setPressure(float64(pressurePa) / 1000)
	r.setTemperature(float64(tempRaw) / 100)
	r.setBattery(data[14])
	r.setAlarm(data[15] != 0)
	return nil
}
