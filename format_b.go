package tpms

import "encoding/binary"

// Type B sensors advertise service data under 16-bit UUID 0x27a5,
// always 8 bytes:
//
//	[0:2] pressure, uint16 LE, 0.1 kPa
//	[2:4] temperature, int16 LE, 0.01 °C
//	[4]   battery, percent
//	[5]   status, bit 0 = alarm
//	[6:8] sequence counter, unused here
var typeB = format{
	id:      FormatTypeB,
	carrier: carrierService,
	key:     0x27a5,
	length:  8,
	decode:  decodeTypeB,
}

func decodeTypeB(data []byte, r *Reading) error {
	pressureRaw := binary.LittleEndian.Uint16(data[0:2])
	tempRaw := int16(binary.LittleEndian.Uint16(data[2:4]))

	r.setPressure(float64(pressureRaw) / 10)
	r.setTemperature(float64(tempRaw) / 100)
	r.setBattery(data[4])
	r.setAlarm(data[5]&0x01 != 0)
	return nil
}
