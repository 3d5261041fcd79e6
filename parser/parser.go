package parser

import (
	"encoding/binary"
	"errors"
	"fmt"

	tpms "github.com/bkbilly/tpms-ble"
)

var ErrEmptyPDU = errors.New("nil/empty pdu")

// https://www.bluetooth.org/en-us/specification/assigned-numbers/generic-access-profile
var types = struct {
	flags     byte
	svc16     byte
	nameshort byte
	namecomp  byte
	txpwr     byte
	mfgdata   byte
}{
	flags:     0x01,
	svc16:     0x16,
	nameshort: 0x08,
	namecomp:  0x09,
	txpwr:     0x0a,
	mfgdata:   0xff,
}

// Fields are the advertising structures the decoder cares about,
// pulled out of a raw PDU. Structures of other AD types are skipped.
type Fields struct {
	Flags            *byte
	TxPower          *int8
	LocalName        string
	ManufacturerData map[uint16][]byte
	ServiceData      map[uint16][]byte
}

type pduRecord struct {
	minSz int
	apply func(f *Fields, bytes []byte)
}

var pduDecodeMap = map[byte]pduRecord{
	types.flags: {
		1,
		func(f *Fields, bytes []byte) {
			v := bytes[0]
			f.Flags = &v
		},
	},
	types.txpwr: {
		1,
		func(f *Fields, bytes []byte) {
			v := int8(bytes[0])
			f.TxPower = &v
		},
	},
	types.nameshort: {
		1,
		func(f *Fields, bytes []byte) {
			// a complete name wins over a shortened one
			if f.LocalName == "" {
				f.LocalName = string(bytes)
			}
		},
	},
	types.namecomp: {
		1,
		func(f *Fields, bytes []byte) {
			f.LocalName = string(bytes)
		},
	},
	types.svc16: {
		3,
		func(f *Fields, bytes []byte) {
			uuid := binary.LittleEndian.Uint16(bytes[:2])
			if f.ServiceData == nil {
				f.ServiceData = make(map[uint16][]byte)
			}
			f.ServiceData[uuid] = bytes[2:]
		},
	},
	types.mfgdata: {
		3,
		func(f *Fields, bytes []byte) {
			cid := binary.LittleEndian.Uint16(bytes[:2])
			if f.ManufacturerData == nil {
				f.ManufacturerData = make(map[uint16][]byte)
			}
			if d, ok := f.ManufacturerData[cid]; ok {
				// scan response continues the advertisement's mfg data
				f.ManufacturerData[cid] = append(d, bytes[2:]...)
			} else {
				f.ManufacturerData[cid] = bytes[2:]
			}
		},
	},
}

// Parse splits a raw advertising PDU into its typed fields.
//
// The PDU is a sequence of records: length @ offset 0, AD type @
// offset 1, data up to length-1 bytes. Truncated or undersized records
// stop the walk and return what was decoded so far along with an
// error.
func Parse(pdu []byte) (*Fields, error) {
	if len(pdu) == 0 {
		return nil, ErrEmptyPDU
	}

	f := &Fields{}
	for i := 0; (i + 1) < len(pdu); {
		length := int(pdu[i])
		typ := pdu[i+1]

		//length should be more than 1 since there is a type byte
		if length < 1 {
			return f, fmt.Errorf("invalid record length %v, idx %v", length, i)
		}

		//do we have all the bytes for the payload?
		if (i + length) >= len(pdu) {
			return f, fmt.Errorf("buffer overflow: want %v, have %v, idx %v", i+length, len(pdu), i)
		}

		start := i + 2
		end := start + length - 1
		bytes := make([]byte, end-start)
		copy(bytes, pdu[start:end])

		dec, ok := pduDecodeMap[typ]
		if ok && len(bytes) != 0 {
			if dec.minSz > len(bytes) {
				return f, fmt.Errorf("adv type %v: min length %v, have %v, idx %v", typ, dec.minSz, len(bytes), i)
			}
			dec.apply(f, bytes)
		}

		i += length + 1
	}

	return f, nil
}

// Advertisement parses the PDU and wraps the result with its source
// address and signal strength, ready for tpms.Decode.
func Advertisement(addr string, rssi int, pdu []byte) (tpms.Advertisement, error) {
	f, err := Parse(pdu)
	if err != nil {
		return tpms.Advertisement{}, err
	}

	return tpms.Advertisement{
		Addr:             tpms.NewAddr(addr),
		RSSI:             rssi,
		LocalName:        f.LocalName,
		ManufacturerData: f.ManufacturerData,
		ServiceData:      f.ServiceData,
	}, nil
}
