package tpms

import (
	"encoding/hex"
	"strings"
)

// Addr represents the source address of an advertisement.
// It's a MAC address on Linux or a Device UUID on OS X.
type Addr interface {
	String() string
	Bytes() []byte
	Short() string
}

// NewAddr creates an Addr from string
func NewAddr(s string) Addr {
	return addr(strings.ToLower(s))
}

type addr string

func (a addr) String() string {
	return string(a)
}

func (a addr) Bytes() []byte {
	hexStr := strings.Replace(a.String(), ":", "", -1)

	out, err := hex.DecodeString(hexStr)
	if err != nil {
		GetLogger().Errorf("error decoding address %s: %v", a.String(), err)
		return nil
	}

	return out
}

// Short returns the last two octets, uppercased and without separators.
// Devices are named after it ("TPMS ABCD").
func (a addr) Short() string {
	parts := strings.Split(a.String(), ":")
	if len(parts) < 2 {
		s := strings.ToUpper(a.String())
		if len(s) > 4 {
			return s[len(s)-4:]
		}
		return s
	}
	return strings.ToUpper(parts[len(parts)-2] + parts[len(parts)-1])
}
