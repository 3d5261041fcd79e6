package registry

import (
	"os"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	tpms "github.com/bkbilly/tpms-ble"
)

// Device is the tracked state for one sensor address.
type Device struct {
	Addr      string       `json:"addr"`
	Name      string       `json:"name"`
	FirstSeen time.Time    `json:"first_seen"`
	LastSeen  time.Time    `json:"last_seen"`
	Reading   tpms.Reading `json:"reading"`
}

// Registry keeps last-known readings per device address, optionally
// persisted to a JSON file. Safe for concurrent use.
type Registry struct {
	filename string
	mu       sync.RWMutex
	devices  map[string]Device
	now      func() time.Time
}

// New returns a registry backed by filename. An empty filename keeps
// the registry in memory only; Load and Store become no-ops.
func New(filename string) *Registry {
	return &Registry{
		filename: filename,
		devices:  make(map[string]Device),
		now:      time.Now,
	}
}

// Update records a decoded reading for addr and returns the updated
// device. First sight of an address names the device after its short
// address.
func (r *Registry) Update(addr tpms.Addr, reading tpms.Reading) Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	dev, ok := r.devices[addr.String()]
	if !ok {
		dev = Device{
			Addr:      addr.String(),
			Name:      "TPMS " + addr.Short(),
			FirstSeen: now,
		}
	}
	dev.LastSeen = now
	dev.Reading = reading
	r.devices[addr.String()] = dev

	return dev
}

// Device returns the tracked state for addr.
func (r *Registry) Device(addr tpms.Addr) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.devices[addr.String()]
	return dev, ok
}

// Devices returns all tracked devices, ordered by address.
func (r *Registry) Devices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Device, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })

	return out
}

// Load replaces the registry contents from the backing file. A missing
// file is not an error; the registry starts empty.
func (r *Registry) Load() error {
	if r.filename == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	in, err := os.ReadFile(r.filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read registry")
	}

	var devices map[string]Device
	if err := jsoniter.Unmarshal(in, &devices); err != nil {
		return errors.Wrap(err, "unmarshal registry")
	}
	if devices == nil {
		// a file holding JSON null unmarshals to a nil map
		devices = make(map[string]Device)
	}

	r.devices = devices
	return nil
}

// Store writes the registry contents to the backing file.
func (r *Registry) Store() error {
	if r.filename == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out, err := jsoniter.Marshal(r.devices)
	if err != nil {
		return errors.Wrap(err, "marshal registry")
	}

	return os.WriteFile(r.filename, out, 0644)
}

// Clear drops all tracked devices and removes the backing file.
func (r *Registry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = make(map[string]Device)
	if r.filename == "" {
		return nil
	}

	err := os.Remove(r.filename)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
