package driver

import "sync"

// Device is the process-wide singleton representing the loaded driver.
type Device struct {
	mu sync.Mutex

	unit      *Unit
	openCount int
	expunge   bool

	// newUnit constructs the Unit for unit 0 on first open; set by the
	// composition root (cmd/genetd) so Device itself has no dependency on
	// the concrete MAC/devicetree wiring.
	newUnit func() (*Unit, error)
}

// NewDevice constructs a Device. newUnit is called at most once, on the
// first Open, to allocate the Unit.
func NewDevice(newUnit func() (*Unit, error)) *Device {
	return &Device{newUnit: newUnit}
}

// Open validates the unit number, allocates the Unit on first open, builds
// and links an Opener.
func (d *Device) Open(number int, caps Capabilities, exclusive bool) (*Opener, error) {
	if number != 0 {
		return nil, NewError("OPEN", ErrOpenFailure, WireErrorBadUnitNumber)
	}

	d.mu.Lock()
	if d.unit == nil {
		u, err := d.newUnit()
		if err != nil {
			d.mu.Unlock()
			return nil, WrapError("OPEN", ErrOpenFailure, WireErrorNone, err)
		}
		u.Start()
		d.unit = u
	}
	unit := d.unit
	d.openCount++
	d.mu.Unlock()

	o := NewOpener(caps, exclusive)
	if err := unit.linkOpener(o); err != nil {
		d.mu.Lock()
		d.openCount--
		d.mu.Unlock()
		return nil, err
	}
	return o, nil
}

// Close unlinks the Opener; when the open-count reaches zero the Unit is
// torn down (offline if needed, task stopped).
func (d *Device) Close(o *Opener) {
	d.mu.Lock()
	unit := d.unit
	d.mu.Unlock()

	if unit == nil {
		return
	}

	unit.unlinkOpener(o)

	d.mu.Lock()
	d.openCount--
	count := d.openCount
	d.mu.Unlock()

	if count > 0 {
		return
	}

	unit.offline()
	unit.Stop()

	d.mu.Lock()
	d.unit = nil
	if d.expunge {
		d.expunge = false
	}
	d.mu.Unlock()
}

// Expunge defers if the open-count is non-zero; otherwise it is a no-op
// here (the Device singleton has no external library loader to unlink from
// in this rewrite).
func (d *Device) Expunge() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openCount > 0 {
		d.expunge = true
		return
	}
}

// Unit returns the current Unit, or nil if none is allocated.
func (d *Device) Unit() *Unit {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unit
}
