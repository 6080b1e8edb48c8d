// Package gpio configures BCM2711 GPIO pin function and pull state for the
// pins the GENET MAC needs muxed to its external MDIO/RGMII pads.
//
// Grounded on tamago's soc/bcm2835/gpio.go (GPFSEL/GPSET/GPCLR register
// shape), extended with the BCM2711-specific GPIO pull-up/down selection
// registers (GPIO_PUP_PDN_CNTRL_REG0..3), which replace the legacy
// GPPUD/GPPUDCLK sequence earlier BCM28xx SoCs used.
package gpio

import (
	"fmt"

	"github.com/rondoval/emu68-genet-driver/internal/mmio"
)

const (
	gpfsel0 = 0x00
	gpset0  = 0x1c
	gpclr0  = 0x28
	gplev0  = 0x34

	// BCM2711 pull-up/down control, 16 pins per register, 2 bits each.
	pupPdnCntrl0 = 0xe4
)

// Function selects the mode of a GPIO line.
type Function uint32

const (
	FunctionInput  Function = 0
	FunctionOutput Function = 1
	FunctionAlt0   Function = 4
	FunctionAlt1   Function = 5
	FunctionAlt2   Function = 6
	FunctionAlt3   Function = 7
	FunctionAlt4   Function = 3
	FunctionAlt5   Function = 2
)

// Pull selects the internal pull resistor state of a GPIO line.
type Pull uint32

const (
	PullNone Pull = 0
	PullUp   Pull = 1
	PullDown Pull = 2
)

// Controller drives the GPIO register block.
type Controller struct {
	reg *mmio.Region
}

// New returns a Controller bound to the GPIO register window.
func New(reg *mmio.Region) *Controller {
	return &Controller{reg: reg}
}

func (c *Controller) checkPin(num int) error {
	if num < 0 || num > 57 {
		return fmt.Errorf("gpio: invalid pin number %d", num)
	}
	return nil
}

// SelectFunction sets the alternate-function mux of a single pin.
func (c *Controller) SelectFunction(num int, fn Function) error {
	if err := c.checkPin(num); err != nil {
		return err
	}

	off := uint32(gpfsel0 + 4*(num/10))
	shift := uint(num%10) * 3
	c.reg.SetN(off, int(shift), 0x7, uint32(fn))
	return nil
}

// SetPull sets the internal pull resistor state of a single pin.
func (c *Controller) SetPull(num int, pull Pull) error {
	if err := c.checkPin(num); err != nil {
		return err
	}

	off := uint32(pupPdnCntrl0 + 4*(num/16))
	shift := uint(num%16) * 2
	c.reg.SetN(off, int(shift), 0x3, uint32(pull))
	return nil
}

// High drives a pin output high.
func (c *Controller) High(num int) error {
	if err := c.checkPin(num); err != nil {
		return err
	}
	off := uint32(gpset0 + 4*(num/32))
	c.reg.Write(off, 1<<uint(num%32))
	return nil
}

// Low drives a pin output low.
func (c *Controller) Low(num int) error {
	if err := c.checkPin(num); err != nil {
		return err
	}
	off := uint32(gpclr0 + 4*(num/32))
	c.reg.Write(off, 1<<uint(num%32))
	return nil
}

// Value reads the current signal level of a pin.
func (c *Controller) Value(num int) (bool, error) {
	if err := c.checkPin(num); err != nil {
		return false, err
	}
	off := uint32(gplev0 + 4*(num/32))
	return (c.reg.Read(off)>>uint(num%32))&1 != 0, nil
}

// ConfigureMDIO programs pins 28 (MDIO) and 29 (MDC) to alternate function
// 5, with MDIO pulled up and MDC pulled down.
func (c *Controller) ConfigureMDIO() error {
	if err := c.SelectFunction(28, FunctionAlt5); err != nil {
		return err
	}
	if err := c.SetPull(28, PullUp); err != nil {
		return err
	}
	if err := c.SelectFunction(29, FunctionAlt5); err != nil {
		return err
	}
	return c.SetPull(29, PullDown)
}

// ConfigureRGMII programs pins 46..57 as input-alternate with pin 46/47
// pulled up and 48..57 pulled down.
func (c *Controller) ConfigureRGMII() error {
	for pin := 46; pin <= 57; pin++ {
		if err := c.SelectFunction(pin, FunctionAlt0); err != nil {
			return err
		}

		pull := PullDown
		if pin == 46 || pin == 47 {
			pull = PullUp
		}
		if err := c.SetPull(pin, pull); err != nil {
			return err
		}
	}
	return nil
}
