//go:build rp2040

package main

import (
	"errors"
	"machine"

	"gomount/config"
)

// tmcSPIFrequency is well inside the 4 MHz limit of TMC2130/TMC5160 with
// the internal clock
const tmcSPIFrequency = 2000000

type spiBusConfig struct {
	spi  *machine.SPI
	sck  machine.Pin
	mosi machine.Pin
	miso machine.Pin
	name string
}

// RP2040 pin sets that reach each SPI controller
var rp2040SPIBuses = []spiBusConfig{
	{spi: machine.SPI0, sck: machine.GPIO2, mosi: machine.GPIO3, miso: machine.GPIO0, name: "spi0a"},
	{spi: machine.SPI0, sck: machine.GPIO6, mosi: machine.GPIO7, miso: machine.GPIO4, name: "spi0b"},
	{spi: machine.SPI0, sck: machine.GPIO18, mosi: machine.GPIO19, miso: machine.GPIO16, name: "spi0c"},
	{spi: machine.SPI0, sck: machine.GPIO22, mosi: machine.GPIO23, miso: machine.GPIO20, name: "spi0d"},
	{spi: machine.SPI0, sck: machine.GPIO2, mosi: machine.GPIO3, miso: machine.GPIO4, name: "spi0e"},
	{spi: machine.SPI1, sck: machine.GPIO10, mosi: machine.GPIO11, miso: machine.GPIO8, name: "spi1a"},
	{spi: machine.SPI1, sck: machine.GPIO14, mosi: machine.GPIO15, miso: machine.GPIO12, name: "spi1b"},
	{spi: machine.SPI1, sck: machine.GPIO26, mosi: machine.GPIO27, miso: machine.GPIO24, name: "spi1c"},
	{spi: machine.SPI1, sck: machine.GPIO10, mosi: machine.GPIO11, miso: machine.GPIO12, name: "spi1d"},
}

var errNoSPIBus = errors.New("spi pins do not match an rp2040 spi controller")

// needsSPI reports whether an axis driver is a TMC chip on the bus
func needsSPI(c *config.MountConfig) bool {
	for _, a := range []*config.AxisConfig{&c.Axis1, &c.Axis2} {
		if a.Driver == "tmc2130" || a.Driver == "tmc5160" {
			return true
		}
	}
	return false
}

// ConfigureSPI sets up the controller wired to the configured pins in
// mode 3, the TMC mode. The result satisfies drivers.SPI.
func ConfigureSPI(c *config.MountConfig) (*machine.SPI, error) {
	sck, err := config.ParsePin(c.SPISCK)
	if err != nil {
		return nil, err
	}
	sdo, err := config.ParsePin(c.SPISDO)
	if err != nil {
		return nil, err
	}
	sdi, err := config.ParsePin(c.SPISDI)
	if err != nil {
		return nil, err
	}

	for _, bus := range rp2040SPIBuses {
		if bus.sck != machine.Pin(sck) || bus.mosi != machine.Pin(sdo) || bus.miso != machine.Pin(sdi) {
			continue
		}
		err := bus.spi.Configure(machine.SPIConfig{
			Frequency: tmcSPIFrequency,
			SCK:       bus.sck,
			SDO:       bus.mosi,
			SDI:       bus.miso,
			Mode:      3,
		})
		if err != nil {
			return nil, err
		}
		return bus.spi, nil
	}
	return nil, errNoSPIBus
}
