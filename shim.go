package devices

// The shim lets the drivers run on boards where only embd has a working SPI driver. It
// provides just enough of an SPI connection for max31855 and spimux.

import (
	"errors"

	"github.com/kidoman/embd"
)

// SPIMode0 is the only mode the MAX31855 supports: CPOL=0, CPHA=0.
const SPIMode0 = embd.SPIMode0

// InitSPI initializes the embd SPI driver for the host, see embd.InitSPI.
func InitSPI() error { return embd.InitSPI() }

// CloseSPI releases the embd SPI driver.
func CloseSPI() error { return embd.CloseSPI() }

// SPI is a full-duplex connection on an embd SPI bus. It is not safe for concurrent use,
// wrap it in a spimux.Conn to share it.
type SPI struct {
	bus embd.SPIBus
}

// NewSPI opens chip select channel on the embd SPI bus in mode 0 with 8-bit words.
// InitSPI must have been called.
func NewSPI(channel byte, speedHz int) *SPI {
	return &SPI{embd.NewSPIBus(SPIMode0, channel, speedHz, 8, 0)}
}

// Tx writes w and reads len(w) bytes into r. embd transfers in place, so w is copied into
// r first.
func (s *SPI) Tx(w, r []byte) error {
	if len(w) != len(r) {
		return errors.New("embd spi: read and write buffers must have the same length")
	}
	copy(r, w)
	return s.bus.TransferAndReceiveData(r)
}

func (s *SPI) String() string { return "embd-spi" }

// Close closes the bus.
func (s *SPI) Close() error {
	return s.bus.Close()
}
