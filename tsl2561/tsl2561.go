package tsl2561

/*
 * tsl2561 - Package for interacting with TSL2561 lux sensors.
 *
 * Ref:
 * https://ams.com/tsl2561 (TAOS059N datasheet, empirical lux formula)
 *
 */

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/io/i2c"
)

var l *logrus.Logger

func init() {
	l = logrus.New()
	// Setup the logger, so it can be parsed by datadog
	l.Formatter = &logrus.JSONFormatter{}
	l.SetOutput(os.Stdout)
	// Set the log level
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))
	switch logLevel {
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "info":
		l.SetLevel(logrus.InfoLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
}

// Conn is the register transport under the driver. *i2c.Device satisfies it;
// tests substitute a fake.
type Conn interface {
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) error
	Close() error
}

// TSL2561 is one physical sensor. The cached Gain and IntegrationTime always
// mirror the last value written to the timing register, so configuration
// updates never need a read round-trip. A handle is owned by a single
// goroutine; callers sharing one must serialize access themselves.
type TSL2561 struct {
	Addr            int
	PackageType     PackageType
	Gain            Gain
	IntegrationTime IntegrationTime
	Device          Conn
}

// Connect to a TSL2561 via I2C and discover its configuration.
func NewTSL2561(path string, addr int) (*TSL2561, error) {
	if path == "" {
		// i2c-1 is the default I2C bus for the Raspberry Pi
		path = "/dev/i2c-1"
	}
	if addr == 0 {
		addr = TSL2561_ADDR_FLOAT
	}
	device, err := i2c.Open(&i2c.Devfs{Dev: path}, addr)
	if err != nil {
		return nil, fmt.Errorf("Failed to open: %w", err)
	}
	tsl := &TSL2561{
		Addr:   addr,
		Device: device,
	}
	tsl.Init()
	return tsl, nil
}

// Init powers the chip up, reads back its package type and the current
// timing configuration, and powers it back down. Transport failures are
// logged and the handle is populated from whatever was read; the chip is
// left disabled either way.
func (tsl *TSL2561) Init() {
	if err := tsl.Enable(); err != nil {
		l.Errorf("tsl2561: enable during init: %v", err)
	}
	if control := tsl.readRegister(TSL2561_REG_CONTROL) & TSL2561_ON; control != TSL2561_ON {
		l.Errorf("tsl2561: control register read back %#02x, expected ON", control)
	}

	// The top two bits of the part ID identify the package variant
	partID := tsl.readRegister(TSL2561_REG_PART_ID)
	tsl.PackageType = PackageType(partID >> 6)

	// Gain and integration time share the timing register
	timing := tsl.readRegister(TSL2561_REG_TIMING)
	tsl.Gain = Gain(timing & 0x10)
	tsl.IntegrationTime = IntegrationTime(timing & 0x03)

	if err := tsl.Disable(); err != nil {
		l.Errorf("tsl2561: disable during init: %v", err)
	}
}

// SetIntegrationTime writes a new integration time, keeping the cached gain
// bits intact in the shared timing register.
func (tsl *TSL2561) SetIntegrationTime(it IntegrationTime) {
	tsl.Enable()
	if err := tsl.writeRegister(TSL2561_REG_TIMING, byte(it)|byte(tsl.Gain)); err != nil {
		l.Errorf("tsl2561: write timing register: %v", err)
	}
	tsl.Disable()

	tsl.IntegrationTime = it
}

// SetGain writes a new gain, keeping the cached integration time intact.
func (tsl *TSL2561) SetGain(gain Gain) {
	tsl.Enable()
	if err := tsl.writeRegister(TSL2561_REG_TIMING, byte(gain)|byte(tsl.IntegrationTime)); err != nil {
		l.Errorf("tsl2561: write timing register: %v", err)
	}
	tsl.Disable()

	tsl.Gain = gain
}

// GetChannelData powers the chip up, waits out one integration window so the
// data registers hold a full conversion, and reads both photodiode channels.
// The chip is disabled again before returning.
func (tsl *TSL2561) GetChannelData() (uint16, uint16) {
	tsl.Enable()

	// Since we just enabled the chip, we need to sleep
	// for the chip's integration time so it can gather a reading
	time.Sleep(tsl.IntegrationTime.delay())

	channel0 := tsl.readRegister16(TSL2561_REG_CHANNEL_0_LOW)
	channel1 := tsl.readRegister16(TSL2561_REG_CHANNEL_1_LOW)
	l.Debugf("Channel 0: %v, Channel 1: %v", channel0, channel1)

	tsl.Disable()
	return channel0, channel1
}

// ReadLux runs one acquisition and converts the raw counts to lux.
func (tsl *TSL2561) ReadLux() uint32 {
	ch0, ch1 := tsl.GetChannelData()
	return tsl.CalculateLux(ch0, ch1)
}

// Returns the normalized output for a given spectrum type
func GetNormalizedOutput(spectrum Spectrum, ch0, ch1 uint16) float64 {
	switch spectrum {
	case Visible:
		visible := float64(ch0) - float64(ch1)
		if visible < 0 {
			visible = 0
		}
		return visible / 0xFFFF
	case Infrared:
		return float64(ch1) / 0xFFFF
	case FullSpectrum:
		return float64(ch0) / 0xFFFF
	default:
		return 0
	}
}

// Enable powers the chip up.
func (tsl *TSL2561) Enable() error {
	return tsl.writeRegister(TSL2561_REG_CONTROL, TSL2561_ON)
}

// Disable powers the chip down.
func (tsl *TSL2561) Disable() error {
	return tsl.writeRegister(TSL2561_REG_CONTROL, TSL2561_OFF)
}

// Close releases the underlying bus device.
func (tsl *TSL2561) Close() error {
	return tsl.Device.Close()
}

func (tsl *TSL2561) writeRegister(reg, value byte) error {
	return tsl.Device.WriteReg(TSL2561_COMMAND_BIT|reg, []byte{value})
}

// readRegister reads one byte. On a bus failure the error is logged and the
// buffer contents are returned anyway, so callers always get a value.
func (tsl *TSL2561) readRegister(reg byte) byte {
	buf := make([]byte, 1)
	if err := tsl.Device.ReadReg(TSL2561_COMMAND_BIT|reg, buf); err != nil {
		l.Errorf("tsl2561: read register %#02x: %v", reg, err)
	}
	return buf[0]
}

// readRegister16 reads two consecutive bytes as a little-endian word, using
// the chip's word protocol bit. Same best-effort policy as readRegister.
func (tsl *TSL2561) readRegister16(reg byte) uint16 {
	buf := make([]byte, 2)
	if err := tsl.Device.ReadReg(TSL2561_COMMAND_BIT|TSL2561_WORD_BIT|reg, buf); err != nil {
		l.Errorf("tsl2561: read word register %#02x: %v", reg, err)
	}
	return binary.LittleEndian.Uint16(buf)
}
