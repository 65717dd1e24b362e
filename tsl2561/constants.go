package tsl2561

import "time"

// The TSL2561 responds on one of three addresses, selected by the ADDR pin.
const (
	TSL2561_ADDR_GND   int = 0x29 // ADDR pin tied to ground
	TSL2561_ADDR_FLOAT int = 0x39 // ADDR pin floating (default)
	TSL2561_ADDR_VDD   int = 0x49 // ADDR pin tied to VDD
)

const (
	TSL2561_COMMAND_BIT byte = 0x80 // Select the command register
	TSL2561_WORD_BIT    byte = 0x20 // Read/write a 16-bit word rather than a byte

	TSL2561_ON  byte = 0x03 // Power up the device
	TSL2561_OFF byte = 0x00 // Power down the device
)

// TSL2561 register map
const (
	TSL2561_REG_CONTROL         byte = 0x00 // Power control
	TSL2561_REG_TIMING          byte = 0x01 // Integration time / gain
	TSL2561_REG_THRESH_LOW_LOW  byte = 0x02 // Low interrupt threshold, low byte
	TSL2561_REG_THRESH_LOW_HIGH byte = 0x03 // Low interrupt threshold, high byte
	TSL2561_REG_THRESH_HI_LOW   byte = 0x04 // High interrupt threshold, low byte
	TSL2561_REG_THRESH_HI_HIGH  byte = 0x05 // High interrupt threshold, high byte
	TSL2561_REG_INTERRUPT       byte = 0x06 // Interrupt control
	TSL2561_REG_PART_ID         byte = 0x0A // Part number / revision
	TSL2561_REG_CHANNEL_0_LOW   byte = 0x0C // Channel 0 data, low byte
	TSL2561_REG_CHANNEL_0_HIGH  byte = 0x0D // Channel 0 data, high byte
	TSL2561_REG_CHANNEL_1_LOW   byte = 0x0E // Channel 1 data, low byte
	TSL2561_REG_CHANNEL_1_HIGH  byte = 0x0F // Channel 1 data, high byte
)

// Gain is the analog gain field of the timing register (bit 4).
type Gain byte

const (
	Gain1X  Gain = 0x00 // low gain (1x)
	Gain16X Gain = 0x10 // high gain (16x)
)

// IntegrationTime is the integration time field of the timing register (bits 0-1).
type IntegrationTime byte

const (
	IntegrationTime13ms  IntegrationTime = 0x00 // 13.7 millis
	IntegrationTime101ms IntegrationTime = 0x01 // 101 millis
	IntegrationTime402ms IntegrationTime = 0x02 // 402 millis
)

// PackageType selects the calibration table. The two package variants carry
// different optics, so their coefficient sets differ. Anything outside the
// two known variants yields zero coefficients.
type PackageType byte

const (
	PackageCS    PackageType = 0x00 // CS package
	PackageTFNCL PackageType = 0x01 // T, FN and CL packages
)

// Spectrum selects a channel combination for GetNormalizedOutput.
type Spectrum byte

const (
	FullSpectrum Spectrum = 0 // channel 0
	Infrared     Spectrum = 1 // channel 1
	Visible      Spectrum = 2 // channel 0 - channel 1
)

// How long to wait after power-up before the data registers hold a full
// conversion. Slightly above the nominal integration times to cover the
// chip's internal oscillator tolerance.
const (
	integrationDelay13ms  = 20 * time.Millisecond
	integrationDelay101ms = 110 * time.Millisecond
	integrationDelay402ms = 410 * time.Millisecond
)

// Fixed-point scaling used by the lux approximation.
const (
	luxScale   = 14 // scale lux by 2^14
	ratioScale = 9  // scale ratio by 2^9
	chScale    = 10 // scale channel values by 2^10

	chScale13ms  = 0x7517 // 322/11 * 2^chScale
	chScale101ms = 0x0FE7 // 322/81 * 2^chScale
)

// luxSegment is one piece of the piecewise-linear lux approximation:
// for ratios up to bound, lux = (ch0*b - ch1*m) >> luxScale.
type luxSegment struct {
	bound uint32 // upper bound on the scaled ch1/ch0 ratio, inclusive
	b     uint32 // channel 0 coefficient
	m     uint32 // channel 1 coefficient
}

// Calibration segments for the T, FN and CL packages, ordered by ratio bound.
// Ratios above the last bound get zero coefficients.
var tfnclSegments = []luxSegment{
	{0x0040, 0x01F2, 0x01BE}, // 0.125 * 2^ratioScale
	{0x0080, 0x0214, 0x02D1}, // 0.250
	{0x00C0, 0x023F, 0x037B}, // 0.375
	{0x0100, 0x0270, 0x03FE}, // 0.500
	{0x0138, 0x016F, 0x01FC}, // 0.610
	{0x019A, 0x00D2, 0x00FB}, // 0.800
	{0x029A, 0x0018, 0x0012}, // 1.300
}

// Calibration segments for the CS package.
var csSegments = []luxSegment{
	{0x0043, 0x0204, 0x01AD}, // 0.130 * 2^ratioScale
	{0x0085, 0x0228, 0x02C1}, // 0.260
	{0x00C8, 0x0253, 0x0363}, // 0.390
	{0x010A, 0x0282, 0x03DF}, // 0.520
	{0x014D, 0x0177, 0x01DD}, // 0.650
	{0x019A, 0x0101, 0x0127}, // 0.800
	{0x029A, 0x0037, 0x002B}, // 1.300
}

func (g Gain) String() string {
	switch g {
	case Gain1X:
		return "1x"
	case Gain16X:
		return "16x"
	default:
		return "Unknown"
	}
}

func (it IntegrationTime) String() string {
	switch it {
	case IntegrationTime13ms:
		return "13ms"
	case IntegrationTime101ms:
		return "101ms"
	case IntegrationTime402ms:
		return "402ms"
	default:
		return "Unknown"
	}
}

func (p PackageType) String() string {
	switch p {
	case PackageCS:
		return "CS"
	case PackageTFNCL:
		return "T/FN/CL"
	default:
		return "Unknown"
	}
}

// delay returns the wait between enabling the chip and reading the channel
// registers. Unrecognized codes fall back to the longest window, matching
// the lux pipeline which also treats anything else as 402ms.
func (it IntegrationTime) delay() time.Duration {
	switch it {
	case IntegrationTime13ms:
		return integrationDelay13ms
	case IntegrationTime101ms:
		return integrationDelay101ms
	default:
		return integrationDelay402ms
	}
}
