package tsl2561

// CalculateLux converts raw channel counts into an approximate illuminance
// in lux, using the chip's empirical piecewise-linear formula. The result is
// fully determined by the raw counts and the handle's cached gain,
// integration time and package type, so it never touches the bus.
func (tsl *TSL2561) CalculateLux(ch0, ch1 uint16) uint32 {
	// Scale factor for the configured integration time. The calibration
	// constants are defined for the full 402ms window; shorter windows
	// scale the counts back up. Unrecognized codes behave as 402ms, same
	// as the acquisition delay.
	var scale uint32
	switch tsl.IntegrationTime {
	case IntegrationTime13ms:
		scale = chScale13ms
	case IntegrationTime101ms:
		scale = chScale101ms
	default:
		scale = 1 << chScale
	}

	// 16x is nominal, so if the gain is set to 1x then
	// we need to scale by 16
	if tsl.Gain == Gain1X {
		scale = scale << 4
	}

	channel0 := (uint32(ch0) * scale) >> chScale
	channel1 := (uint32(ch1) * scale) >> chScale

	// Ratio of the channel values (channel1 / channel0), guarding
	// against divide by zero, then rounded to ratioScale bits
	var ratio1 uint32
	if channel0 != 0 {
		ratio1 = (channel1 << (ratioScale + 1)) / channel0
	}
	ratio := (ratio1 + 1) >> 1

	b, m := luxCoefficients(tsl.PackageType, ratio)

	// A signed intermediate so heavy-IR readings clamp to zero instead of
	// wrapping around
	temp := int64(channel0)*int64(b) - int64(channel1)*int64(m)
	if temp < 0 {
		temp = 0
	}

	// Round the last significant bit, then strip the fractional portion
	temp += 1 << (luxScale - 1)
	return uint32(temp >> luxScale)
}

// luxCoefficients picks the calibration segment for a scaled channel ratio.
// The first segment whose bound covers the ratio wins; ratios above every
// bound land in the final zero-coefficient segment. An unrecognized package
// type is logged and degrades to zero coefficients.
func luxCoefficients(pkg PackageType, ratio uint32) (uint32, uint32) {
	var segments []luxSegment
	switch pkg {
	case PackageCS:
		segments = csSegments
	case PackageTFNCL:
		segments = tfnclSegments
	default:
		l.Errorf("tsl2561: invalid package type %#02x in lux calculation", byte(pkg))
		return 0, 0
	}

	for _, s := range segments {
		if ratio <= s.bound {
			return s.b, s.m
		}
	}
	return 0, 0
}
