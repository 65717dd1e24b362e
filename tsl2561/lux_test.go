package tsl2561

import "testing"

func TestCalculateLuxReferenceValues(t *testing.T) {
	tests := []struct {
		name string
		pkg  PackageType
		gain Gain
		it   IntegrationTime
		ch0  uint16
		ch1  uint16
		want uint32
	}{
		// 402ms/16x is the nominal domain: counts pass through unscaled.
		// ratio = 0x100 lands in the fourth CS segment (b=0x0282, m=0x03DF).
		{"cs 402ms 16x", PackageCS, Gain16X, IntegrationTime402ms, 100, 50, 1},
		// ratio = 154 lands in the third T/FN/CL segment (b=0x023F, m=0x037B)
		{"tfncl 402ms 16x", PackageTFNCL, Gain16X, IntegrationTime402ms, 1000, 300, 19},
		// 13ms counts are scaled up by 0x7517/2^10 before the ratio
		{"cs 13ms 16x", PackageCS, Gain16X, IntegrationTime13ms, 100, 50, 26},
		// 101ms counts are scaled up by 0x0FE7/2^10
		{"tfncl 101ms 16x", PackageTFNCL, Gain16X, IntegrationTime101ms, 500, 100, 47},
		// 1x gain rescales counts by 16 into the nominal domain
		{"cs 402ms 1x", PackageCS, Gain1X, IntegrationTime402ms, 100, 50, 14},
		// ratio above every calibration bound: zero coefficients
		{"ratio above top bound", PackageCS, Gain16X, IntegrationTime402ms, 10, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tsl := &TSL2561{PackageType: tt.pkg, Gain: tt.gain, IntegrationTime: tt.it}
			if got := tsl.CalculateLux(tt.ch0, tt.ch1); got != tt.want {
				t.Errorf("CalculateLux(%d, %d) = %d; want %d", tt.ch0, tt.ch1, got, tt.want)
			}
			// Same inputs, same output
			if again := tsl.CalculateLux(tt.ch0, tt.ch1); again != tt.want {
				t.Errorf("CalculateLux(%d, %d) second call = %d; want %d", tt.ch0, tt.ch1, again, tt.want)
			}
		})
	}
}

func TestCalculateLuxZeroChannel0(t *testing.T) {
	// channel0 == 0 must short-circuit the ratio to 0 rather than dividing.
	// The first segment's m coefficient then drives the result negative,
	// which clamps to zero.
	tsl := &TSL2561{PackageType: PackageCS, Gain: Gain16X, IntegrationTime: IntegrationTime402ms}
	for _, ch1 := range []uint16{0, 1, 500, 0xFFFF} {
		if got := tsl.CalculateLux(0, ch1); got != 0 {
			t.Errorf("CalculateLux(0, %d) = %d; want 0", ch1, got)
		}
	}
}

func TestCalculateLuxClampsNegative(t *testing.T) {
	// ratio = 666 selects the last CS segment (b=0x0037, m=0x002B);
	// 10*55 - 13*43 = -9. The original C driver computed this in an
	// unsigned type, wrapping to a huge value; the signed intermediate
	// clamps it to zero instead.
	tsl := &TSL2561{PackageType: PackageCS, Gain: Gain16X, IntegrationTime: IntegrationTime402ms}
	if got := tsl.CalculateLux(10, 13); got != 0 {
		t.Errorf("CalculateLux(10, 13) = %d; want 0 (clamped)", got)
	}
}

func TestCalculateLuxUnknownPackage(t *testing.T) {
	// Unknown package types degrade to zero coefficients, so the result is
	// just the rounding constant shifted away: a deterministic zero.
	tsl := &TSL2561{PackageType: PackageType(0x03), Gain: Gain16X, IntegrationTime: IntegrationTime402ms}
	if got := tsl.CalculateLux(1000, 300); got != 0 {
		t.Errorf("CalculateLux with unknown package = %d; want 0", got)
	}
}

func TestCalculateLuxLowGainScaling(t *testing.T) {
	// A 1x reading must match a 16x reading of proportionally larger counts.
	low := &TSL2561{PackageType: PackageTFNCL, Gain: Gain1X, IntegrationTime: IntegrationTime402ms}
	high := &TSL2561{PackageType: PackageTFNCL, Gain: Gain16X, IntegrationTime: IntegrationTime402ms}
	pairs := [][2]uint16{{100, 50}, {250, 30}, {1, 0}, {500, 200}}
	for _, p := range pairs {
		got := low.CalculateLux(p[0], p[1])
		want := high.CalculateLux(p[0]*16, p[1]*16)
		if got != want {
			t.Errorf("1x lux(%d, %d) = %d; 16x lux of scaled counts = %d", p[0], p[1], got, want)
		}
	}
}

func TestCalculateLuxUnknownIntegrationTimeFallsBack(t *testing.T) {
	// An out-of-range integration code behaves as the 402ms setting.
	nominal := &TSL2561{PackageType: PackageCS, Gain: Gain16X, IntegrationTime: IntegrationTime402ms}
	bogus := &TSL2561{PackageType: PackageCS, Gain: Gain16X, IntegrationTime: IntegrationTime(0x03)}
	if n, b := nominal.CalculateLux(100, 50), bogus.CalculateLux(100, 50); n != b {
		t.Errorf("unknown integration time lux = %d; want 402ms value %d", b, n)
	}
}

// segmentIndex mirrors the lookup in luxCoefficients, reporting which
// segment a ratio falls into (len(segments) for the zero tail).
func segmentIndex(segments []luxSegment, ratio uint32) int {
	for i, s := range segments {
		if ratio <= s.bound {
			return i
		}
	}
	return len(segments)
}

func TestSegmentSelectionMonotonic(t *testing.T) {
	tables := map[string][]luxSegment{
		"cs":    csSegments,
		"tfncl": tfnclSegments,
	}
	for name, segments := range tables {
		prev := -1
		for ratio := uint32(0); ratio <= 0x0300; ratio++ {
			idx := segmentIndex(segments, ratio)
			if idx < prev {
				t.Fatalf("%s: ratio %d selected segment %d after segment %d", name, ratio, idx, prev)
			}
			prev = idx

			b, m := luxCoefficients(packageFor(name), ratio)
			if idx < len(segments) && (b != segments[idx].b || m != segments[idx].m) {
				t.Fatalf("%s: ratio %d coefficients (%#x, %#x) don't match segment %d", name, ratio, b, m, idx)
			}
			if idx == len(segments) && (b != 0 || m != 0) {
				t.Fatalf("%s: ratio %d above top bound returned (%#x, %#x); want zeros", name, ratio, b, m)
			}
		}
	}
}

func packageFor(name string) PackageType {
	if name == "cs" {
		return PackageCS
	}
	return PackageTFNCL
}

func TestLuxCoefficientsUnknownPackage(t *testing.T) {
	b, m := luxCoefficients(PackageType(0x02), 100)
	if b != 0 || m != 0 {
		t.Errorf("unknown package coefficients = (%#x, %#x); want zeros", b, m)
	}
}
