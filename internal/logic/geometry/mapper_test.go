package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ax12 = Calibration{RawMax: 1023, InvertOffsetDeg: 180}

func TestRawFromAngle_KnownValues(t *testing.T) {
	cases := []struct {
		name  string
		cal   Calibration
		angle float64
		want  int
	}{
		{"forward", ax12, 0, 511},          // floor(180*1023/360) = floor(511.5)
		{"quarter_left", ax12, -90, 255},   // floor(90*1023/360) = floor(255.75)
		{"quarter_right", ax12, 90, 767},   // floor(270*1023/360) = floor(767.25)
		{"half_turn_wraps", ax12, 180, 0},  // 360° -> 1023 mod 1023
		{"minus_half_turn", ax12, -180, 0}, // 0°
		{"full_turn", ax12, 360, 511},      // same as forward
		{"negative_full_turns", ax12, -720, 511},
		{"no_offset", Calibration{RawMax: 4096}, 90, 1024},
		{"no_offset_negative", Calibration{RawMax: 4096}, -90, 3072},
		{"fraction_floors_down", Calibration{RawMax: 4096}, -0.01, 4095},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cal.RawFromAngle(tc.angle))
		})
	}
}

func TestRawFromAngle_AlwaysInRange(t *testing.T) {
	cals := []Calibration{ax12, {RawMax: 4096, InvertOffsetDeg: 180}, {RawMax: 7, InvertOffsetDeg: -33.3}}
	angles := []float64{
		0, 0.5, -0.5, 179.999, -179.999, 359.9999, -359.9999,
		1e6, -1e6, 1e300, -1e300, math.MaxFloat64, -math.MaxFloat64,
		math.NaN(), math.Inf(1), math.Inf(-1),
	}
	for _, cal := range cals {
		for _, a := range angles {
			raw := cal.RawFromAngle(a)
			assert.GreaterOrEqual(t, raw, 0, "angle %g raw_max %d", a, cal.RawMax)
			assert.Less(t, raw, cal.RawMax, "angle %g raw_max %d", a, cal.RawMax)
		}
	}
	for a := -1080.0; a <= 1080; a += 0.37 {
		raw := ax12.RawFromAngle(a)
		require.True(t, raw >= 0 && raw < ax12.RawMax, "angle %g mapped to %d", a, raw)
	}
}

func TestRawFromAngle_NonFiniteIsForward(t *testing.T) {
	want := ax12.RawFromAngle(0)
	assert.Equal(t, want, ax12.RawFromAngle(math.NaN()))
	assert.Equal(t, want, ax12.RawFromAngle(math.Inf(1)))
}

func TestAngleFromRaw_RoundTrip(t *testing.T) {
	cal := Calibration{RawMax: 4096, InvertOffsetDeg: 180}
	for _, angle := range []float64{-170, -45, 0, 45, 170} {
		raw := cal.RawFromAngle(angle)
		back := cal.AngleFromRaw(raw)
		// one raw unit is the position quantum
		assert.InDelta(t, angle, back, 360.0/4096, "angle %g", angle)
	}
}

func TestWrap(t *testing.T) {
	assert.Equal(t, 0, Wrap(0, 1023))
	assert.Equal(t, 1022, Wrap(-1, 1023))
	assert.Equal(t, 0, Wrap(1023, 1023))
	assert.Equal(t, 5, Wrap(2051, 1023))
	assert.Equal(t, 1020, Wrap(-3, 1023))
	assert.Equal(t, -3, Wrap(-3, 0), "non-positive modulus leaves value untouched")
}

func TestCalibration_Validate(t *testing.T) {
	assert.NoError(t, ax12.Validate())
	assert.Error(t, Calibration{RawMax: 0}.Validate())
	assert.Error(t, Calibration{RawMax: 1023, InvertOffsetDeg: math.NaN()}.Validate())
}

func TestBounds_Clamp(t *testing.T) {
	pan := Bounds{Lower: 20, Upper: 1020}
	tilt := Bounds{Lower: 390, Upper: 660}

	assert.Equal(t, 20, pan.Clamp(0))
	assert.Equal(t, 1020, pan.Clamp(1022))
	assert.Equal(t, 511, pan.Clamp(511))
	assert.Equal(t, 20, pan.Clamp(20))
	assert.Equal(t, 1020, pan.Clamp(1020))

	assert.Equal(t, 390, tilt.Clamp(255), "caps exactly at the nearer bound")
	assert.Equal(t, 660, tilt.Clamp(767))
}

func TestBounds_ClampRangeAndIdempotence(t *testing.T) {
	windows := []Bounds{{20, 1020}, {390, 660}, {0, 0}, {5, 5}}
	for _, b := range windows {
		for raw := -2000; raw <= 2000; raw += 7 {
			once := b.Clamp(raw)
			require.True(t, b.Contains(once), "clamp(%d) = %d outside %+v", raw, once, b)
			require.Equal(t, once, b.Clamp(once), "clamp must be idempotent for %d in %+v", raw, b)
		}
	}
}

func TestBounds_Validate(t *testing.T) {
	assert.NoError(t, Bounds{20, 1020}.Validate(1023))
	assert.NoError(t, Bounds{0, 1023}.Validate(1023))
	assert.Error(t, Bounds{-1, 10}.Validate(1023))
	assert.Error(t, Bounds{600, 500}.Validate(1023))
	assert.Error(t, Bounds{0, 1024}.Validate(1023))
}
