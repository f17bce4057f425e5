package detect

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestNormalizeAngle(t *testing.T) {

	tests := []struct {
		name   string
		width  float64
		height float64
		angle  float64
		want   float64
	}{
		{"wide unrotated", 60, 30, 0, 0},
		{"wide rotated", 60, 30, 30, 30},
		{"tall adds quarter turn", 30, 60, 30, 60},
		{"tall reflected", 30, 60, 45, 45},
		{"tall at right angle", 30, 60, 90, 0},
		{"wide at right angle kept", 60, 30, 90, 90},
		{"reflected upper bound", 60, 30, 180, 0},
		{"beyond reflected range", 60, 30, 200, 200},
		{"square is not tall", 40, 40, 80, 80},
		{"rounded to one decimal", 60, 30, 12.3456, 12.3},
		{"tall rounded after reflection", 30, 60, 10.06, 79.9},
		{"negative raw angle", 60, 30, -15.26, -15.3},
		{"binary value below tie rounds down", 60, 30, 0.35, 0.3},
		{"exact tie rounds to even", 60, 30, 12.25, 12.2},
		{"near square tall adds quarter turn", 30.4, 30.6, 10, 80},
		{"near square wide kept", 30.6, 30.4, 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeAngle(tc.width, tc.height, tc.angle))
		})
	}
}

func TestNormalizeAngleIdempotentInput(t *testing.T) {

	// identical raw geometry always yields the identical angle
	for _, a := range []float64{0, 12.5, 45, 89.9, 90} {
		first := NormalizeAngle(20, 50, a)
		second := NormalizeAngle(20, 50, a)
		assert.Equal(t, first, second)
	}
}

func TestNormalizeAngleReflectedRange(t *testing.T) {

	// with raw angles in [0, 90] the output never exceeds 90
	for a := 0.0; a <= 90; a += 0.5 {
		for _, dims := range [][2]float64{{10, 20}, {20, 10}} {
			got := NormalizeAngle(dims[0], dims[1], a)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 90.0)
		}
	}
}
