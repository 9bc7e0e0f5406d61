package reindex

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func magnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

func TestNormalizeVector(t *testing.T) {
	testCases := []struct {
		name  string
		input []float32
		want  []float32
	}{
		{"unit vector unchanged", []float32{1, 0, 0}, []float32{1, 0, 0}},
		{"3-4-5 triangle", []float32{3, 4}, []float32{0.6, 0.8}},
		{"negative components", []float32{-3, 4}, []float32{-0.6, 0.8}},
		{"zero vector", []float32{0, 0, 0}, []float32{0, 0, 0}},
		{"empty vector", []float32{}, []float32{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeVector(tc.input)
			assert.InDeltaSlice(t, tc.want, got, 1e-6)
		})
	}
}

func TestNormalizeVector_DoesNotModifyInput(t *testing.T) {
	input := []float32{3, 4}
	result := NormalizeVector(input)

	assert.Equal(t, []float32{3, 4}, input)
	assert.InDelta(t, 1.0, magnitude(result), 1e-6)
}
