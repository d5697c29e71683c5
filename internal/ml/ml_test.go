package ml

import (
	"math"
	"testing"
)

func TestClippedReLu(t *testing.T) {
	var a = &ClippedReLuActivation{}
	var tests = []struct {
		x, y, prime float64
	}{
		{-1, 0, 0},
		{0.25, 0.25, 1},
		{1.5, 1, 0},
	}
	for i, test := range tests {
		if a.Sigma(test.x) != test.y || a.SigmaPrime(test.x) != test.prime {
			t.Error(i, test, a.Sigma(test.x), a.SigmaPrime(test.x))
		}
	}
}

func TestAdamStep(t *testing.T) {
	var m = NewMatrix(2, 1)
	var g = NewGradients(2, 1)
	g.Add(0, 0, 5)
	g.Add(1, 0, -0.1)
	g.Apply(&m, 0.01)
	// first Adam step moves every weight with a non-zero gradient by the same amount
	if math.Abs(m.Get(0, 0)+m.Get(1, 0)) > 1e-6 || m.Get(0, 0) >= 0 {
		t.Error(m.Data)
	}
	if g.Data[0].Value != 0 || g.Data[1].Value != 0 {
		t.Error("gradient not reset")
	}
}
