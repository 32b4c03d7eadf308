package helper

import "testing"

func TestQuantizeDownIdempotent(t *testing.T) {
	tests := []struct {
		v, step float64
	}{
		{1.0301, 0.001},
		{0.94999, 0.001},
		{123.456789, 0.01},
		{200.07, 0.1},
		{0.00031337, 0.00001},
	}

	for _, tt := range tests {
		q := QuantizeDown(tt.v, tt.step)
		if q2 := QuantizeDown(q, tt.step); q2 != q {
			t.Errorf("QuantizeDown(%v, %v) not idempotent: %v != %v", tt.v, tt.step, q2, q)
		}
		if !IsMultipleOf(q, tt.step) {
			t.Errorf("QuantizeDown(%v, %v) = %v, not a multiple of step", tt.v, tt.step, q)
		}
		if q > tt.v {
			t.Errorf("QuantizeDown(%v, %v) = %v, rounded up", tt.v, tt.step, q)
		}
	}
}

func TestQuantizeUp(t *testing.T) {
	if got := QuantizeUp(1.0301, 0.001); got != 1.031 {
		t.Errorf("QuantizeUp(1.0301, 0.001) = %v, want 1.031", got)
	}
	if got := QuantizeUp(1.03, 0.001); got != 1.03 {
		t.Errorf("QuantizeUp(1.03, 0.001) = %v, want 1.03 (already on tick)", got)
	}
}

func TestQuantizeZeroStepPassthrough(t *testing.T) {
	if got := QuantizeDown(1.23, 0); got != 1.23 {
		t.Errorf("step=0 must pass through, got %v", got)
	}
}

func TestSamePrice(t *testing.T) {
	tests := []struct {
		a, b float64
		want bool
	}{
		{1.03, 1.03, true},
		{1.03, 1.0300000001, true},
		{1.03, 1.031, false},
		{0, 0, true},
		{0, 1, false},
	}
	for _, tt := range tests {
		if got := SamePrice(tt.a, tt.b); got != tt.want {
			t.Errorf("SamePrice(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{200, "200"},
		{1.03, "1.03"},
		{0.95, "0.95"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := FormatFloat(tt.v); got != tt.want {
			t.Errorf("FormatFloat(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestIsFinitePositive(t *testing.T) {
	if IsFinitePositive(0) || IsFinitePositive(-1) {
		t.Error("zero/negative must not be finite-positive")
	}
	if !IsFinitePositive(1.23) {
		t.Error("1.23 must be finite-positive")
	}
}
