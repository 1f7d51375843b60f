package utils

import "testing"

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{93.333333, 93.33},
		{0.005, 0.01},
		{-0.005, -0.01},
		{1.005, 1.01},
		{20, 20},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRoundInt(t *testing.T) {
	if got := RoundInt(120.5); got != 121 {
		t.Errorf("RoundInt(120.5) = %d, want 121", got)
	}
	if got := RoundInt(89.49); got != 89 {
		t.Errorf("RoundInt(89.49) = %d, want 89", got)
	}
}
