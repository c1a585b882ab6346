package tracker

import (
	"testing"

	"steam-price-tracker/internal/models"
)

func samples(prices ...float64) []models.PriceSample {
	out := make([]models.PriceSample, len(prices))
	for i, p := range prices {
		out[i] = models.PriceSample{Price: p}
	}
	return out
}

func TestComputeTrend(t *testing.T) {
	cases := []struct {
		name string
		in   []models.PriceSample
		want Trend
	}{
		{"no samples", nil, Trend{Direction: DirectionUnknown}},
		{"one sample", samples(1), Trend{Direction: DirectionUnknown}},
		{"up", samples(1.5, 1), Trend{Direction: DirectionUp, Change: 0.5, ChangePercent: 50}},
		{"down", samples(0.9, 1.2), Trend{Direction: DirectionDown, Change: -0.3, ChangePercent: -25}},
		{"stable", samples(2, 2), Trend{Direction: DirectionStable}},
		{"from zero", samples(1, 0), Trend{Direction: DirectionUp, Change: 1}},
	}
	for _, tc := range cases {
		if got := ComputeTrend(tc.in); got != tc.want {
			t.Fatalf("%s: ComputeTrend = %+v, want %+v", tc.name, got, tc.want)
		}
	}
}
