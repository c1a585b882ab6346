package tracker

import (
	"math"

	"steam-price-tracker/internal/models"
)

type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionStable  Direction = "stable"
	DirectionUnknown Direction = "unknown"
)

// Trend compares the latest sample with the one before it.
type Trend struct {
	Direction     Direction `json:"direction"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
}

// ComputeTrend expects samples newest first. Fewer than two samples give an unknown trend.
func ComputeTrend(newestFirst []models.PriceSample) Trend {
	if len(newestFirst) < 2 {
		return Trend{Direction: DirectionUnknown}
	}
	latest, previous := newestFirst[0].Price, newestFirst[1].Price
	change := round2(latest - previous)

	t := Trend{Direction: DirectionStable, Change: change}
	switch {
	case change > 0:
		t.Direction = DirectionUp
	case change < 0:
		t.Direction = DirectionDown
	}
	if previous > 0 {
		t.ChangePercent = round2((latest - previous) / previous * 100)
	}
	return t
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
