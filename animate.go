package b3cverify

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultAnimationDuration = time.Second
	DefaultAnimationSteps    = 20
)

type Animation struct {
	Duration time.Duration
	Steps    int
}

func DefaultAnimation() Animation {
	return Animation{Duration: DefaultAnimationDuration, Steps: DefaultAnimationSteps}
}

func easeOutCubic(t float64) float64 {
	return 1 - math.Pow(1-t, 3)
}

// Frames returns the displayed values from just after `from` up to exactly `to`.
func (an Animation) Frames(from, to decimal.Decimal) []decimal.Decimal {
	steps := an.Steps
	if steps < 1 {
		steps = 1
	}
	diff := to.Sub(from)
	frames := make([]decimal.Decimal, 0, steps)
	for i := 1; i < steps; i++ {
		k := easeOutCubic(float64(i) / float64(steps))
		frames = append(frames, from.Add(diff.Mul(decimal.NewFromFloat(k))).Round(2))
	}
	return append(frames, to)
}

// Interval is the delay between two frames.
func (an Animation) Interval() time.Duration {
	if an.Steps < 1 {
		return an.Duration
	}
	return an.Duration / time.Duration(an.Steps)
}
