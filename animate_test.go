package b3cverify

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFramesEndExactly(t *testing.T) {
	an := DefaultAnimation()
	from, to := decimal.NewFromInt(1000), decimal.RequireFromString("1950.37")
	frames := an.Frames(from, to)

	assert.Len(t, frames, DefaultAnimationSteps)
	assert.True(t, to.Equal(frames[len(frames)-1]))
	for i := 1; i < len(frames); i++ {
		assert.True(t, frames[i].GreaterThanOrEqual(frames[i-1]), "frame %d", i)
	}
	// ease-out moves fast first
	half := frames[len(frames)/2-1].Sub(from)
	assert.True(t, half.GreaterThan(to.Sub(from).Div(decimal.NewFromInt(2))))
}

func TestFramesDecrease(t *testing.T) {
	frames := Animation{Duration: time.Second, Steps: 4}.Frames(decimal.NewFromInt(100), decimal.NewFromInt(20))
	assert.Len(t, frames, 4)
	assert.True(t, frames[0].LessThan(decimal.NewFromInt(100)))
	assert.Equal(t, "20", frames[3].String())
}

func TestSingleStep(t *testing.T) {
	an := Animation{Duration: time.Second}
	frames := an.Frames(decimal.Zero, decimal.NewFromInt(5))
	assert.Len(t, frames, 1)
	assert.Equal(t, time.Second, an.Interval())
	assert.Equal(t, 50*time.Millisecond, DefaultAnimation().Interval())
}
