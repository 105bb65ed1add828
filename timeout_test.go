package b3cverify

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker() (*TimeoutTracker, *clockwork.FakeClock, *int32) {
	fc := clockwork.NewFakeClock()
	var fired int32
	tr := NewTimeoutTracker(fc, func(paymentId string) { atomic.AddInt32(&fired, 1) })
	return tr, fc, &fired
}

func TestArmFires(t *testing.T) {
	tr, fc, fired := newTestTracker()
	tr.Arm("p1", time.Minute)
	assert.True(t, tr.Armed("p1"))
	assert.False(t, tr.IsTimedOut("p1"))

	fc.Advance(59 * time.Second)
	assert.False(t, tr.IsTimedOut("p1"))
	assert.Equal(t, time.Second, tr.Remaining("p1"))

	fc.Advance(time.Second)
	require.Eventually(t, func() bool { return atomic.LoadInt32(fired) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, tr.IsTimedOut("p1"))
	assert.False(t, tr.Armed("p1"))
	assert.Equal(t, time.Duration(0), tr.Remaining("p1"))
}

func TestArmTwiceKeepsOneTimer(t *testing.T) {
	tr, fc, fired := newTestTracker()
	tr.Arm("p1", time.Minute)
	tr.Arm("p1", 2*time.Minute)
	assert.Equal(t, 1, tr.Len())

	fc.Advance(time.Minute)
	assert.Never(t, func() bool { return atomic.LoadInt32(fired) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	fc.Advance(time.Minute)
	require.Eventually(t, func() bool { return atomic.LoadInt32(fired) == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return atomic.LoadInt32(fired) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestDisarm(t *testing.T) {
	tr, fc, fired := newTestTracker()
	tr.Arm("p1", time.Minute)

	assert.True(t, tr.Disarm("p1"))
	assert.False(t, tr.Disarm("p1"))
	assert.False(t, tr.Disarm("unknown"))
	assert.Equal(t, 0, tr.Len())

	fc.Advance(time.Hour)
	assert.Never(t, func() bool { return atomic.LoadInt32(fired) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.False(t, tr.IsTimedOut("p1"))
}

func TestTrackerGet(t *testing.T) {
	tr, fc, _ := newTestTracker()
	start := fc.Now()
	tr.Arm("p1", 15*time.Minute)

	d, ok := tr.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "p1", d.PaymentId)
	assert.True(t, start.Add(15*time.Minute).Equal(d.At()))

	_, ok = tr.Get("p2")
	assert.False(t, ok)
}
