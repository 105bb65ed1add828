package b3cverify

import (
	"sync"
	"time"

	"github.com/everFinance/b3cverify/schema"
	"github.com/jonboulle/clockwork"
)

type deadlineEntry struct {
	schema.Deadline
	timer clockwork.Timer
}

// TimeoutTracker keeps one wall-clock deadline per payment, independent of the poll loop.
type TimeoutTracker struct {
	clock     clockwork.Clock
	onTimeout func(paymentId string)
	deadlines map[string]*deadlineEntry
	locker    sync.Mutex
}

func NewTimeoutTracker(clock clockwork.Clock, onTimeout func(paymentId string)) *TimeoutTracker {
	return &TimeoutTracker{
		clock:     clock,
		onTimeout: onTimeout,
		deadlines: make(map[string]*deadlineEntry),
	}
}

// Arm replaces any deadline for paymentId with one that fires after window.
func (t *TimeoutTracker) Arm(paymentId string, window time.Duration) {
	t.locker.Lock()
	defer t.locker.Unlock()

	t.disarm(paymentId)
	e := &deadlineEntry{
		Deadline: schema.Deadline{
			PaymentId: paymentId,
			StartTime: t.clock.Now(),
			Window:    window,
			Armed:     true,
		},
	}
	e.timer = t.clock.AfterFunc(window, func() { t.fire(paymentId, e) })
	t.deadlines[paymentId] = e
}

func (t *TimeoutTracker) fire(paymentId string, e *deadlineEntry) {
	t.locker.Lock()
	if cur, ok := t.deadlines[paymentId]; !ok || cur != e {
		// disarmed or re-armed meanwhile
		t.locker.Unlock()
		return
	}
	e.Armed = false
	t.locker.Unlock()

	if t.onTimeout != nil {
		t.onTimeout(paymentId)
	}
}

// IsTimedOut reads the clock directly, so a delayed timer cannot keep a payment alive.
func (t *TimeoutTracker) IsTimedOut(paymentId string) bool {
	t.locker.Lock()
	defer t.locker.Unlock()
	e, ok := t.deadlines[paymentId]
	if !ok {
		return false
	}
	return t.clock.Since(e.StartTime) >= e.Window
}

// Disarm cancels the pending callback and drops the record.
// It reports whether a pending callback was actually cancelled.
func (t *TimeoutTracker) Disarm(paymentId string) bool {
	t.locker.Lock()
	defer t.locker.Unlock()
	return t.disarm(paymentId)
}

func (t *TimeoutTracker) disarm(paymentId string) bool {
	e, ok := t.deadlines[paymentId]
	if !ok {
		return false
	}
	delete(t.deadlines, paymentId)
	return e.timer.Stop()
}

func (t *TimeoutTracker) Armed(paymentId string) bool {
	t.locker.Lock()
	defer t.locker.Unlock()
	e, ok := t.deadlines[paymentId]
	return ok && e.Armed
}

func (t *TimeoutTracker) Get(paymentId string) (schema.Deadline, bool) {
	t.locker.Lock()
	defer t.locker.Unlock()
	e, ok := t.deadlines[paymentId]
	if !ok {
		return schema.Deadline{}, false
	}
	return e.Deadline, true
}

// Remaining is zero for unknown or elapsed deadlines.
func (t *TimeoutTracker) Remaining(paymentId string) time.Duration {
	d, ok := t.Get(paymentId)
	if !ok {
		return 0
	}
	left := d.At().Sub(t.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

func (t *TimeoutTracker) Len() int {
	t.locker.Lock()
	defer t.locker.Unlock()
	return len(t.deadlines)
}
