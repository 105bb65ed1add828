package b3cverify

import (
	"errors"
	"sync"
	"time"

	"github.com/everFinance/b3cverify/schema"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

// Verifier is the backend verification endpoint.
type Verifier interface {
	Verify(flow, paymentId, boc string) (*schema.RespVerify, error)
}

// StateStore persists what must survive a restart: lockouts and in-flight payments.
type StateStore interface {
	SaveLockout(l schema.Lockout) error
	LoadLockout(paymentId string) (schema.Lockout, error)
	DelLockout(paymentId string) error
	SavePending(p schema.Pending) error
	DelPending(paymentId string) error
}

// Controller drives the bounded poll loop for each announced deposit.
//
// Polls for one payment are strictly sequential: the next one is scheduled only
// after the previous response was processed. Every scheduled continuation carries
// the attempt's generation token and is dropped when the token no longer matches.
type Controller struct {
	policy    schema.Policy
	clock     clockwork.Clock
	verifier  Verifier
	renderer  Renderer
	registry  *Registry
	tracker   *TimeoutTracker
	refresher *Refresher
	store     StateStore
	onOutcome func(o schema.Outcome)

	polls     map[string]clockwork.Timer // key: paymentId, next scheduled poll
	cooldowns map[string]clockwork.Timer // key: paymentId, limit-reached clearing
	inflight  map[string]string          // key: paymentId, val: token of the running call
	mu        sync.Mutex
}

func NewController(policy schema.Policy, clock clockwork.Clock, verifier Verifier, renderer Renderer) *Controller {
	c := &Controller{
		policy:    policy,
		clock:     clock,
		verifier:  verifier,
		renderer:  renderer,
		registry:  NewRegistry(),
		polls:     make(map[string]clockwork.Timer),
		cooldowns: make(map[string]clockwork.Timer),
		inflight:  make(map[string]string),
	}
	c.tracker = NewTimeoutTracker(clock, c.onDeadline)
	return c
}

func (c *Controller) SetRefresher(r *Refresher) {
	c.refresher = r
}

func (c *Controller) SetStore(s StateStore) {
	c.store = s
}

func (c *Controller) OnOutcome(fn func(o schema.Outcome)) {
	c.onOutcome = fn
}

func (c *Controller) Registry() *Registry {
	return c.registry
}

func (c *Controller) Tracker() *TimeoutTracker {
	return c.tracker
}

func (c *Controller) Policy() schema.Policy {
	return c.policy
}

// Begin is the "I have sent the payment" action, and also the manual retry.
// Network failures never surface here; they end up as views.
func (c *Controller) Begin(req schema.VerifyReq) error {
	if req.PaymentId == "" {
		return schema.ErrNullPaymentId
	}
	if req.Flow == "" {
		req.Flow = schema.FlowDeposit
	}
	if !schema.IsFlow(req.Flow) {
		return schema.ErrUnknownFlow
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := req.PaymentId
	if c.registry.IsExpired(id) {
		return schema.ErrPaymentExpired
	}
	if _, ok := c.inflight[id]; ok {
		// a verification call is already running for this payment
		return nil
	}

	now := c.clock.Now()
	a := c.registry.Get(id)
	if a == nil {
		if until, ok := c.persistedLockout(id, now); ok {
			locked := &schema.Attempt{PaymentId: id, Flow: req.Flow, Count: c.policy.MaxRetries, MaxRetries: c.policy.MaxRetries}
			c.render(limitReachedView(locked, until.Sub(now), now))
			return schema.ErrVerifyLimit
		}
		c.registry.Create(schema.Attempt{
			PaymentId:  id,
			Flow:       req.Flow,
			Boc:        req.Boc,
			MaxRetries: c.policy.MaxRetries,
			StartTime:  now,
		})
		c.tracker.Arm(id, c.policy.Window)
		metricAttemptStarted(req.Flow)
	} else {
		a = c.registry.Update(id, func(a *schema.Attempt) {
			a.Closed = false
			if req.Boc != "" {
				a.Boc = req.Boc
			}
		})
		if !a.Exhausted() && !c.tracker.Armed(id) {
			// modal was closed; resume the original window instead of extending it
			left := c.policy.Window - now.Sub(a.StartTime)
			if left <= 0 {
				c.expireLocked(id)
				return schema.ErrPaymentExpired
			}
			c.tracker.Arm(id, left)
		}
	}

	a = c.registry.Get(id)
	if a.Exhausted() {
		c.limitReachedLocked(a, now)
		return schema.ErrVerifyLimit
	}
	if c.tracker.IsTimedOut(id) {
		c.expireLocked(id)
		return schema.ErrPaymentExpired
	}
	c.attemptLocked(id)
	return nil
}

// Close is called when the verification modal goes away. The deadline is
// disarmed and every pending continuation becomes a no-op; the spent budget is kept.
func (c *Controller) Close(paymentId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tracker.Disarm(paymentId)
	c.stopPoll(paymentId)
	delete(c.inflight, paymentId)
	c.registry.Update(paymentId, func(a *schema.Attempt) {
		a.Token = ""
		a.Closed = true
	})
	c.renderer.Clear(paymentId)
	log.Debug("verification closed", "paymentId", paymentId)
}

// Reset forgets everything about a payment; used when a new payment intent supersedes it.
func (c *Controller) Reset(paymentId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tracker.Disarm(paymentId)
	c.stopPoll(paymentId)
	c.stopCooldown(paymentId)
	delete(c.inflight, paymentId)
	c.registry.Delete(paymentId)
	c.registry.ClearExpired(paymentId)
	c.delLockout(paymentId)
	c.delPending(paymentId)
	c.renderer.Clear(paymentId)
}

// attemptLocked spends one unit of budget and starts a verification call.
func (c *Controller) attemptLocked(paymentId string) {
	c.stopPoll(paymentId)
	a := c.registry.Update(paymentId, func(a *schema.Attempt) {
		a.Count++
		a.Token = uuid.NewString()
	})
	if a == nil {
		return
	}
	c.inflight[paymentId] = a.Token
	c.savePending(schema.Pending{PaymentId: paymentId, Flow: a.Flow, Boc: a.Boc, Count: a.Count, CreatedAt: a.StartTime})
	c.render(verifyingView(a, c.tracker.Remaining(paymentId), c.clock.Now()))
	go c.pollOnce(paymentId, a.Token)
}

func (c *Controller) pollOnce(paymentId, token string) {
	c.mu.Lock()
	a, live := c.live(paymentId, token)
	if !live {
		c.mu.Unlock()
		return
	}
	if c.tracker.IsTimedOut(paymentId) {
		c.expireLocked(paymentId)
		c.mu.Unlock()
		return
	}
	flow, boc := a.Flow, a.Boc
	c.mu.Unlock()

	res, err := c.verifier.Verify(flow, paymentId, boc)

	c.mu.Lock()
	defer c.mu.Unlock()

	a, live = c.live(paymentId, token)
	if !live {
		log.Debug("drop stale verify response", "paymentId", paymentId)
		return
	}
	delete(c.inflight, paymentId)
	now := c.clock.Now()

	if err != nil {
		cause := ""
		var respErr schema.RespErr
		if errors.As(err, &respErr) {
			cause = respErr.Err
			metricPoll(flow, "rejected")
		} else {
			metricPoll(flow, "error")
		}
		log.Warn("verify payment failed", "err", err, "paymentId", paymentId, "attempt", a.Count)
		c.render(errorView(a, cause, now))
		return
	}

	if res.Confirmed() {
		metricPoll(flow, schema.StatusConfirmed)
		c.confirmLocked(a, res.Credited())
		return
	}

	metricPoll(flow, schema.StatusPending)
	if a.Count < a.MaxRetries {
		c.polls[paymentId] = c.clock.AfterFunc(c.policy.PollInterval, func() { c.nextAttempt(paymentId, token) })
		c.render(pendingView(a, c.tracker.Remaining(paymentId), c.policy.PollInterval, now))
		return
	}

	log.Info("verification budget exhausted", "paymentId", paymentId, "attempts", a.Count)
	c.render(exhaustedView(a, c.tracker.Remaining(paymentId), now))
	c.emit(a, schema.ResultExhausted, decimal.Zero)
}

func (c *Controller) nextAttempt(paymentId, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, live := c.live(paymentId, token); !live {
		return
	}
	delete(c.polls, paymentId)
	if c.tracker.IsTimedOut(paymentId) {
		c.expireLocked(paymentId)
		return
	}
	c.attemptLocked(paymentId)
}

func (c *Controller) confirmLocked(a *schema.Attempt, credited decimal.Decimal) {
	id := a.PaymentId
	c.tracker.Disarm(id)
	c.stopPoll(id)
	c.stopCooldown(id)
	delete(c.inflight, id)
	c.registry.Delete(id)
	c.delLockout(id)
	c.delPending(id)

	log.Info("payment confirmed", "paymentId", id, "credited", credited.String(), "attempts", a.Count)
	c.render(confirmedView(a, credited, c.clock.Now()))
	c.emit(a, schema.ResultConfirmed, credited)

	if c.refresher != nil {
		go c.refresher.RefreshAfterConfirmation()
	}
}

func (c *Controller) limitReachedLocked(a *schema.Attempt, now time.Time) {
	id := a.PaymentId
	if a.CooldownUntil.IsZero() {
		until := now.Add(c.policy.Cooldown)
		a = c.registry.Update(id, func(a *schema.Attempt) {
			a.CooldownUntil = until
			a.Token = ""
		})
		c.cooldowns[id] = c.clock.AfterFunc(c.policy.Cooldown, func() { c.clearCooldown(id, until) })
		c.saveLockout(schema.Lockout{PaymentId: id, Until: until})
		c.emit(a, schema.ResultLimitReached, decimal.Zero)
	}
	c.render(limitReachedView(a, a.CooldownUntil.Sub(now), now))
}

// clearCooldown drops the exhausted attempt so a fresh Begin may start over.
func (c *Controller) clearCooldown(paymentId string, until time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := c.registry.Get(paymentId)
	if a == nil || !a.CooldownUntil.Equal(until) {
		return
	}
	delete(c.cooldowns, paymentId)
	c.tracker.Disarm(paymentId)
	c.registry.Delete(paymentId)
	c.delLockout(paymentId)
	c.delPending(paymentId)
	if !a.Closed {
		c.render(idleView(paymentId, c.clock.Now()))
	}
}

// onDeadline is the tracker callback. A payment that was confirmed, closed or reset
// in the meantime no longer has a deadline and is left alone.
func (c *Controller) onDeadline(paymentId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tracker.IsTimedOut(paymentId) {
		return
	}
	c.expireLocked(paymentId)
}

// expireLocked is the terminal timeout transition; it renders at most once per payment.
func (c *Controller) expireLocked(paymentId string) {
	if c.registry.IsExpired(paymentId) {
		return
	}
	now := c.clock.Now()
	a := c.registry.Get(paymentId)

	c.tracker.Disarm(paymentId)
	c.stopPoll(paymentId)
	c.stopCooldown(paymentId)
	delete(c.inflight, paymentId)
	c.registry.Delete(paymentId)
	c.registry.MarkExpired(paymentId, now)
	c.delLockout(paymentId)
	c.delPending(paymentId)

	log.Warn("payment verification window expired", "paymentId", paymentId)
	c.render(timedOutView(paymentId, a, now))
	if a == nil {
		a = &schema.Attempt{PaymentId: paymentId}
	}
	c.emit(a, schema.ResultTimedOut, decimal.Zero)
}

func (c *Controller) live(paymentId, token string) (*schema.Attempt, bool) {
	a := c.registry.Get(paymentId)
	if a == nil || a.Token == "" || a.Token != token {
		return nil, false
	}
	return a, true
}

func (c *Controller) stopPoll(paymentId string) {
	if t, ok := c.polls[paymentId]; ok {
		t.Stop()
		delete(c.polls, paymentId)
	}
}

func (c *Controller) stopCooldown(paymentId string) {
	if t, ok := c.cooldowns[paymentId]; ok {
		t.Stop()
		delete(c.cooldowns, paymentId)
	}
}

func (c *Controller) render(v schema.View) {
	c.renderer.Render(v)
}

func (c *Controller) emit(a *schema.Attempt, result string, credited decimal.Decimal) {
	metricOutcome(result)
	if c.onOutcome == nil {
		return
	}
	o := schema.Outcome{
		CreatedAt: c.clock.Now(),
		PaymentId: a.PaymentId,
		Flow:      a.Flow,
		Result:    result,
		Attempts:  a.Count,
	}
	if result == schema.ResultConfirmed {
		o.Credited = credited.String()
	}
	c.onOutcome(o)
}

func (c *Controller) persistedLockout(paymentId string, now time.Time) (time.Time, bool) {
	if c.store == nil {
		return time.Time{}, false
	}
	l, err := c.store.LoadLockout(paymentId)
	if err != nil {
		if err != schema.ErrNotExist {
			log.Error("c.store.LoadLockout(paymentId)", "err", err, "paymentId", paymentId)
		}
		return time.Time{}, false
	}
	if !now.Before(l.Until) {
		c.delLockout(paymentId)
		return time.Time{}, false
	}
	return l.Until, true
}

func (c *Controller) saveLockout(l schema.Lockout) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveLockout(l); err != nil {
		log.Error("c.store.SaveLockout(l)", "err", err, "paymentId", l.PaymentId)
	}
}

func (c *Controller) delLockout(paymentId string) {
	if c.store == nil {
		return
	}
	if err := c.store.DelLockout(paymentId); err != nil {
		log.Error("c.store.DelLockout(paymentId)", "err", err, "paymentId", paymentId)
	}
}

func (c *Controller) savePending(p schema.Pending) {
	if c.store == nil {
		return
	}
	if err := c.store.SavePending(p); err != nil {
		log.Error("c.store.SavePending(p)", "err", err, "paymentId", p.PaymentId)
	}
}

func (c *Controller) delPending(paymentId string) {
	if c.store == nil {
		return
	}
	if err := c.store.DelPending(paymentId); err != nil {
		log.Error("c.store.DelPending(paymentId)", "err", err, "paymentId", paymentId)
	}
}

// Resume restores a payment that was in flight before a restart. The window is
// measured from when the payment was first announced.
func (c *Controller) Resume(p schema.Pending) error {
	if p.PaymentId == "" {
		return schema.ErrNullPaymentId
	}
	if !schema.IsFlow(p.Flow) {
		return schema.ErrUnknownFlow
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := p.PaymentId
	if c.registry.IsExpired(id) || c.registry.Get(id) != nil {
		return nil
	}
	now := c.clock.Now()
	c.registry.Create(schema.Attempt{
		PaymentId:  id,
		Flow:       p.Flow,
		Boc:        p.Boc,
		Count:      min(p.Count, c.policy.MaxRetries),
		MaxRetries: c.policy.MaxRetries,
		StartTime:  p.CreatedAt,
	})
	left := c.policy.Window - now.Sub(p.CreatedAt)
	if left <= 0 {
		c.expireLocked(id)
		return schema.ErrPaymentExpired
	}
	c.tracker.Arm(id, left)

	if until, ok := c.persistedLockout(id, now); ok {
		a := c.registry.Update(id, func(a *schema.Attempt) {
			a.Count = a.MaxRetries
			a.CooldownUntil = until
		})
		c.cooldowns[id] = c.clock.AfterFunc(until.Sub(now), func() { c.clearCooldown(id, until) })
		c.render(limitReachedView(a, until.Sub(now), now))
		return schema.ErrVerifyLimit
	}
	if a := c.registry.Get(id); a.Exhausted() {
		c.render(exhaustedView(a, left, now))
		return schema.ErrVerifyLimit
	}
	c.attemptLocked(id)
	return nil
}

// PruneClosed drops attempts whose modal was closed and whose window has passed. They are
// tombstoned like any expired payment, without rendering anything.
func (c *Controller) PruneClosed() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	n := 0
	for id, a := range c.registry.GetAll() {
		if !a.Closed || !a.CooldownUntil.IsZero() || c.tracker.Armed(id) {
			continue
		}
		if now.Before(a.StartTime.Add(c.policy.Window)) {
			continue
		}
		c.tracker.Disarm(id)
		c.registry.Delete(id)
		c.registry.MarkExpired(id, now)
		c.delPending(id)
		c.emit(&a, schema.ResultTimedOut, decimal.Zero)
		n++
	}
	return n
}
