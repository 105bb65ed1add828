package b3cverify

import (
	"sync"
	"time"

	"github.com/everFinance/b3cverify/schema"
)

// Registry holds verification attempts keyed by paymentId, plus tombstones for
// payments whose wall-clock window expired.
type Registry struct {
	attempts map[string]*schema.Attempt
	expired  map[string]time.Time // key: paymentId, val: expired at
	locker   sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		attempts: make(map[string]*schema.Attempt),
		expired:  make(map[string]time.Time),
		locker:   sync.RWMutex{},
	}
}

// Create stores a fresh attempt; it returns false if one already exists.
func (r *Registry) Create(a schema.Attempt) bool {
	r.locker.Lock()
	defer r.locker.Unlock()
	if _, ok := r.attempts[a.PaymentId]; ok {
		return false
	}
	r.attempts[a.PaymentId] = &a
	return true
}

func (r *Registry) Get(paymentId string) *schema.Attempt {
	r.locker.RLock()
	defer r.locker.RUnlock()
	a, ok := r.attempts[paymentId]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

// Update applies fn to the stored attempt and returns a copy of the result.
func (r *Registry) Update(paymentId string, fn func(a *schema.Attempt)) *schema.Attempt {
	r.locker.Lock()
	defer r.locker.Unlock()
	a, ok := r.attempts[paymentId]
	if !ok {
		return nil
	}
	fn(a)
	if a.Count > a.MaxRetries {
		a.Count = a.MaxRetries
	}
	cp := *a
	return &cp
}

func (r *Registry) Delete(paymentId string) {
	r.locker.Lock()
	defer r.locker.Unlock()
	delete(r.attempts, paymentId)
}

func (r *Registry) GetAll() map[string]schema.Attempt {
	r.locker.RLock()
	defer r.locker.RUnlock()
	res := make(map[string]schema.Attempt, len(r.attempts))
	for id, a := range r.attempts {
		res[id] = *a
	}
	return res
}

func (r *Registry) Len() int {
	r.locker.RLock()
	defer r.locker.RUnlock()
	return len(r.attempts)
}

func (r *Registry) MarkExpired(paymentId string, at time.Time) {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.expired[paymentId] = at
}

func (r *Registry) IsExpired(paymentId string) bool {
	r.locker.RLock()
	defer r.locker.RUnlock()
	_, ok := r.expired[paymentId]
	return ok
}

func (r *Registry) ClearExpired(paymentId string) {
	r.locker.Lock()
	defer r.locker.Unlock()
	delete(r.expired, paymentId)
}

// PruneExpired drops tombstones older than before and returns how many were removed.
func (r *Registry) PruneExpired(before time.Time) int {
	r.locker.Lock()
	defer r.locker.Unlock()
	n := 0
	for id, at := range r.expired {
		if at.Before(before) {
			delete(r.expired, id)
			n++
		}
	}
	return n
}
