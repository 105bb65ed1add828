package b3cverify

import (
	"fmt"
	"sync"
	"time"

	"github.com/everFinance/b3cverify/schema"
	"github.com/shopspring/decimal"
)

// Renderer receives every view transition of the controller.
type Renderer interface {
	Render(v schema.View)
	// Clear drops whatever is displayed for a payment, e.g. when its modal is closed.
	Clear(paymentId string)
}

// BalanceDisplay receives refreshed wallet data.
type BalanceDisplay interface {
	ShowBalance(f schema.BalanceFrame)
	ShowTransactions(account string, txs []schema.Transaction)
}

func progress(count, max int) int {
	if max <= 0 {
		return 0
	}
	return count * 100 / max
}

// fmtClock renders a duration as mm:ss, rounded up to the second.
func fmtClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func baseView(a *schema.Attempt, state string, now time.Time) schema.View {
	return schema.View{
		PaymentId:     a.PaymentId,
		State:         state,
		Attempt:       a.Count,
		MaxRetries:    a.MaxRetries,
		Progress:      progress(a.Count, a.MaxRetries),
		RetriesLeft:   a.RetriesLeft(),
		VerifyEnabled: true,
		UpdatedAt:     now,
	}
}

func verifyingView(a *schema.Attempt, remaining time.Duration, now time.Time) schema.View {
	v := baseView(a, schema.StateVerifying, now)
	v.Remaining = remaining
	v.VerifyEnabled = false
	v.Message = fmt.Sprintf("Verificando pago... Intento %d de %d", a.Count, a.MaxRetries)
	return v
}

func pendingView(a *schema.Attempt, remaining, next time.Duration, now time.Time) schema.View {
	v := baseView(a, schema.StatePendingWait, now)
	v.Remaining = remaining
	v.NextPollIn = next
	v.VerifyEnabled = false
	v.Message = fmt.Sprintf("Pago aún no detectado. Intento %d de %d. Próxima verificación en %ds. Tiempo restante: %s",
		a.Count, a.MaxRetries, int(next/time.Second), fmtClock(remaining))
	return v
}

func exhaustedView(a *schema.Attempt, remaining time.Duration, now time.Time) schema.View {
	v := baseView(a, schema.StateExhausted, now)
	v.Remaining = remaining
	v.RetryEnabled = true
	v.RetryLabel = "Reintentar más tarde"
	v.Message = fmt.Sprintf("No pudimos confirmar tu pago. %d intento(s) restante(s).", a.RetriesLeft())
	return v
}

func limitReachedView(a *schema.Attempt, wait time.Duration, now time.Time) schema.View {
	v := baseView(a, schema.StateLimitReached, now)
	v.CooldownLeft = wait
	v.VerifyEnabled = false
	v.RetryLabel = fmt.Sprintf("Espera %s", fmtClock(wait))
	v.Message = fmt.Sprintf("Límite de verificaciones alcanzado. Podrás intentarlo de nuevo en %s.", fmtClock(wait))
	return v
}

func timedOutView(paymentId string, a *schema.Attempt, now time.Time) schema.View {
	v := schema.View{PaymentId: paymentId, State: schema.StateTimedOut, UpdatedAt: now}
	if a != nil {
		v.Attempt, v.MaxRetries = a.Count, a.MaxRetries
		v.Progress = progress(a.Count, a.MaxRetries)
	}
	v.Message = fmt.Sprintf("Tiempo de espera agotado. Si ya enviaste el pago, contacta a soporte con el ID: %s", paymentId)
	return v
}

func errorView(a *schema.Attempt, cause string, now time.Time) schema.View {
	v := baseView(a, schema.StateError, now)
	v.RetryEnabled = true
	v.RetryLabel = "Reintentar"
	if cause == "" {
		v.Message = "Error de conexión. Pulsa reintentar para verificar de nuevo."
	} else {
		v.Message = fmt.Sprintf("El servidor rechazó la verificación (%s). Pulsa reintentar.", cause)
	}
	return v
}

func confirmedView(a *schema.Attempt, credited decimal.Decimal, now time.Time) schema.View {
	v := baseView(a, schema.StateConfirmed, now)
	v.Progress = 100
	v.VerifyEnabled = false
	v.Credited = credited
	v.Message = fmt.Sprintf("¡Pago confirmado! +%s B3C", credited.String())
	return v
}

func idleView(paymentId string, now time.Time) schema.View {
	return schema.View{
		PaymentId:     paymentId,
		State:         schema.StateIdle,
		VerifyEnabled: true,
		Message:       "Ya puedes volver a verificar tu pago.",
		UpdatedAt:     now,
	}
}

// ViewStore keeps the latest view per payment and the latest wallet data; the
// local API serves it to front ends.
type ViewStore struct {
	views   map[string]schema.View
	history map[string][]string // key: paymentId, val: rendered states in order
	balance map[string]schema.BalanceFrame
	txs     map[string][]schema.Transaction
	locker  sync.RWMutex
}

func NewViewStore() *ViewStore {
	return &ViewStore{
		views:   make(map[string]schema.View),
		history: make(map[string][]string),
		balance: make(map[string]schema.BalanceFrame),
		txs:     make(map[string][]schema.Transaction),
	}
}

func (s *ViewStore) Render(v schema.View) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.views[v.PaymentId] = v
	s.history[v.PaymentId] = append(s.history[v.PaymentId], v.State)
	log.Debug("render view", "paymentId", v.PaymentId, "state", v.State, "msg", v.Message)
}

func (s *ViewStore) Clear(paymentId string) {
	s.locker.Lock()
	defer s.locker.Unlock()
	delete(s.views, paymentId)
}

func (s *ViewStore) Get(paymentId string) (schema.View, bool) {
	s.locker.RLock()
	defer s.locker.RUnlock()
	v, ok := s.views[paymentId]
	return v, ok
}

// History lists every state rendered for a payment, including cleared ones.
func (s *ViewStore) History(paymentId string) []string {
	s.locker.RLock()
	defer s.locker.RUnlock()
	return append([]string(nil), s.history[paymentId]...)
}

func (s *ViewStore) ShowBalance(f schema.BalanceFrame) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.balance[f.Account] = f
}

func (s *ViewStore) ShowTransactions(account string, txs []schema.Transaction) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.txs[account] = txs
}

func (s *ViewStore) Balance(account string) (schema.BalanceFrame, bool) {
	s.locker.RLock()
	defer s.locker.RUnlock()
	f, ok := s.balance[account]
	return f, ok
}

func (s *ViewStore) Transactions(account string) []schema.Transaction {
	s.locker.RLock()
	defer s.locker.RUnlock()
	return s.txs[account]
}
