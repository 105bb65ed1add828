package b3cverify

import (
	"sync"
	"time"

	"github.com/everFinance/b3cverify/cache"
	"github.com/everFinance/b3cverify/schema"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

var DefaultRechecks = []time.Duration{2 * time.Second, 5 * time.Second}

type WalletReader interface {
	GetBalance() (*schema.RespBalance, error)
	GetTransactions(offset, limit int) (*schema.RespTransactions, error)
}

// Refresher re-reads balance and history after a confirmed deposit. The backend is
// eventually consistent, so the balance is read again a couple of times later on.
type Refresher struct {
	account   string
	clock     clockwork.Clock
	wallet    WalletReader
	display   BalanceDisplay
	cache     cache.ICache // last known balance
	txLimit   int
	rechecks  []time.Duration
	animation Animation

	gen      uint64 // current animation
	shownIdx int    // highest frame index displayed for gen
	locker   sync.Mutex
}

func NewRefresher(account string, clock clockwork.Clock, wallet WalletReader, display BalanceDisplay, lastKnown cache.ICache) *Refresher {
	return &Refresher{
		account:   account,
		clock:     clock,
		wallet:    wallet,
		display:   display,
		cache:     lastKnown,
		txLimit:   schema.DefaultTxPageLimit,
		rechecks:  DefaultRechecks,
		animation: DefaultAnimation(),
	}
}

func (r *Refresher) SetTxLimit(limit int) {
	if limit > 0 {
		r.txLimit = limit
	}
}

func (r *Refresher) SetAnimation(an Animation) {
	r.animation = an
}

func (r *Refresher) RefreshAfterConfirmation() {
	for _, d := range r.rechecks {
		r.clock.AfterFunc(d, r.RefreshBalance)
	}
	r.RefreshBalance()
	r.RefreshTransactions()
}

func (r *Refresher) RefreshBalance() {
	res, err := r.wallet.GetBalance()
	if err != nil {
		log.Error("r.wallet.GetBalance()", "err", err, "account", r.account)
		return
	}
	r.applyBalance(res.Balance)
}

func (r *Refresher) RefreshTransactions() {
	res, err := r.wallet.GetTransactions(0, r.txLimit)
	if err != nil {
		log.Error("r.wallet.GetTransactions(0, r.txLimit)", "err", err, "account", r.account)
		return
	}
	r.display.ShowTransactions(r.account, res.Transactions)
}

// LastKnown returns the balance most recently read from the backend.
func (r *Refresher) LastKnown() (decimal.Decimal, bool) {
	data, err := r.cache.Get(r.cacheKey())
	if err != nil {
		return decimal.Zero, false
	}
	bal, err := decimal.NewFromString(string(data))
	if err != nil {
		log.Warn("invalid cached balance", "err", err, "val", string(data))
		return decimal.Zero, false
	}
	return bal, true
}

func (r *Refresher) applyBalance(bal decimal.Decimal) {
	r.locker.Lock()
	defer r.locker.Unlock()

	last, known := r.LastKnown()
	if err := r.cache.Set(r.cacheKey(), []byte(bal.String())); err != nil {
		log.Error("r.cache.Set(balance)", "err", err, "account", r.account)
	}
	if known && last.Equal(bal) {
		return
	}

	r.gen++
	r.shownIdx = 0
	if !known {
		r.display.ShowBalance(schema.BalanceFrame{Account: r.account, Value: bal, Final: true})
		return
	}

	gen := r.gen
	frames := r.animation.Frames(last, bal)
	interval := r.animation.Interval()
	for i, v := range frames {
		idx, val, final := i+1, v, i == len(frames)-1
		r.clock.AfterFunc(interval*time.Duration(idx), func() {
			r.showFrame(gen, idx, schema.BalanceFrame{Account: r.account, Value: val, Final: final})
		})
	}
}

// showFrame drops frames of a superseded animation and frames that arrive out of order.
func (r *Refresher) showFrame(gen uint64, idx int, f schema.BalanceFrame) {
	r.locker.Lock()
	defer r.locker.Unlock()
	if gen != r.gen || idx <= r.shownIdx {
		return
	}
	r.shownIdx = idx
	r.display.ShowBalance(f)
}

func (r *Refresher) cacheKey() string {
	return "balance-" + r.account
}
