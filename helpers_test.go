package b3cverify

import (
	"sync"
	"testing"
	"time"

	"github.com/everFinance/b3cverify/schema"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type verifyResult struct {
	res *schema.RespVerify
	err error
}

func pending() verifyResult {
	return verifyResult{res: &schema.RespVerify{Success: true, Status: schema.StatusPending}}
}

func confirmed(credited int64) verifyResult {
	d := decimal.NewFromInt(credited)
	return verifyResult{res: &schema.RespVerify{Success: true, Status: schema.StatusConfirmed, B3cCredited: &d}}
}

func failed(err error) verifyResult {
	return verifyResult{err: err}
}

// fakeVerifier replays a script of answers; the last one repeats.
type fakeVerifier struct {
	script  []verifyResult
	calls   int
	boc     []string
	gate    chan struct{} // when set, calls block until it is closed
	started chan string
	mu      sync.Mutex
}

func newFakeVerifier(script ...verifyResult) *fakeVerifier {
	return &fakeVerifier{script: script, started: make(chan string, 100)}
}

func (f *fakeVerifier) Verify(flow, paymentId, boc string) (*schema.RespVerify, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.boc = append(f.boc, boc)
	gate := f.gate
	f.mu.Unlock()

	f.started <- paymentId
	if gate != nil {
		<-gate
	}
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	r := f.script[i]
	return r.res, r.err
}

func (f *fakeVerifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeVerifier) Block() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

func (f *fakeVerifier) Unblock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = nil
}

type fakeWallet struct {
	balances []decimal.Decimal // the last one repeats
	txs      []schema.Transaction
	balCalls int
	txCalls  int
	mu       sync.Mutex
}

func (w *fakeWallet) GetBalance() (*schema.RespBalance, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.balCalls
	w.balCalls++
	if i >= len(w.balances) {
		i = len(w.balances) - 1
	}
	return &schema.RespBalance{Success: true, Balance: w.balances[i]}, nil
}

func (w *fakeWallet) GetTransactions(offset, limit int) (*schema.RespTransactions, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.txCalls++
	return &schema.RespTransactions{Success: true, Transactions: w.txs}, nil
}

func (w *fakeWallet) BalanceCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balCalls
}

func (w *fakeWallet) TxCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.txCalls
}

func newTestController(t *testing.T, policy schema.Policy, v Verifier) (*Controller, *ViewStore, *clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	views := NewViewStore()
	return NewController(policy, fc, v, views), views, fc
}

func smallPolicy(maxRetries int) schema.Policy {
	p := schema.DefaultPolicy()
	p.MaxRetries = maxRetries
	return p
}

func waitView(t *testing.T, views *ViewStore, paymentId, state string, attempt int) schema.View {
	t.Helper()
	var v schema.View
	require.Eventually(t, func() bool {
		cur, ok := views.Get(paymentId)
		if !ok || cur.State != state || cur.Attempt != attempt {
			return false
		}
		v = cur
		return true
	}, 2*time.Second, 5*time.Millisecond, "want %s at attempt %d", state, attempt)
	return v
}

func countState(history []string, state string) int {
	n := 0
	for _, s := range history {
		if s == state {
			n++
		}
	}
	return n
}
