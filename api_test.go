package b3cverify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/everFinance/b3cverify/cache"
	"github.com/everFinance/b3cverify/schema"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, policy schema.Policy, v Verifier) (*B3cVerify, *clockwork.FakeClock) {
	t.Helper()
	return newTestAppWithConfig(t, schema.Config{Account: "acc-1"}, policy, v)
}

func newTestAppWithConfig(t *testing.T, cfg schema.Config, policy schema.Policy, v Verifier) (*B3cVerify, *clockwork.FakeClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fc := clockwork.NewFakeClock()
	views := NewViewStore()
	lc, err := cache.NewLocalCache(time.Hour)
	require.NoError(t, err)
	wallet := &fakeWallet{balances: []decimal.Decimal{decimal.NewFromInt(7)}}

	s := &B3cVerify{
		config:      cfg,
		engine:      gin.New(),
		clock:       fc,
		ctrl:        NewController(policy, fc, v, views),
		refresher:   NewRefresher("acc-1", fc, wallet, views, lc.Cache),
		views:       views,
		wdb:         newTestWdb(t),
		outcomeChan: make(chan schema.Outcome, 10),
		done:        make(chan struct{}),
	}
	s.registerRoutes()
	return s, fc
}

func doRequest(s *B3cVerify, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) schema.View {
	t.Helper()
	v := schema.View{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestApiBeginVerify(t *testing.T) {
	v := newFakeVerifier(pending())
	gate := v.Block()
	defer close(gate)
	s, _ := newTestApp(t, schema.DefaultPolicy(), v)

	w := doRequest(s, http.MethodPost, "/verify/p1", `{"flow":"purchase","boc":"te6cc"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	view := decodeView(t, w)
	assert.Equal(t, schema.StateVerifying, view.State)
	assert.Equal(t, 1, view.Attempt)

	assert.Equal(t, "p1", <-v.started)
	v.mu.Lock()
	assert.Equal(t, []string{"te6cc"}, v.boc)
	v.mu.Unlock()

	w = doRequest(s, http.MethodGet, "/verify/p1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p1", decodeView(t, w).PaymentId)

	w = doRequest(s, http.MethodGet, "/attempts", "")
	assert.Equal(t, http.StatusOK, w.Code)
	attempts := map[string]schema.Attempt{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &attempts))
	assert.Equal(t, schema.FlowPurchase, attempts["p1"].Flow)
}

func TestApiBadRequests(t *testing.T) {
	s, _ := newTestApp(t, schema.DefaultPolicy(), newFakeVerifier(pending()))

	w := doRequest(s, http.MethodPost, "/verify/p1", `{"flow":"swap"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), schema.ErrUnknownFlow.Error())

	w = doRequest(s, http.MethodPost, "/verify/p1", `{"boc":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(s, http.MethodGet, "/verify/nothing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(s, http.MethodGet, "/outcomes?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApiLimitReached(t *testing.T) {
	v := newFakeVerifier(pending())
	s, _ := newTestApp(t, smallPolicy(1), v)

	w := doRequest(s, http.MethodPost, "/verify/p1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	waitView(t, s.views, "p1", schema.StateExhausted, 1)

	w = doRequest(s, http.MethodPost, "/verify/p1", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, schema.StateLimitReached, decodeView(t, w).State)
}

func TestApiExpired(t *testing.T) {
	v := newFakeVerifier(pending())
	s, fc := newTestApp(t, schema.DefaultPolicy(), v)

	w := doRequest(s, http.MethodPost, "/verify/p1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	waitView(t, s.views, "p1", schema.StatePendingWait, 1)

	fc.Advance(15 * time.Minute)
	waitView(t, s.views, "p1", schema.StateTimedOut, 1)

	w = doRequest(s, http.MethodPost, "/verify/p1", "")
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Contains(t, w.Body.String(), schema.ErrPaymentExpired.Error())
}

func TestApiCloseAndReset(t *testing.T) {
	v := newFakeVerifier(pending())
	s, _ := newTestApp(t, schema.DefaultPolicy(), v)

	doRequest(s, http.MethodPost, "/verify/p1", "")
	waitView(t, s.views, "p1", schema.StatePendingWait, 1)

	w := doRequest(s, http.MethodPost, "/verify/p1/close", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(s, http.MethodGet, "/verify/p1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotNil(t, s.ctrl.Registry().Get("p1"))

	w = doRequest(s, http.MethodPost, "/verify/p1/reset", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, s.ctrl.Registry().Get("p1"))
}

func TestApiBalance(t *testing.T) {
	s, _ := newTestApp(t, schema.DefaultPolicy(), newFakeVerifier(pending()))

	w := doRequest(s, http.MethodGet, "/balance", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	s.refresher.RefreshBalance()
	w = doRequest(s, http.MethodGet, "/balance", "")
	assert.Equal(t, http.StatusOK, w.Code)
	f := schema.BalanceFrame{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &f))
	assert.Equal(t, "acc-1", f.Account)
	assert.Equal(t, "7", f.Value.String())
}

func TestApiOutcomes(t *testing.T) {
	s, _ := newTestApp(t, schema.DefaultPolicy(), newFakeVerifier(pending()))

	s.processOutcome(schema.Outcome{PaymentId: "p1", Flow: schema.FlowDeposit, Result: schema.ResultTimedOut, Attempts: 3})
	s.processOutcome(schema.Outcome{PaymentId: "p2", Flow: schema.FlowDeposit, Result: schema.ResultConfirmed, Attempts: 1, Credited: "5"})

	w := doRequest(s, http.MethodGet, "/outcomes?limit=1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	outcomes := make([]schema.Outcome, 0)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcomes))
	require.Len(t, outcomes, 1)
	assert.Equal(t, "p2", outcomes[0].PaymentId)

	w = doRequest(s, http.MethodGet, "/outcomes?paymentId=p1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcomes))
	require.Len(t, outcomes, 1)
	assert.Equal(t, schema.ResultTimedOut, outcomes[0].Result)
}

func TestOutcomesFlowToAudit(t *testing.T) {
	v := newFakeVerifier(confirmed(950))
	s, _ := newTestApp(t, schema.DefaultPolicy(), v)
	s.ctrl.OnOutcome(s.pushOutcome)
	go s.runOutcomes()
	defer close(s.done)

	require.NoError(t, s.ctrl.Begin(schema.VerifyReq{PaymentId: "p1", Flow: schema.FlowDeposit}))
	require.Eventually(t, func() bool {
		n, err := s.wdb.CountByResult(schema.ResultConfirmed)
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	outcomes, err := s.wdb.GetOutcomesByPaymentId("p1")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "950", outcomes[0].Credited)
}

func TestApiRateWhitelist(t *testing.T) {
	cfg := schema.Config{Account: "acc-1", RateWhitelist: []string{" https://t.me ", ""}}
	s, _ := newTestAppWithConfig(t, cfg, schema.DefaultPolicy(), newFakeVerifier(pending()))

	get := func(origin string) int {
		req := httptest.NewRequest(http.MethodGet, "/attempts", nil)
		req.Header.Set("origin", origin)
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < apiRateLimit+5; i++ {
		assert.Equal(t, http.StatusOK, get("https://t.me"))
	}

	codes := make(map[int]int)
	for i := 0; i < apiRateLimit+5; i++ {
		codes[get("https://other.app")]++
	}
	assert.Equal(t, apiRateLimit, codes[http.StatusOK])
	assert.Equal(t, 5, codes[http.StatusTooManyRequests])
}
