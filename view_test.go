package b3cverify

import (
	"testing"
	"time"

	"github.com/everFinance/b3cverify/schema"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFmtClock(t *testing.T) {
	assert.Equal(t, "10:00", fmtClock(10*time.Minute))
	assert.Equal(t, "00:01", fmtClock(200*time.Millisecond))
	assert.Equal(t, "01:05", fmtClock(65*time.Second))
	assert.Equal(t, "00:00", fmtClock(-time.Second))
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0, progress(0, 5))
	assert.Equal(t, 60, progress(3, 5))
	assert.Equal(t, 100, progress(5, 5))
	assert.Equal(t, 0, progress(1, 0))
}

func TestViews(t *testing.T) {
	now := time.Now()
	a := &schema.Attempt{PaymentId: "p1", Count: 2, MaxRetries: 5}

	v := verifyingView(a, time.Minute, now)
	assert.Equal(t, "Verificando pago... Intento 2 de 5", v.Message)
	assert.False(t, v.VerifyEnabled)
	assert.False(t, v.Terminal())

	v = pendingView(a, 90*time.Second, 3*time.Second, now)
	assert.Contains(t, v.Message, "Próxima verificación en 3s")
	assert.Contains(t, v.Message, "01:30")

	v = exhaustedView(a, time.Minute, now)
	assert.Contains(t, v.Message, "3 intento(s) restante(s)")
	assert.True(t, v.Terminal())

	v = timedOutView("p1", nil, now)
	assert.Equal(t, schema.StateTimedOut, v.State)
	assert.Contains(t, v.Message, "ID: p1")

	v = confirmedView(a, decimal.RequireFromString("12.5"), now)
	assert.Equal(t, "¡Pago confirmado! +12.5 B3C", v.Message)
	assert.Equal(t, 100, v.Progress)

	v = idleView("p1", now)
	assert.True(t, v.VerifyEnabled)
	assert.False(t, v.Terminal())
}

func TestViewStore(t *testing.T) {
	s := NewViewStore()
	s.Render(schema.View{PaymentId: "p1", State: schema.StateVerifying})
	s.Render(schema.View{PaymentId: "p1", State: schema.StatePendingWait})

	v, ok := s.Get("p1")
	assert.True(t, ok)
	assert.Equal(t, schema.StatePendingWait, v.State)

	s.Clear("p1")
	_, ok = s.Get("p1")
	assert.False(t, ok)
	assert.Equal(t, []string{schema.StateVerifying, schema.StatePendingWait}, s.History("p1"))
}
