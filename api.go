package b3cverify

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/everFinance/b3cverify/common"
	"github.com/everFinance/b3cverify/schema"
	"github.com/gin-gonic/gin"
)

const (
	apiRateLimit     = 120 // per ip per minute
	maxOutcomesLimit = 500
)

func (s *B3cVerify) runAPI(port string) {
	s.registerRoutes()
	if err := s.engine.Run(port); err != nil {
		panic(err)
	}
}

func (s *B3cVerify) registerRoutes() {
	r := s.engine
	r.Use(common.CORSMiddleware())
	v1 := r.Group("/")
	{
		v1.Use(common.LimiterMiddleware(apiRateLimit, "M", s.rateWhitelist()))

		v1.POST("/verify/:paymentId", s.beginVerify)
		v1.GET("/verify/:paymentId", s.getView)
		v1.POST("/verify/:paymentId/close", s.closeVerify)
		v1.POST("/verify/:paymentId/reset", s.resetVerify)

		v1.GET("/attempts", s.getAttempts)
		v1.GET("/balance", s.getBalance)
		v1.GET("/outcomes", s.getOutcomes)
	}
}

func (s *B3cVerify) beginVerify(c *gin.Context) {
	req := schema.VerifyReq{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorResponse(c, err.Error())
			return
		}
	}
	paymentId := c.Param("paymentId")
	req.PaymentId = paymentId

	err := s.ctrl.Begin(req)
	switch {
	case err == nil:
	case errors.Is(err, schema.ErrPaymentExpired):
		c.JSON(http.StatusGone, schema.RespErr{Err: err.Error()})
		return
	case errors.Is(err, schema.ErrVerifyLimit):
		view, _ := s.views.Get(paymentId)
		c.JSON(http.StatusTooManyRequests, view)
		return
	default:
		errorResponse(c, err.Error())
		return
	}

	view, ok := s.views.Get(paymentId)
	if !ok {
		internalErrorResponse(c, "view not rendered")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *B3cVerify) getView(c *gin.Context) {
	view, ok := s.views.Get(c.Param("paymentId"))
	if !ok {
		c.JSON(http.StatusNotFound, schema.RespErr{Err: schema.ErrNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *B3cVerify) closeVerify(c *gin.Context) {
	s.ctrl.Close(c.Param("paymentId"))
	c.JSON(http.StatusOK, "ok")
}

func (s *B3cVerify) resetVerify(c *gin.Context) {
	s.ctrl.Reset(c.Param("paymentId"))
	c.JSON(http.StatusOK, "ok")
}

func (s *B3cVerify) getAttempts(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Registry().GetAll())
}

func (s *B3cVerify) getBalance(c *gin.Context) {
	if f, ok := s.views.Balance(s.config.Account); ok {
		c.JSON(http.StatusOK, f)
		return
	}
	bal, ok := s.refresher.LastKnown()
	if !ok {
		c.JSON(http.StatusNotFound, schema.RespErr{Err: schema.ErrNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, schema.BalanceFrame{Account: s.config.Account, Value: bal, Final: true})
}

func (s *B3cVerify) getOutcomes(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			errorResponse(c, "invalid limit")
			return
		}
		limit = n
	}
	if limit > maxOutcomesLimit {
		limit = maxOutcomesLimit
	}

	if paymentId := c.Query("paymentId"); paymentId != "" {
		outcomes, err := s.wdb.GetOutcomesByPaymentId(paymentId)
		if err != nil {
			log.Error("s.wdb.GetOutcomesByPaymentId(paymentId)", "err", err, "paymentId", paymentId)
			internalErrorResponse(c, err.Error())
			return
		}
		c.JSON(http.StatusOK, outcomes)
		return
	}

	outcomes, err := s.wdb.GetOutcomes(limit)
	if err != nil {
		log.Error("s.wdb.GetOutcomes(limit)", "err", err)
		internalErrorResponse(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, outcomes)
}

func (s *B3cVerify) rateWhitelist() map[string]struct{} {
	whitelist := make(map[string]struct{}, len(s.config.RateWhitelist))
	for _, w := range s.config.RateWhitelist {
		if w = strings.TrimSpace(w); w != "" {
			whitelist[w] = struct{}{}
		}
	}
	return whitelist
}

func errorResponse(c *gin.Context, err string) {
	// client error
	c.JSON(http.StatusBadRequest, schema.RespErr{
		Err: err,
	})
}

func internalErrorResponse(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, schema.RespErr{
		Err: err,
	})
}
