// Package server exposes the pricer and the backtest engine over HTTP.
package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contactkeval/bs-replay/internal/backtest"
	"github.com/contactkeval/bs-replay/internal/data"
	"github.com/contactkeval/bs-replay/internal/errors"
	"github.com/contactkeval/bs-replay/internal/logger"
	"github.com/contactkeval/bs-replay/internal/pricing"
	"github.com/contactkeval/bs-replay/internal/report"
)

// Server serves backtests over a series loaded once at startup.
type Server struct {
	series     data.Series
	underlying string
	base       backtest.Config
	router     *gin.Engine
}

// BacktestRequest overrides fields of the startup backtest config. Nil fields
// keep the startup value.
type BacktestRequest struct {
	StartIndex  *int     `json:"start_index"`
	StrikeRatio *float64 `json:"strike_ratio"`
	RateMode    *string  `json:"rate_mode"`
	Rate        *float64 `json:"rate"`
	Workers     *int     `json:"workers"`
	OmitSteps   bool     `json:"omit_steps"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func New(series data.Series, underlying string, base backtest.Config) *Server {
	s := &Server{
		series:     series,
		underlying: underlying,
		base:       base.WithDefaults(),
		router:     gin.New(),
	}
	s.router.Use(gin.Recovery(), requestLogger())
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/price", s.handlePrice)
	s.router.POST("/backtest", s.handleBacktest)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("REST server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Infof("REST server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"underlying": s.underlying,
		"points":     s.series.Len(),
	})
}

func (s *Server) handlePrice(c *gin.Context) {
	var req pricing.ContractParameters
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: int(errors.ErrCodeInvalidConfig)})
		return
	}

	price, err := req.Price()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"price": price})
}

func (s *Server) handleBacktest(c *gin.Context) {
	var req BacktestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: int(errors.ErrCodeInvalidConfig)})
			return
		}
	}

	cfg := s.base
	if req.StartIndex != nil {
		cfg.StartIndex = *req.StartIndex
	}
	if req.StrikeRatio != nil {
		cfg.StrikeRatio = *req.StrikeRatio
	}
	if req.RateMode != nil {
		cfg.RateMode = backtest.RateMode(*req.RateMode)
	}
	if req.Rate != nil {
		cfg.Rate = *req.Rate
	}
	if req.Workers != nil {
		cfg.Workers = min(*req.Workers, runtime.NumCPU())
	}

	res, err := backtest.NewEngine(s.series, cfg).Run(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	rep := report.New(res, s.underlying)
	if req.OmitSteps {
		rep.Steps = nil
	}
	c.JSON(http.StatusOK, rep)
}

func writeError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	c.JSON(statusFor(code), errorResponse{Error: err.Error(), Code: int(code)})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeDomain,
		errors.ErrCodeInvalidOptionType,
		errors.ErrCodeInsufficientHistory,
		errors.ErrCodeInsufficientData,
		errors.ErrCodeInvalidConfig:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s -> %d in %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
