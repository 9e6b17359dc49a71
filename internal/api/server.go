package api

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"qintegrity/app"
	"qintegrity/domain/core"
	"qintegrity/domain/stats"
	apperrors "qintegrity/internal/errors"
	"qintegrity/ports"
)

// Server exposes stored sweep results over HTTP
type Server struct {
	router  *gin.Engine
	reports *app.ReportService
	ledger  ports.LedgerReaderPort
	hub     *SSEHub
	logger  zerolog.Logger
}

// NewServer wires the routes. ledger and hub may be nil; their routes then
// answer 503.
func NewServer(reports *app.ReportService, ledger ports.LedgerReaderPort, hub *SSEHub, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:  gin.New(),
		reports: reports,
		ledger:  ledger,
		hub:     hub,
		logger:  logger.With().Str("component", "api").Logger(),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

// Handler returns the http.Handler for the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("api server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/matrices", s.handleListMatrices)
		api.GET("/matrices/:name", s.handleMatrixIntervals)
		api.GET("/matrices/:name/chart", s.handleMatrixChart)
		api.GET("/aggregate", s.handleAggregate)

		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
		api.GET("/runs/:id/configs", s.handleRunConfigs)

		api.GET("/events", s.handleEvents)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListMatrices(c *gin.Context) {
	names, err := s.reports.ListMatrices(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matrices": names, "count": len(names)})
}

func (s *Server) handleMatrixIntervals(c *gin.Context) {
	name := c.Param("name")
	z, ok := s.queryFloat(c, "z", s.reports.ChartOptions().Z)
	if !ok {
		return
	}

	cells, err := s.reports.Intervals(c.Request.Context(), name, z)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":  name,
		"z":     z,
		"cells": cells,
	})
}

func (s *Server) handleMatrixChart(c *gin.Context) {
	opts := s.reports.ChartOptions()
	var ok bool
	if opts.Z, ok = s.queryFloat(c, "z", opts.Z); !ok {
		return
	}
	if opts.DPI, ok = s.queryInt(c, "dpi", opts.DPI); !ok {
		return
	}
	if opts.DPI > ports.MaxChartDPI {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "dpi must not exceed " + strconv.Itoa(ports.MaxChartDPI),
			"code":  apperrors.CodeInvalidInput,
		})
		return
	}
	if opts.NumTrials, ok = s.queryInt(c, "trials", opts.NumTrials); !ok {
		return
	}

	var buf bytes.Buffer
	if err := s.reports.RenderChart(c.Request.Context(), &buf, c.Param("name"), opts); err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleAggregate(c *gin.Context) {
	level, ok := s.queryFloat(c, "confidence", 0.95)
	if !ok {
		return
	}
	if _, err := stats.ZScoreForConfidence(level); err != nil {
		s.writeError(c, apperrors.WithCode(apperrors.CodeInvalidInput, err))
		return
	}

	aggregates, err := s.reports.Aggregate(c.Request.Context(), level)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confidence": level, "configs": aggregates})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if !s.requireLedger(c) {
		return
	}
	limit, ok := s.queryInt(c, "limit", 100)
	if !ok {
		return
	}

	runs, err := s.ledger.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(c *gin.Context) {
	runID, ok := s.runID(c)
	if !ok {
		return
	}
	run, err := s.ledger.GetRun(c.Request.Context(), runID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleRunConfigs(c *gin.Context) {
	runID, ok := s.runID(c)
	if !ok {
		return
	}
	if _, err := s.ledger.GetRun(c.Request.Context(), runID); err != nil {
		s.writeError(c, err)
		return
	}
	results, err := s.ledger.GetConfigResults(c.Request.Context(), runID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "configs": results, "count": len(results)})
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "progress stream not enabled"})
		return
	}
	s.hub.HandleSSE(c)
}

func (s *Server) runID(c *gin.Context) (core.RunID, bool) {
	if !s.requireLedger(c) {
		return "", false
	}
	runID, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		s.writeError(c, apperrors.WithCode(apperrors.CodeInvalidInput, err))
		return "", false
	}
	return runID, true
}

func (s *Server) requireLedger(c *gin.Context) bool {
	if s.ledger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run ledger not configured"})
		return false
	}
	return true
}

func (s *Server) queryFloat(c *gin.Context, key string, def float64) (float64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a positive number", "code": apperrors.CodeInvalidInput})
		return 0, false
	}
	return v, true
}

func (s *Server) queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a non-negative integer", "code": apperrors.CodeInvalidInput})
		return 0, false
	}
	return v, true
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := apperrors.GetCode(err)

	switch {
	case core.IsNotFoundError(err) || code == apperrors.CodeNotFound:
		status = http.StatusNotFound
		code = apperrors.CodeNotFound
	case core.IsValidationError(err) || code == apperrors.CodeInvalidInput || code == apperrors.CodeConfigInvalid:
		status = http.StatusBadRequest
		if code == "UNKNOWN" {
			code = apperrors.CodeInvalidInput
		}
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
