// Package api exposes the monitor's alert history, statistics and a one-off
// scan endpoint over HTTP for operators.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/alert"
	"github.com/mikey/url-threat-monitor/internal/core"
	"github.com/mikey/url-threat-monitor/internal/extract"
	"github.com/mikey/url-threat-monitor/internal/orchestrator"
	"github.com/mikey/url-threat-monitor/internal/ports"
)

// AlertService is the part of the dispatcher the API serves
type AlertService interface {
	History() *alert.History
	Summary() alert.Summary
	Clear()
	Export(path string) (string, bool)
}

// Monitor is the part of the orchestrator the API serves
type Monitor interface {
	Stats() orchestrator.Stats
	ScanURL(ctx context.Context, target string) core.ScanOutcome
}

const defaultListLimit = 50

// Server is the operator HTTP API
type Server struct {
	alerts  AlertService
	monitor Monitor
	archive ports.AlertArchive
	token   string
	logger  *zap.Logger
	engine  *gin.Engine
	http    *http.Server
}

// NewServer builds the router. archive may be nil; an empty token disables
// authentication.
func NewServer(addr, token string, alerts AlertService, monitor Monitor, archive ports.AlertArchive, logger *zap.Logger) *Server {
	s := &Server{
		alerts:  alerts,
		monitor: monitor,
		archive: archive,
		token:   token,
		logger:  logger,
		engine:  gin.New(),
	}

	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.engine.GET("/healthz", s.health)

	api := s.engine.Group("/api", s.requireToken())
	api.GET("/alerts", s.listAlerts)
	api.GET("/alerts/summary", s.summary)
	api.POST("/alerts/clear", s.clearAlerts)
	api.POST("/alerts/export", s.exportAlerts)
	api.GET("/archive", s.archived)
	api.GET("/stats", s.stats)
	api.POST("/scan", s.scan)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Starting operator API", zap.String("address", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("API request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		given := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(given), []byte(s.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func limitParam(c *gin.Context) (int, bool) {
	raw := c.DefaultQuery("limit", strconv.Itoa(defaultListLimit))
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return limit, true
}

func (s *Server) listAlerts(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	alerts := s.alerts.History().Latest(limit)
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) summary(c *gin.Context) {
	c.JSON(http.StatusOK, s.alerts.Summary())
}

func (s *Server) clearAlerts(c *gin.Context) {
	s.alerts.Clear()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

type exportRequest struct {
	Path string `json:"path"`
}

func (s *Server) exportAlerts(c *gin.Context) {
	var req exportRequest
	// an empty body exports to the default location
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	path, ok := s.alerts.Export(req.Path)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (s *Server) archived(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert archive is not configured"})
		return
	}
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	alerts, err := s.archive.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to read alert archive", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read alert archive"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) stats(c *gin.Context) {
	stats := s.monitor.Stats()
	c.JSON(http.StatusOK, gin.H{
		"stats":           stats,
		"runtime_seconds": int(stats.Runtime.Seconds()),
	})
}

type scanRequest struct {
	URL string `json:"url" binding:"required"`
}

func (s *Server) scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	urls := extract.URLs(req.URL)
	if len(urls) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be a single absolute http(s) URL"})
		return
	}

	outcome := s.monitor.ScanURL(c.Request.Context(), urls[0])
	c.JSON(http.StatusOK, gin.H{
		"url":        outcome.URL,
		"scan_id":    outcome.ScanID,
		"state":      outcome.State,
		"attempts":   outcome.Attempts,
		"error":      outcome.Error,
		"assessment": outcome.Assessment,
	})
}
