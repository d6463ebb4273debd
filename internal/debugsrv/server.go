// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package debugsrv serves a read-mostly HTTP view of a running cosmos:
// health, counters, live atoms, recent lines, recorder levels and metrics.
package debugsrv

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/cosmos/pkg/chrono"
	"github.com/AleutianAI/cosmos/pkg/config"
	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/AleutianAI/cosmos/pkg/logging"
	"github.com/AleutianAI/cosmos/pkg/recorders"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName is the otelgin server name.
const ServiceName = "cosmos-debug"

// DefaultRecentLimit caps /recent when no limit is given.
const DefaultRecentLimit = 100

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 5 * time.Second

// Options configures a Server. Only Cosmos is required.
type Options struct {
	Cosmos *cosmos.Cosmos

	// Buffer backs /recent. The endpoint answers 404 without one.
	Buffer *recorders.Buffer

	// Levels backs /levels. Empty means no recorder can be tuned.
	Levels config.Levels

	// Metrics serves /metrics. Defaults to promhttp.Handler().
	Metrics http.Handler

	// TracerProvider instruments requests. Nil uses the otel global.
	TracerProvider trace.TracerProvider

	Logger  *logging.Logger
	Version string
}

// Server is the debug HTTP surface.
type Server struct {
	opts   Options
	router *gin.Engine
}

// =============================================================================
// Responses
// =============================================================================

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Atoms   int    `json:"atoms"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Atoms          int   `json:"atoms"`
	Dispatched     int64 `json:"dispatched"`
	ShortCircuited int64 `json:"short_circuited"`
	Swallowed      int64 `json:"swallowed"`
}

// AtomView describes one live atom.
type AtomView struct {
	Name       string  `json:"name"`
	ID         string  `json:"id"`
	Birth      string  `json:"birth"`
	Nucleons   int     `json:"nucleons"`
	Decayed    bool    `json:"decayed"`
	DurationMS float64 `json:"duration_ms,omitempty"`
}

// AtomDetail is the body of GET /atoms/:id.
type AtomDetail struct {
	AtomView
	Lines []string `json:"lines"`
}

// LevelRequest is the body of PUT /levels/:name.
type LevelRequest struct {
	Level string `json:"level" binding:"required"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// Construction
// =============================================================================

// New builds the router. It panics if opts.Cosmos is nil.
func New(opts Options) *Server {
	if opts.Cosmos == nil {
		panic("debugsrv: nil cosmos")
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	var otelOpts []otelgin.Option
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelgin.WithTracerProvider(opts.TracerProvider))
	}
	router.Use(otelgin.Middleware(ServiceName, otelOpts...))
	router.Use(requestLogger(opts.Logger))

	s := &Server{opts: opts, router: router}
	router.GET("/healthz", s.handleHealth)
	router.GET("/stats", s.handleStats)
	router.GET("/atoms", s.handleAtoms)
	router.GET("/atoms/:id", s.handleAtom)
	router.GET("/recent", s.handleRecent)
	router.GET("/levels", s.handleLevels)
	router.PUT("/levels/:name", s.handleSetLevel)
	router.GET("/metrics", gin.WrapH(opts.Metrics))
	return s
}

// Router exposes the engine for tests and embedding.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.opts.Logger.Info("debug server listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs one line per request on the diagnostic logger.
func requestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("debug request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	if s.opts.Cosmos.Destroyed() {
		status = "destroyed"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{
		Status:  status,
		Version: s.opts.Version,
		Atoms:   s.opts.Cosmos.AtomCount(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	st := s.opts.Cosmos.Stats()
	c.JSON(http.StatusOK, StatsResponse{
		Atoms:          s.opts.Cosmos.AtomCount(),
		Dispatched:     st.Dispatched,
		ShortCircuited: st.ShortCircuited,
		Swallowed:      st.Swallowed,
	})
}

func (s *Server) handleAtoms(c *gin.Context) {
	atoms := s.opts.Cosmos.Atoms()
	views := make([]AtomView, 0, len(atoms))
	for _, a := range atoms {
		views = append(views, viewOf(a))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleAtom(c *gin.Context) {
	id := c.Param("id")
	for _, a := range s.opts.Cosmos.Atoms() {
		if a.ID().String() != id {
			continue
		}
		nucleons := a.Nucleons()
		lines := make([]string, 0, len(nucleons))
		for _, n := range nucleons {
			lines = append(lines, recorders.LineOf(a, n).String())
		}
		c.JSON(http.StatusOK, AtomDetail{AtomView: viewOf(a), Lines: lines})
		return
	}
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "no atom " + id})
}

func (s *Server) handleRecent(c *gin.Context) {
	if s.opts.Buffer == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no buffer recorder configured"})
		return
	}
	limit := DefaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	lines := s.opts.Buffer.Lines()
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	if strings.Contains(c.GetHeader("Accept"), "text/plain") {
		var b strings.Builder
		for _, l := range lines {
			b.WriteString(l.String())
			b.WriteByte('\n')
		}
		c.String(http.StatusOK, b.String())
		return
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.String()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleLevels(c *gin.Context) {
	out := make(map[string]string, len(s.opts.Levels))
	for name, t := range s.opts.Levels {
		out[name] = strings.ToLower(t.Level().String())
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSetLevel(c *gin.Context) {
	name := c.Param("name")
	t, ok := s.opts.Levels[name]
	if !ok {
		known := make([]string, 0, len(s.opts.Levels))
		for k := range s.opts.Levels {
			known = append(known, k)
		}
		slices.Sort(known)
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown recorder " + name + ", known: " + strings.Join(known, ",")})
		return
	}

	var req LevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	level, err := cosmos.ParseLevel(req.Level)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	prev := t.SetLevel(level)
	s.opts.Logger.Notice("recorder level changed", "recorder", name, "from", prev, "to", level, "via", "http")
	c.JSON(http.StatusOK, map[string]string{
		"recorder": name,
		"previous": strings.ToLower(prev.String()),
		"level":    strings.ToLower(level.String()),
	})
}

func viewOf(a *cosmos.Atom) AtomView {
	v := AtomView{
		Name:     a.Name(),
		ID:       a.ID().String(),
		Birth:    chrono.ISO(a.Birth()),
		Nucleons: a.Count(),
		Decayed:  a.Decayed(),
	}
	if v.Decayed {
		v.DurationMS = float64(a.Duration()) / float64(time.Millisecond)
	}
	return v
}
