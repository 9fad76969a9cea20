// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package httpserver is the HTTP block bridge: it plays the host runtime for
// clients that address blocks over HTTP.
package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Thermoquad/bitbrick/internal/config"
	"github.com/Thermoquad/bitbrick/internal/metrics"
	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
	"github.com/Thermoquad/bitbrick/pkg/blocks"
	"github.com/Thermoquad/bitbrick/pkg/link"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// Deps are the collaborators the bridge serves
type Deps struct {
	Extension *blocks.Extension
	Bus       *blocks.EventBus
	Device    *bitbrick.Device
	Logger    *zap.Logger

	// Optional
	Metrics        *metrics.AppMetrics
	MetricsHandler http.Handler
	Ready          func() bool
}

// Server wraps the gin engine and its http.Server
type Server struct {
	srv    *http.Server
	engine *gin.Engine
}

// New builds the router. The metrics route is registered when cfg.Enable is
// set and a handler is given.
func New(httpCfg config.HTTPConfig, metricsCfg config.MetricsConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &handler{Deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(deps.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if deps.Ready == nil || deps.Ready() {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})

	r.GET("/info", h.info)
	r.POST("/blocks/:opcode", h.invoke)
	r.POST("/stop", h.stop)
	r.GET("/sensors", h.sensors)
	r.GET("/state", h.state)

	if metricsCfg.Enable && deps.MetricsHandler != nil {
		path := metricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(deps.MetricsHandler))
	}

	srv := &http.Server{
		Addr:              httpCfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &Server{srv: srv, engine: r}
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown (blocking)
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// requestID tags every request with an id, keeping one supplied by the
// client
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", c.GetString(RequestIDHeader)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("http request", fields...)
			return
		}
		logger.Info("http request", fields...)
	}
}

type handler struct {
	Deps
}

func (h *handler) info(c *gin.Context) {
	c.JSON(http.StatusOK, h.Extension.GetInfo())
}

// invoke runs one block. The body is a JSON object of arguments keyed by
// name and may be empty; values keep their JSON types, as from a host.
func (h *handler) invoke(c *gin.Context) {
	opcode := c.Param("opcode")

	args := blocks.Args{}
	if err := c.ShouldBindJSON(&args); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid arguments: " + err.Error()})
		return
	}

	value, err := h.Extension.Invoke(opcode, args)
	if h.Metrics != nil {
		h.Metrics.BlockCalled(opcode, err)
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(statusFor(err), gin.H{"opcode": opcode, "error": err.Error()})
		return
	}

	resp := gin.H{"opcode": opcode, "frame": h.Device.LastFrame()}
	if value != nil {
		resp["value"] = value
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) stop(c *gin.Context) {
	n := h.Bus.Emit(blocks.ProjectStopAll)
	c.JSON(http.StatusOK, gin.H{"handlers": n, "frame": h.Device.LastFrame()})
}

func (h *handler) sensors(c *gin.Context) {
	values, err := h.Device.ReadSensors()
	if err != nil {
		_ = c.Error(err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"values": values})
}

func (h *handler) state(c *gin.Context) {
	s := h.Device.State()
	c.JSON(http.StatusOK, gin.H{
		"frame":  h.Device.LastFrame(),
		"buzzer": s.Buzzer,
		"ports":  []int{int(s.A), int(s.B), int(s.C), int(s.D)},
		"led":    []int{int(s.Red), int(s.Green), int(s.Blue)},
	})
}

// statusFor maps block and device errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, blocks.ErrUnknownOpcode):
		return http.StatusNotFound
	case errors.Is(err, bitbrick.ErrInvalidPort), errors.Is(err, blocks.ErrUnknownArgument):
		return http.StatusBadRequest
	case errors.Is(err, link.ErrNoSensorFrame):
		return http.StatusGatewayTimeout
	default:
		// Transport failures and undecodable sensor frames
		return http.StatusBadGateway
	}
}
