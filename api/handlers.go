// Package api exposes job submission and polling over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	reach "github.com/anatolykoptev/go-reach"
)

// JobService is the part of reach.Service the handlers use.
type JobService interface {
	SubmitJob(ctx context.Context, target string, depth int, opts ...reach.SubmitOption) (string, error)
	GetJob(ctx context.Context, id string) (*reach.Job, error)
	CancelJob(ctx context.Context, id string) error
}

var _ JobService = (*reach.Service)(nil)

// Handlers holds the HTTP handlers.
type Handlers struct {
	svc JobService
}

// NewHandlers creates handlers backed by svc.
func NewHandlers(svc JobService) *Handlers {
	return &Handlers{svc: svc}
}

// NewRouter returns a gin engine with every route and the request logger.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	RegisterRoutes(router, h)
	return router
}

// RegisterRoutes registers:
//
//	POST   /analyze      submit a job
//	GET    /analyze/:id  poll a job
//	DELETE /analyze/:id  cancel a job
//	GET    /health
//	GET    /metrics
func RegisterRoutes(r gin.IRouter, h *Handlers) {
	r.POST("/analyze", h.HandleAnalyze)
	r.GET("/analyze/:id", h.HandleGetJob)
	r.DELETE("/analyze/:id", h.HandleCancelJob)
	r.GET("/health", h.HandleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// HandleAnalyze handles POST /analyze. It responds with the pending job.
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	req := AnalyzeRequest{Depth: 1}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error(), Code: codeInvalidRequest})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: codeInvalidRequest})
		return
	}

	var opts []reach.SubmitOption
	if req.MinFollowers != nil {
		opts = append(opts, reach.WithMinFollowers(*req.MinFollowers))
	}
	ctx := c.Request.Context()
	id, err := h.svc.SubmitJob(ctx, req.Username, req.Depth, opts...)
	if errors.Is(err, reach.ErrQueueFull) && id != "" {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: codeUnavailable, JobID: id})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	job, err := h.svc.GetJob(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// HandleGetJob handles GET /analyze/:id.
func (h *Handlers) HandleGetJob(c *gin.Context) {
	job, err := h.svc.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// HandleCancelJob handles DELETE /analyze/:id. Cancellation is asynchronous
// for running jobs; poll the job to see it fail.
func (h *Handlers) HandleCancelJob(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.svc.CancelJob(ctx, id); err != nil {
		if errors.Is(err, reach.ErrInvalidRequest) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: codeConflict})
			return
		}
		writeError(c, err)
		return
	}
	job, err := h.svc.GetJob(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reach.ErrJobNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Job not found", Code: codeNotFound})
	case errors.Is(err, reach.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: codeInvalidRequest})
	case errors.Is(err, reach.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: codeUnavailable})
	default:
		slog.Error("request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: codeInternal})
	}
}

// requestLogger tags each request with an ID and logs it on completion.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Next()
		slog.Debug("http request",
			slog.String("request_id", requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()))
	}
}
