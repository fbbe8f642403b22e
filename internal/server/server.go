// Package server exposes the transform pipeline and the scraper over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/aggregate"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/pipeline"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/scrape"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/template"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type Transformer interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type Scraper interface {
	Scrape(ctx context.Context, url string, kind scrape.Kind) (string, error)
}

type TemplateLister interface {
	Types(ctx context.Context) ([]string, error)
}

// Handler serves the API routes.
type Handler struct {
	Pipeline  Transformer
	Scraper   Scraper
	Templates TemplateLister
	// RequestTimeout bounds each transform or scrape. Zero means no limit
	// beyond the client connection.
	RequestTimeout time.Duration
}

// Options configure the router.
type Options struct {
	AllowOrigins []string
}

// NewRouter builds the gin engine with CORS, request ids and access logs.
func NewRouter(h *Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog())

	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/health", h.Health)
	api := r.Group("/api")
	api.POST("/transform", h.Transform)
	api.POST("/scrape", h.Scrape)
	api.GET("/templates", h.ListTemplates)
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		logger := log.With().Str("request_id", id).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.RequestTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), h.RequestTimeout)
	}
	return context.WithCancel(c.Request.Context())
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Transform runs the pipeline for one request.
func (h *Handler) Transform(c *gin.Context) {
	var req TransformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error(), Kind: string(pipeline.KindInvalidRequest)})
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.Pipeline.Run(ctx, pipeline.Request{Text: req.Text, Type: req.Type, Sources: req.AdditionalContent})
	if err != nil {
		status, body := transformError(err)
		log.Ctx(ctx).Error().Err(err).Str("kind", body.Kind).Msg("transform failed")
		c.JSON(status, body)
		return
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []aggregate.Warning{}
	}
	c.JSON(http.StatusOK, TransformResponse{
		TransformedText: res.TransformedText,
		Provider:        res.Provider,
		TotalTokens:     res.TotalTokens,
		Warnings:        warnings,
	})
}

func transformError(err error) (int, ErrorResponse) {
	kind := pipeline.KindOf(err)
	body := ErrorResponse{Details: err.Error(), Kind: string(kind)}
	switch kind {
	case pipeline.KindInvalidRequest:
		body.Error = "Invalid request"
		return http.StatusBadRequest, body
	case pipeline.KindTemplateNotFound:
		body.Error = "Prompt type not found"
		var nf *template.NotFoundError
		if errors.As(err, &nf) {
			body.Available = nf.Available
		}
		return http.StatusBadRequest, body
	case pipeline.KindUpstream:
		body.Error = "AI provider failed"
		return http.StatusBadGateway, body
	case pipeline.KindCanceled:
		body.Error = "Request canceled or timed out"
		return http.StatusGatewayTimeout, body
	}
	body.Error = "Transformation failed"
	return http.StatusInternalServerError, body
}

// Scrape extracts one page.
func (h *Handler) Scrape(c *gin.Context) {
	var req ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.Type) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "url and type are required"})
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	content, err := h.Scraper.Scrape(ctx, req.URL, scrape.Kind(strings.ToLower(req.Type)))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("url", req.URL).Msg("scraping failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Scraping failed", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ScrapeResponse{Content: content})
}

// ListTemplates returns the configured transform types.
func (h *Handler) ListTemplates(c *gin.Context) {
	types, err := h.Templates.Types(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Templates unavailable", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, TemplatesResponse{Types: types})
}
