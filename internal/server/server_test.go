package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/aggregate"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/llm"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/pipeline"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/scrape"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/template"
)

type fakePipeline struct {
	got pipeline.Request
	res pipeline.Result
	err error
}

func (f *fakePipeline) Run(_ context.Context, req pipeline.Request) (pipeline.Result, error) {
	f.got = req
	return f.res, f.err
}

type fakeScraper struct {
	gotURL  string
	gotKind scrape.Kind
	content string
	err     error
}

func (f *fakeScraper) Scrape(_ context.Context, url string, kind scrape.Kind) (string, error) {
	f.gotURL, f.gotKind = url, kind
	return f.content, f.err
}

type fakeTemplates []string

func (f fakeTemplates) Types(context.Context) ([]string, error) { return f, nil }

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(h, Options{})
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTransform_OK(t *testing.T) {
	p := &fakePipeline{res: pipeline.Result{TransformedText: "short", Provider: "openai", TotalTokens: 42}}
	r := newTestRouter(&Handler{Pipeline: p})

	w := do(r, http.MethodPost, "/api/transform",
		`{"text":"long post","type":"Shorten","additionalContent":{"wikiContent":"https://en.wikipedia.org/wiki/Go"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	var got TransformResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	assert.Equal(t, "short", got.TransformedText)
	assert.Equal(t, "openai", got.Provider)
	assert.Equal(t, 0, len(got.Warnings))
	assert.Equal(t, "Shorten", p.got.Type)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Go", p.got.Sources.Wikipedia)
}

func TestTransform_WarningsAreReturned(t *testing.T) {
	p := &fakePipeline{res: pipeline.Result{
		TransformedText: "ok",
		Provider:        "gemini",
		Warnings:        []aggregate.Warning{{Section: "wikipedia", Reason: "no content"}},
	}}
	r := newTestRouter(&Handler{Pipeline: p})

	w := do(r, http.MethodPost, "/api/transform", `{"text":"x","type":"Extend"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, strings.Contains(w.Body.String(), `"section":"wikipedia"`))
}

func TestTransform_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   pipeline.Kind
	}{
		{"invalid", fmt.Errorf("%w: %w", pipeline.ErrInvalidRequest, pipeline.ErrEmptyText), http.StatusBadRequest, pipeline.KindInvalidRequest},
		{"template", &template.NotFoundError{Type: "Nope", Available: []string{"Shorten"}}, http.StatusBadRequest, pipeline.KindTemplateNotFound},
		{"upstream", &llm.UpstreamError{Provider: "openai", Status: 503, Err: errors.New("boom")}, http.StatusBadGateway, pipeline.KindUpstream},
		{"canceled", context.DeadlineExceeded, http.StatusGatewayTimeout, pipeline.KindCanceled},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, pipeline.KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&Handler{Pipeline: &fakePipeline{err: tc.err}})
			w := do(r, http.MethodPost, "/api/transform", `{"text":"x","type":"Shorten"}`)

			assert.Equal(t, tc.status, w.Code)
			var body ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			assert.Equal(t, string(tc.kind), body.Kind)
			assert.NotEqual(t, "", body.Details)
		})
	}
}

func TestTransform_TemplateNotFoundListsAvailable(t *testing.T) {
	err := &template.NotFoundError{Type: "Nope", Available: []string{"Shorten", "Extend"}}
	r := newTestRouter(&Handler{Pipeline: &fakePipeline{err: err}})

	w := do(r, http.MethodPost, "/api/transform", `{"text":"x","type":"Nope"}`)

	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	assert.Equal(t, []string{"Shorten", "Extend"}, body.Available)
}

func TestTransform_MalformedBody(t *testing.T) {
	p := &fakePipeline{}
	r := newTestRouter(&Handler{Pipeline: p})

	w := do(r, http.MethodPost, "/api/transform", `{"text":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "", p.got.Type)
}

func TestScrape_OK(t *testing.T) {
	s := &fakeScraper{content: "article text"}
	r := newTestRouter(&Handler{Scraper: s})

	w := do(r, http.MethodPost, "/api/scrape", `{"url":"https://www.perplexity.ai/search/x","type":"Perplexity"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"content":"article text"}`, w.Body.String())
	assert.Equal(t, scrape.Perplexity, s.gotKind)
}

func TestScrape_Failure(t *testing.T) {
	s := &fakeScraper{err: errors.New("navigation timeout")}
	r := newTestRouter(&Handler{Scraper: s})

	w := do(r, http.MethodPost, "/api/scrape", `{"url":"https://en.wikipedia.org/wiki/Go","type":"wikipedia"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	assert.Equal(t, "Scraping failed", body.Error)
	assert.Equal(t, "navigation timeout", body.Details)
}

func TestScrape_MissingFields(t *testing.T) {
	s := &fakeScraper{}
	r := newTestRouter(&Handler{Scraper: s})

	w := do(r, http.MethodPost, "/api/scrape", `{"url":""}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "", s.gotURL)
}

func TestTemplatesAndHealth(t *testing.T) {
	r := newTestRouter(&Handler{Templates: fakeTemplates{"Shorten", "Extend"}})

	w := do(r, http.MethodGet, "/api/templates", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"types":["Shorten","Extend"]}`, w.Body.String())

	w = do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID(t *testing.T) {
	r := newTestRouter(&Handler{})

	w := do(r, http.MethodGet, "/health", "")
	assert.NotEqual(t, "", w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(&Handler{})

	req := httptest.NewRequest(http.MethodOptions, "/api/transform", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
