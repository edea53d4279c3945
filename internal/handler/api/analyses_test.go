package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/models"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/service/cache"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/service/ratelimit"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/usecase"
	applogger "github.com/Habtu32/brent-oil-change-point-analysis/pkg/logger"
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type staticSource struct {
	points []models.PricePoint
}

func (s *staticSource) Load(context.Context) ([]models.PricePoint, error) {
	return s.points, nil
}

func testPoints(n int) []models.PricePoint {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.PricePoint, n)
	for i := range points {
		points[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Price: 60 + float64(i)}
	}
	return points
}

func newTestHandler(t *testing.T) (*AnalysisHandler, *usecase.RunManager) {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	prices := usecase.NewPriceService(&staticSource{points: testPoints(100)}, nil, l)
	if err := prices.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	runs := usecase.NewRunManager()
	rec := metrics.NewWith(prometheus.NewRegistry())
	analyses := usecase.NewAnalysisService(prices, runs, nil, nil, cache.NewTTLCache(), rec, l, time.Minute)
	h := NewAnalysisHandler(l, prices, analyses, runs, ratelimit.New(), 6, 2)
	return h, runs
}

func doRequest(h *AnalysisHandler, method, target, body string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestPricesWindow(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h, http.MethodGet, "/api/prices?from=2021-01-10&to=2021-01-19", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			Rows  []map[string]interface{} `json:"rows"`
			Total int64                    `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Total != 10 {
		t.Fatalf("expected 10 rows, got %d", resp.Data.Total)
	}
}

func TestSubmitAnalysisValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h, http.MethodPost, "/api/analyses", `{"segments":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitAnalysisAccepted(t *testing.T) {
	h, runs := newTestHandler(t)
	body := `{"segments":2,"min_segment_length":10,"chains":2,"draws":200,"warmup":200,"seed":42}`
	rec := doRequest(h, http.MethodPost, "/api/analyses", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data models.AnalysisRun `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.ID == "" {
		t.Fatalf("expected run id in response")
	}
	if runs.Get(resp.Data.ID) == nil {
		t.Fatalf("run not registered")
	}
}

func TestSubmitAnalysisRateLimited(t *testing.T) {
	h, _ := newTestHandler(t)
	body := `{"segments":2,"min_segment_length":10,"chains":2,"draws":200,"warmup":200}`
	var last int
	for i := 0; i < 5; i++ {
		rec := doRequest(h, http.MethodPost, "/api/analyses", body)
		last = rec.Code
		if last == http.StatusTooManyRequests {
			break
		}
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected a 429 within burst window, got %d", last)
	}
}

func TestGetAnalysisNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h, http.MethodGet, "/api/analyses/unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetAnalysisReturnsRun(t *testing.T) {
	h, runs := newTestHandler(t)
	run := runs.Create(models.AnalysisRequest{Segments: 2})
	rec := doRequest(h, http.MethodGet, "/api/analyses/"+run.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Data models.AnalysisRun `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.ID != run.ID || resp.Data.Status != models.RunPending {
		t.Fatalf("unexpected run %+v", resp.Data)
	}
}

func TestFeaturesEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h, http.MethodGet, "/api/features", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
