package api

import (
	"math"
	"net/http"
	"time"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/models"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/service/ratelimit"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/usecase"
	xhttp "github.com/Habtu32/brent-oil-change-point-analysis/pkg/http"
	xlogger "github.com/Habtu32/brent-oil-change-point-analysis/pkg/logger"
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/util"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// AnalysisHandler exposes the REST and websocket API.
type AnalysisHandler struct {
	logger   *xlogger.Logger
	prices   *usecase.PriceService
	analyses *usecase.AnalysisService
	runs     *usecase.RunManager
	limiter  *ratelimit.Limiter

	submitCapacity float64
	submitRefill   float64

	upgrader websocket.Upgrader
}

func NewAnalysisHandler(
	logger *xlogger.Logger,
	prices *usecase.PriceService,
	analyses *usecase.AnalysisService,
	runs *usecase.RunManager,
	limiter *ratelimit.Limiter,
	submitPerMinute, burst int,
) *AnalysisHandler {
	if submitPerMinute <= 0 {
		submitPerMinute = 6
	}
	if burst <= 0 {
		burst = 2
	}
	return &AnalysisHandler{
		logger:         logger,
		prices:         prices,
		analyses:       analyses,
		runs:           runs,
		limiter:        limiter,
		submitCapacity: float64(burst),
		submitRefill:   float64(submitPerMinute) / 60.0,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *AnalysisHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/prices", h.Prices)
	g.GET("/features", h.Features)
	g.POST("/analyses", h.SubmitAnalysis)
	g.GET("/analyses/:id", h.GetAnalysis)
	g.GET("/changepoints", h.ChangePoints)

	e.GET("/ws/analyses/:id", h.StreamProgress)
}

func (h *AnalysisHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status": "ok",
		"prices": h.prices.Len(),
	})
}

// Prices returns the price history within an optional date window.
func (h *AnalysisHandler) Prices(c echo.Context) error {
	from := util.ParseTimeDefault(c.QueryParam("from"), time.Time{})
	to := util.ParseTimeDefault(c.QueryParam("to"), time.Time{})
	limit := util.ParseIntDefault(c.QueryParam("limit"), 0)

	points := h.prices.Range(from, to, limit)
	out := make([]map[string]interface{}, len(points))
	for i, p := range points {
		out[i] = map[string]interface{}{
			"date":  p.Date.Format("2006-01-02"),
			"price": p.Price,
		}
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

// featuresResponse mirrors PriceFeatures with NaN entries encoded as null.
type featuresResponse struct {
	Dates         []string   `json:"dates"`
	Prices        []float64  `json:"prices"`
	LogReturns    []*float64 `json:"log_returns"`
	Volatility30d []*float64 `json:"volatility_30d"`
	MA30          []*float64 `json:"ma_30"`
}

// Features returns derived series (log returns, rolling volatility, moving
// average) for the requested window.
func (h *AnalysisHandler) Features(c echo.Context) error {
	from := util.ParseTimeDefault(c.QueryParam("from"), time.Time{})
	to := util.ParseTimeDefault(c.QueryParam("to"), time.Time{})

	f := h.prices.Features(from, to)
	resp := featuresResponse{
		Dates:         make([]string, len(f.Dates)),
		Prices:        f.Prices,
		LogReturns:    nullableSeries(f.LogReturns),
		Volatility30d: nullableSeries(f.Volatility30d),
		MA30:          nullableSeries(f.MA30),
	}
	for i, d := range f.Dates {
		resp.Dates[i] = d.Format("2006-01-02")
	}
	return xhttp.SuccessResponse(c, resp)
}

func nullableSeries(xs []float64) []*float64 {
	out := make([]*float64, len(xs))
	for i := range xs {
		if !math.IsNaN(xs[i]) {
			v := xs[i]
			out[i] = &v
		}
	}
	return out
}

// SubmitAnalysis schedules a new change point analysis.
func (h *AnalysisHandler) SubmitAnalysis(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP(), h.submitCapacity, h.submitRefill) {
		return xhttp.TooManyRequestsResponse(c, "analysis submissions are rate limited")
	}

	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	run, err := h.analyses.Submit(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("submit analysis error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.AcceptedResponse(c, run)
}

// GetAnalysis returns the run status and, when finished, its result.
func (h *AnalysisHandler) GetAnalysis(c echo.Context) error {
	id := c.Param("id")
	run := h.runs.Get(id)
	if run == nil {
		return xhttp.NotFoundResponse(c, "analysis not found")
	}
	return xhttp.SuccessResponse(c, run)
}

// ChangePoints lists persisted change points across runs.
func (h *AnalysisHandler) ChangePoints(c echo.Context) error {
	limit := util.ParseIntDefault(c.QueryParam("limit"), 100)
	rows, err := h.analyses.ChangePoints(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("list change points error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// StreamProgress upgrades to a websocket and streams run progress events
// until the run reaches a terminal state or the client disconnects.
func (h *AnalysisHandler) StreamProgress(c echo.Context) error {
	id := c.Param("id")
	run := h.runs.Get(id)
	if run == nil {
		return xhttp.NotFoundResponse(c, "analysis not found")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// terminal runs get a single snapshot event
	if run.Status == models.RunSucceeded || run.Status == models.RunFailed {
		return conn.WriteJSON(models.RunProgress{
			RunID:     run.ID,
			Status:    run.Status,
			Timestamp: time.Now().UTC(),
		})
	}

	events, cancel := h.runs.Subscribe(id)
	defer cancel()

	// the run may have finished between the snapshot above and the
	// subscription; re-check so late subscribers still get a terminal event
	if cur := h.runs.Get(id); cur != nil && (cur.Status == models.RunSucceeded || cur.Status == models.RunFailed) {
		return conn.WriteJSON(models.RunProgress{
			RunID:     cur.ID,
			Status:    cur.Status,
			Timestamp: time.Now().UTC(),
		})
	}

	// drain client reads so close frames are noticed
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(ev); err != nil {
				return nil
			}
			if ev.Status == models.RunSucceeded || ev.Status == models.RunFailed {
				return nil
			}
		}
	}
}
