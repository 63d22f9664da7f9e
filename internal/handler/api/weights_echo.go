package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	models "CtxWeights/internal/domain/models"
	domrepo "CtxWeights/internal/domain/repository"
	"CtxWeights/internal/engine"
	"CtxWeights/internal/service/ratelimit"
	"CtxWeights/internal/usecase"
	xhttp "CtxWeights/pkg/http"
	xlogger "CtxWeights/pkg/logger"

	"github.com/labstack/echo/v4"
)

// WeightsEchoHandler exposes the weight query API. The /values and
// /new_weights contracts are fixed: malformed query input comes back as
// HTTP 200 with an {"error": ...} body, never as a transport failure.
type WeightsEchoHandler struct {
	logger      *xlogger.Logger
	uc          *usecase.WeightsUseCase
	cal         domrepo.CalendarSource
	prices      domrepo.PriceSource
	instruments []string
	rl          *ratelimit.Limiter
}

func NewWeightsEchoHandler(logger *xlogger.Logger, uc *usecase.WeightsUseCase, cal domrepo.CalendarSource, prices domrepo.PriceSource, instruments []string) *WeightsEchoHandler {
	return &WeightsEchoHandler{
		logger:      logger,
		uc:          uc,
		cal:         cal,
		prices:      prices,
		instruments: instruments,
		rl:          ratelimit.New(),
	}
}

func (h *WeightsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/values", h.Values, h.rateLimit("values", 10, 5))
	e.GET("/weights", h.Weights)
	e.GET("/new_weights", h.WeightsAfter)
	e.GET("/", h.Root)
	e.GET("/healthz", h.Health)
}

// rateLimit is a per-remote token bucket on the hot query route.
func (h *WeightsEchoHandler) rateLimit(name string, capacity, refillPerSec float64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !h.rl.Allow(c.RealIP()+":"+name, capacity, refillPerSec) {
				h.logger.Warn("rate limited",
					xlogger.String("route", name),
					xlogger.String("remote", c.RealIP()))
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
			}
			return next(c)
		}
	}
}

func (h *WeightsEchoHandler) Values(c echo.Context) error {
	req := &models.ValuesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		// Out-of-range type/var and missing parameters follow the same
		// 200 {"error"} contract as an unparseable date.
		return c.JSON(http.StatusOK, map[string]interface{}{"error": verr})
	}

	res, err := h.uc.Values(c.Request().Context(), *req)
	if err != nil {
		return h.queryError(c, "values", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *WeightsEchoHandler) Weights(c echo.Context) error {
	res, err := h.uc.Weights(c.Request().Context())
	if err != nil {
		return h.queryError(c, "weights", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *WeightsEchoHandler) WeightsAfter(c echo.Context) error {
	req := &models.WeightsAfterRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"error": verr})
	}

	res, err := h.uc.WeightsAfter(c.Request().Context(), req.Code)
	if err != nil {
		return h.queryError(c, "new_weights", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *WeightsEchoHandler) queryError(c echo.Context, route string, err error) error {
	if ie, ok := engine.AsInputError(err); ok {
		return c.JSON(http.StatusOK, map[string]string{"error": ie.Error()})
	}
	if errors.Is(err, usecase.ErrNotReady) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	}
	h.logger.Error("query failed", xlogger.String("route", route), xlogger.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// Root describes the service and the published snapshot.
func (h *WeightsEchoHandler) Root(c echo.Context) error {
	meta := h.uc.Metadata(c.Request().Context())
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"service":     "ctx-weights",
		"instruments": h.instruments,
		"params": map[string]string{
			"instrument": "instrument code, e.g. EURUSD",
			"day":        "0 = hourly unit, 1 = daily unit",
			"date":       "target date, e.g. 2025-01-02 15:00:00",
			"type":       "0 = both, 1 = magnitude, 2 = extremum",
			"var":        "calculation variant, 0-4",
		},
		"snapshot": meta,
	})
}

// Health reports readiness: a published snapshot plus live bulk sources.
func (h *WeightsEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	out := map[string]string{"status": "ok", "calendar": "ok", "prices": "ok"}
	code := http.StatusOK
	meta := h.uc.Metadata(ctx)
	if !meta.Ready {
		out["status"] = "starting"
		code = http.StatusServiceUnavailable
	}
	if err := h.cal.Health(ctx); err != nil {
		out["calendar"] = err.Error()
		out["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	if err := h.prices.Health(ctx); err != nil {
		out["prices"] = err.Error()
		out["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, out)
}
