package handlers

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the Prometheus registry.
type MetricsHandler struct {
	logger *slog.Logger
}

func NewMetricsHandler(log *slog.Logger) *MetricsHandler {
	return &MetricsHandler{logger: log.With(slog.String("handler", "metrics"))}
}

func (h *MetricsHandler) Register(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
