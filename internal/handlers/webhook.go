package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hooklinehq/hookline/internal/forward"
	"github.com/hooklinehq/hookline/internal/metrics"
	"github.com/hooklinehq/hookline/internal/relay"
)

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

// Dispatcher fans a verified delivery out to the configured destinations.
type Dispatcher interface {
	Dispatch(ctx context.Context, dlv relay.Delivery, inbound http.Header)
}

// WebhookHandler receives platform callbacks on /webhook.
type WebhookHandler struct {
	logger     *slog.Logger
	dispatcher Dispatcher
	secret     string
	missing    []string
}

// NewWebhookHandler builds the handler. missing lists required settings that
// are still absent; while non-empty every POST is rejected with a 500 and
// the GET probe reports degraded.
func NewWebhookHandler(log *slog.Logger, secret string, missing []string, dispatcher Dispatcher) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		logger:     log.With(slog.String("handler", "webhook")),
		dispatcher: dispatcher,
		secret:     strings.TrimSpace(secret),
		missing:    missing,
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook", h.Handle)
	e.GET("/webhook", h.Health)
}

type statusResponse struct {
	Status int `json:"status"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Handle verifies one webhook delivery and fans it out. The response is
// written only after every forward and media pipeline run has settled.
func (h *WebhookHandler) Handle(c echo.Context) error {
	if len(h.missing) > 0 {
		metrics.WebhookRequests.WithLabelValues("missing_config").Inc()
		h.logger.Error("delivery rejected, configuration incomplete", slog.Any("missing", h.missing))
		return c.JSON(http.StatusInternalServerError, statusResponse{Status: http.StatusInternalServerError})
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(body)) > webhookMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes))
	}

	signature := c.Request().Header.Get(forward.SignatureHeader)
	if !relay.VerifySignature(signature, body, h.secret) {
		metrics.WebhookRequests.WithLabelValues("bad_signature").Inc()
		h.logger.Warn("delivery rejected, signature mismatch", slog.Int("body_bytes", len(body)))
		return c.JSON(http.StatusUnauthorized, statusResponse{Status: http.StatusUnauthorized})
	}

	dlv := relay.Delivery{Raw: body, Signature: strings.TrimSpace(signature)}
	env, err := relay.ParseEnvelope(body)
	if err != nil {
		// The body is authenticated, so the primary destination still
		// receives it; only per-event routing is skipped.
		metrics.WebhookRequests.WithLabelValues("bad_payload").Inc()
		h.logger.Error("envelope parse failed after valid signature", slog.Any("error", err))
	} else {
		dlv.Envelope = env
		metrics.WebhookRequests.WithLabelValues("ok").Inc()
	}

	if h.dispatcher != nil {
		h.dispatcher.Dispatch(context.WithoutCancel(c.Request().Context()), dlv, c.Request().Header.Clone())
	}

	return c.JSON(http.StatusOK, statusResponse{Status: http.StatusOK})
}

// Health reports configuration completeness without touching downstreams.
func (h *WebhookHandler) Health(c echo.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if len(h.missing) > 0 {
		return c.JSON(http.StatusOK, healthResponse{
			Status:    "degraded",
			Message:   "missing settings: " + strings.Join(h.missing, ", "),
			Timestamp: now,
		})
	}
	return c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Message:   "webhook relay operational",
		Timestamp: now,
	})
}
