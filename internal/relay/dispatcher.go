package relay

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/hooklinehq/hookline/internal/forward"
	"github.com/hooklinehq/hookline/internal/metrics"
)

// EnvelopeForwarder posts a verbatim webhook body to one destination.
type EnvelopeForwarder interface {
	Send(ctx context.Context, dest forward.Destination, body []byte, signature string, inbound http.Header) forward.Result
}

// MediaProcessor runs the media side pipeline for a single message event.
type MediaProcessor interface {
	Process(ctx context.Context, ev Event) error
}

// Dispatcher fans one verified delivery out to both destinations and the
// media pipeline.
type Dispatcher struct {
	logger    *slog.Logger
	forwarder EnvelopeForwarder
	media     MediaProcessor
	primary   forward.Destination
	secondary forward.Destination
}

func NewDispatcher(log *slog.Logger, forwarder EnvelopeForwarder, media MediaProcessor, primary, secondary forward.Destination) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		logger:    log.With(slog.String("component", "dispatcher")),
		forwarder: forwarder,
		media:     media,
		primary:   primary,
		secondary: secondary,
	}
}

// Dispatch routes one verified delivery. The primary destination receives the
// verbatim body exactly once per delivery. Each event then decides what else
// runs: plain text forwards the body to the secondary destination, bracketed
// text stays with the primary, media events enter the media pipeline, and
// anything else is counted and skipped. All resulting tasks run concurrently;
// Dispatch returns once every task has settled, and a failure in one task
// never cancels the others.
func (d *Dispatcher) Dispatch(ctx context.Context, dlv Delivery, inbound http.Header) {
	log := d.logger.With(slog.String("delivery_id", uuid.NewString()))
	if dlv.Envelope.Destination != "" {
		log = log.With(slog.String("destination_id", dlv.Envelope.Destination))
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.forwardRaw(ctx, log, d.primary, dlv, inbound)
	}()

	for i, ev := range dlv.Envelope.Events {
		evLog := log.With(slog.Int("event_index", i), slog.String("event_type", ev.Type))
		switch {
		case ev.Type != EventTypeMessage:
			metrics.Events.WithLabelValues("other").Inc()
			evLog.Debug("event type has no extra routing")
		case ev.Message.Type == MessageTypeText:
			metrics.Events.WithLabelValues(MessageTypeText).Inc()
			if PrimaryOnly(ev.Message.Text) {
				evLog.Info("bracketed text kept on primary destination")
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.forwardRaw(ctx, evLog, d.secondary, dlv, inbound)
			}()
		case ev.Message.IsMedia():
			metrics.Events.WithLabelValues(ev.Message.Type).Inc()
			if d.media == nil {
				evLog.Warn("media pipeline not configured, event skipped", slog.String("message_id", ev.Message.ID))
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := d.media.Process(ctx, ev); err != nil {
					evLog.Error("media pipeline failed", slog.String("message_id", ev.Message.ID), slog.Any("error", err))
				}
			}()
		default:
			metrics.Events.WithLabelValues("other").Inc()
			evLog.Debug("message type has no extra routing", slog.String("message_type", ev.Message.Type))
		}
	}

	wg.Wait()
}

func (d *Dispatcher) forwardRaw(ctx context.Context, log *slog.Logger, dest forward.Destination, dlv Delivery, inbound http.Header) {
	res := d.forwarder.Send(ctx, dest, dlv.Raw, dlv.Signature, inbound)
	if res.Err != nil {
		log.Error("forward failed",
			slog.String("destination", dest.Name),
			slog.Int("status", res.Status),
			slog.Duration("duration", res.Duration),
			slog.Any("error", res.Err))
		return
	}
	log.Info("forwarded",
		slog.String("destination", dest.Name),
		slog.Int("status", res.Status),
		slog.Duration("duration", res.Duration))
}
