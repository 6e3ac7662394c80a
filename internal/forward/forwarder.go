package forward

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hooklinehq/hookline/internal/metrics"
)

// DefaultTimeout bounds a single forward round trip.
const DefaultTimeout = 10 * time.Second

// Destination is one downstream receiver of webhook bodies.
type Destination struct {
	Name             string
	URL              string
	IncludeSignature bool
}

// Result describes a single forward attempt.
type Result struct {
	Destination string
	Status      int
	Duration    time.Duration
	Err         error
}

// Forwarder posts verbatim webhook bodies to destinations. Every call is
// bounded by its own timeout, so one destination timing out never delays
// another.
type Forwarder struct {
	logger  *slog.Logger
	client  *http.Client
	timeout time.Duration
}

func NewForwarder(log *slog.Logger, timeout time.Duration) *Forwarder {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Forwarder{
		logger:  log.With(slog.String("component", "forwarder")),
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Send posts body to dest with headers rebuilt from the inbound set. Any
// 2xx response counts as delivered; everything else is a failure.
func (f *Forwarder) Send(ctx context.Context, dest Destination, body []byte, signature string, inbound http.Header) Result {
	f.logger.Debug("forwarding", slog.String("destination", dest.Name), slog.Int("bytes", len(body)))

	start := time.Now()
	res := f.post(ctx, dest, body, signature, inbound)
	res.Destination = dest.Name
	res.Duration = time.Since(start)

	outcome := "delivered"
	if res.Err != nil {
		outcome = "failed"
	}
	metrics.Forwards.WithLabelValues(dest.Name, outcome).Inc()
	metrics.ForwardDuration.WithLabelValues(dest.Name).Observe(res.Duration.Seconds())
	return res
}

func (f *Forwarder) post(ctx context.Context, dest Destination, body []byte, signature string, inbound http.Header) Result {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest.URL, bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Errorf("build forward request: %w", err)}
	}
	req.Header = BuildHeaders(inbound, signature, dest.IncludeSignature)

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("post to %s: %w", dest.Name, err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Result{Status: resp.StatusCode, Err: fmt.Errorf("%s responded with status %d", dest.Name, resp.StatusCode)}
	}
	return Result{Status: resp.StatusCode}
}
