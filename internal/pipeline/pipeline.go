// Package pipeline runs the per-event media flow: fetch the message content,
// stage it in object storage, hand the staged URL to the analysis workflow
// and reply with the answer.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hooklinehq/hookline/internal/metrics"
	"github.com/hooklinehq/hookline/internal/relay"
)

const (
	// fallbackReply is sent when no answer could be obtained.
	fallbackReply = "file analysis failed"

	defaultURLTTL = 15 * time.Minute
)

// ContentFetcher downloads message content from the upstream platform.
type ContentFetcher interface {
	FetchContent(ctx context.Context, messageID string) ([]byte, string, error)
}

// ObjectStore stages content and hands out temporary links.
type ObjectStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// FileAnalyzer produces a text answer for a staged file.
type FileAnalyzer interface {
	AnalyzeFile(ctx context.Context, fileURL, fileKind string) (string, error)
}

// ReplySender sends a text reply against a reply token.
type ReplySender interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// Pipeline orchestrates fetch, stage, analyze, cleanup and reply for one
// media event at a time. It holds no per-event state and is safe for
// concurrent use.
type Pipeline struct {
	logger   *slog.Logger
	fetcher  ContentFetcher
	store    ObjectStore
	analyzer FileAnalyzer
	replier  ReplySender
	urlTTL   time.Duration
}

// New builds a Pipeline. urlTTL bounds how long a staged link stays valid.
func New(log *slog.Logger, fetcher ContentFetcher, store ObjectStore, analyzer FileAnalyzer, replier ReplySender, urlTTL time.Duration) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if urlTTL <= 0 {
		urlTTL = defaultURLTTL
	}
	return &Pipeline{
		logger:   log.With(slog.String("component", "pipeline")),
		fetcher:  fetcher,
		store:    store,
		analyzer: analyzer,
		replier:  replier,
		urlTTL:   urlTTL,
	}
}

// Process runs the media flow for one event. It returns an error only when
// the flow aborts before the analysis step; analysis and reply failures
// degrade to the fallback reply and are logged here, never propagated.
func (p *Pipeline) Process(ctx context.Context, ev relay.Event) error {
	messageID := strings.TrimSpace(ev.Message.ID)
	if messageID == "" {
		return fmt.Errorf("event has no message id")
	}
	if p.fetcher == nil || p.analyzer == nil || p.replier == nil {
		return fmt.Errorf("pipeline is not fully configured")
	}
	if p.store == nil {
		return fmt.Errorf("object storage is not configured")
	}

	log := p.logger.With(
		slog.String("message_id", messageID),
		slog.String("message_type", ev.Message.Type))

	data, contentType, err := p.fetcher.FetchContent(ctx, messageID)
	if err != nil {
		metrics.MediaPipelineRuns.WithLabelValues("failed").Inc()
		metrics.MediaStageErrors.WithLabelValues("fetch").Inc()
		return fmt.Errorf("fetch content: %w", err)
	}

	ext := extensionFor(contentType)
	kind := kindFor(ext)
	key := messageID + ext

	if err := p.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		metrics.MediaPipelineRuns.WithLabelValues("failed").Inc()
		metrics.MediaStageErrors.WithLabelValues("stage").Inc()
		return fmt.Errorf("stage content: %w", err)
	}

	fileURL, err := p.store.URL(ctx, key, p.urlTTL)
	if err != nil {
		metrics.MediaPipelineRuns.WithLabelValues("failed").Inc()
		metrics.MediaStageErrors.WithLabelValues("stage").Inc()
		p.removeStaged(ctx, log, key)
		return fmt.Errorf("stage url: %w", err)
	}

	answer, analyzeErr := p.analyzer.AnalyzeFile(ctx, fileURL, kind)
	answer = strings.TrimSpace(answer)
	analyzed := analyzeErr == nil && answer != ""
	if !analyzed {
		metrics.MediaStageErrors.WithLabelValues("process").Inc()
		if analyzeErr != nil {
			log.Warn("analysis failed", slog.Any("error", analyzeErr))
		} else {
			log.Warn("analysis returned no answer")
		}
		answer = fallbackReply
	}

	// The staged object is only needed while the workflow reads it.
	p.removeStaged(ctx, log, key)

	replyErr := p.replier.Reply(ctx, ev.ReplyToken, answer)
	if replyErr != nil {
		metrics.MediaStageErrors.WithLabelValues("reply").Inc()
		log.Error("reply failed", slog.Any("error", replyErr))
	}

	if analyzed && replyErr == nil {
		metrics.MediaPipelineRuns.WithLabelValues("ok").Inc()
		log.Info("media processed",
			slog.String("kind", kind),
			slog.Int("answer_chars", len(answer)))
	} else {
		metrics.MediaPipelineRuns.WithLabelValues("failed").Inc()
	}
	return nil
}

// removeStaged deletes the staged object. Best effort because the janitor
// eventually collects anything left behind.
func (p *Pipeline) removeStaged(ctx context.Context, log *slog.Logger, key string) {
	if err := p.store.Delete(ctx, key); err != nil {
		metrics.MediaStageErrors.WithLabelValues("cleanup").Inc()
		log.Warn("cleanup failed", slog.String("key", key), slog.Any("error", err))
	}
}
