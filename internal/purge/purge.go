// Package purge bulk-deletes recent messages across one or many channels.
//
// Channels are scanned newest-first in pages, eligible messages are collected
// into a single batch per channel and submitted in one batched delete. The
// platform refuses batched deletes that contain messages older than MaxAge,
// so those are counted as skipped and never submitted. A failure in one
// channel is recorded against that channel and never aborts the others.
package purge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gavel/internal/metrics"
	"gavel/internal/tracing"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// PageSize is the platform's maximum history page
	PageSize = 100

	// MaxBatch is the platform's maximum batched delete
	MaxBatch = 100

	// MaxAge is the oldest message a batched delete accepts
	MaxAge = 14 * 24 * time.Hour

	// DefaultWorkers is the number of channels processed at once
	DefaultWorkers = 3
)

// ErrInvalidLimit is returned when the per-channel limit is not positive
var ErrInvalidLimit = errors.New("purge: per-channel limit must be positive")

// Message is a handle on one message in a channel's history
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	AuthorBot bool
	Pinned    bool
	CreatedAt time.Time
}

// History is the platform's channel history and delete API
type History interface {
	// FetchPage returns up to limit messages older than before, newest first.
	// An empty before means "most recent".
	FetchPage(ctx context.Context, channelID, before string, limit int) ([]Message, error)

	// BatchDelete removes the given messages and returns how many were
	// actually deleted.
	BatchDelete(ctx context.Context, channelID string, ids []string) (int, error)
}

// Options bound a single purge run
type Options struct {
	// PerChannelLimit caps the batch for each channel. It is clamped to MaxBatch.
	PerChannelLimit int

	// MaxAge overrides the platform age cutoff. Zero uses MaxAge.
	MaxAge time.Duration
}

// Engine runs purges against a History
type Engine struct {
	history History
	workers int
	limiter *rate.Limiter
	now     func() time.Time
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithWorkers sets how many channels are processed concurrently
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLimiter paces every platform call through l
func WithLimiter(l *rate.Limiter) EngineOption {
	return func(e *Engine) {
		e.limiter = l
	}
}

// WithClock replaces the clock used to compute message age
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a purge engine
func NewEngine(history History, opts ...EngineOption) *Engine {
	e := &Engine{
		history: history,
		workers: DefaultWorkers,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Purge deletes messages matching pred in every channel of scope. The only
// error it returns is for invalid options; per-channel failures are
// reported in the Outcome.
func (e *Engine) Purge(ctx context.Context, scope []string, pred Predicate, opts Options) (Outcome, error) {
	if opts.PerChannelLimit <= 0 {
		return Outcome{}, ErrInvalidLimit
	}
	if pred == nil {
		pred = All()
	}
	limit := min(opts.PerChannelLimit, MaxBatch)
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = MaxAge
	}

	results := make([]ChannelResult, len(scope))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, channelID := range scope {
		g.Go(func() error {
			results[i] = e.purgeChannel(ctx, channelID, pred, limit, maxAge)
			return nil
		})
	}
	_ = g.Wait()

	outcome := aggregate(results)
	metrics.PurgeDeletedTotal.Add(float64(outcome.Deleted))
	metrics.PurgeSkippedTotal.Add(float64(outcome.Skipped))
	metrics.PurgeChannelErrorsTotal.Add(float64(len(outcome.Errors)))

	log.Info().
		Int("channels", len(scope)).
		Int("deleted", outcome.Deleted).
		Int("skipped", outcome.Skipped).
		Int("affected", outcome.ChannelsAffected).
		Int("errors", len(outcome.Errors)).
		Msg("purge: run complete")

	return outcome, nil
}

func (e *Engine) purgeChannel(ctx context.Context, channelID string, pred Predicate, limit int, maxAge time.Duration) (res ChannelResult) {
	ctx, span := tracing.PlatformSpan(ctx, "purge.channel", channelID)
	defer span.End()

	res.ChannelID = channelID

	batch, err := e.collect(ctx, channelID, pred, limit, maxAge)
	res.Skipped = batch.Skipped
	res.Matched = len(batch.ToDelete)
	res.LimitReached = batch.LimitReached
	if err != nil {
		res.Err = fmt.Errorf("fetch history: %w", err)
		tracing.EndWithError(span, res.Err)
		log.Warn().Err(err).Str("channel", channelID).Msg("purge: history scan failed")
		return res
	}

	if len(batch.ToDelete) == 0 {
		return res
	}

	if err := e.wait(ctx); err != nil {
		res.Err = err
		return res
	}

	deleted, err := e.history.BatchDelete(ctx, channelID, batch.IDs())
	if err != nil {
		res.Err = fmt.Errorf("batch delete: %w", err)
		tracing.EndWithError(span, res.Err)
		log.Warn().Err(err).Str("channel", channelID).Int("batch", len(batch.ToDelete)).Msg("purge: batch delete failed")
		return res
	}

	res.Deleted = min(deleted, len(batch.ToDelete))
	log.Debug().
		Str("channel", channelID).
		Int("submitted", len(batch.ToDelete)).
		Int("deleted", res.Deleted).
		Int("skipped", res.Skipped).
		Msg("purge: channel done")
	return res
}

// collect pages through a channel's history and builds its delete batch.
// Scanning stops once the batch is full or history runs out. Matching
// messages past the age cutoff are counted as skipped; non-matching ones
// are ignored whatever their age.
func (e *Engine) collect(ctx context.Context, channelID string, pred Predicate, limit int, maxAge time.Duration) (Batch, error) {
	var batch Batch
	before := ""
	now := e.now()

	for {
		if err := e.wait(ctx); err != nil {
			return batch, err
		}

		page, err := e.history.FetchPage(ctx, channelID, before, PageSize)
		if err != nil {
			return batch, err
		}
		if len(page) == 0 {
			return batch, nil
		}

		for _, msg := range page {
			if !pred(msg) {
				continue
			}
			if now.Sub(msg.CreatedAt) > maxAge {
				batch.Skipped++
				continue
			}
			batch.ToDelete = append(batch.ToDelete, msg)
			if len(batch.ToDelete) >= limit {
				batch.LimitReached = true
				return batch, nil
			}
		}

		if len(page) < PageSize {
			return batch, nil
		}
		before = page[len(page)-1].ID
	}
}

func (e *Engine) wait(ctx context.Context) error {
	if e.limiter == nil {
		return ctx.Err()
	}
	return e.limiter.Wait(ctx)
}
