// Package syncer reconciles a local replica with a remote one.
//
// Each pass compares every item's live values on both sides against the
// sync base the local replica recorded at the previous pass, and moves
// changes through the remote engine's RecordRevision so that divergent
// edits meet conflict detection there. Conflicts are left for an admin;
// the pass does not resolve anything itself.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/vaultrev/internal/engine"
	"github.com/roach88/vaultrev/internal/ir"
	"github.com/roach88/vaultrev/internal/telemetry"
)

// DefaultMaxElapsed bounds the retries for one item.
const DefaultMaxElapsed = 30 * time.Second

// Report summarizes one pass. Item lists are in item id order.
type Report struct {
	Uploaded    []string          `json:"uploaded"`
	Downloaded  []string          `json:"downloaded"`
	Created     []string          `json:"created"`
	Merged      []string          `json:"merged"`
	Conflicted  []string          `json:"conflicted"`
	ConflictIDs []string          `json:"conflict_ids"`
	Failed      map[string]string `json:"failed"`
}

func newReport() Report {
	return Report{
		Uploaded:    []string{},
		Downloaded:  []string{},
		Created:     []string{},
		Merged:      []string{},
		Conflicted:  []string{},
		ConflictIDs: []string{},
		Failed:      map[string]string{},
	}
}

// OK reports whether every item synced or is waiting on an admin.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

// Syncer drives one local and one remote engine.
type Syncer struct {
	local      *engine.Engine
	remote     *engine.Engine
	author     int64
	maxElapsed time.Duration
	clock      engine.Clock
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithAuthor sets the user id recorded on revisions the syncer writes.
func WithAuthor(id int64) Option {
	return func(s *Syncer) { s.author = id }
}

// WithMaxElapsed bounds transient-failure retries per item. Zero keeps
// DefaultMaxElapsed.
func WithMaxElapsed(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.maxElapsed = d
		}
	}
}

// WithClock sets the SyncedAt timestamp source.
func WithClock(c engine.Clock) Option {
	return func(s *Syncer) { s.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// New creates a Syncer. Sync bases live in the local engine's store.
func New(local, remote *engine.Engine, opts ...Option) *Syncer {
	s := &Syncer{
		local:      local,
		remote:     remote,
		maxElapsed: DefaultMaxElapsed,
		clock:      engine.SystemClock{},
		logger:     slog.Default(),
		tracer:     telemetry.Tracer("github.com/roach88/vaultrev/syncer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload runs one pass over the union of local and remote item ids.
//
// A failure on one item is recorded in Report.Failed and the pass moves
// on. The returned error is non-nil only when the item lists cannot be
// loaded or ctx is done.
func (s *Syncer) Upload(ctx context.Context) (Report, error) {
	ctx, span := s.tracer.Start(ctx, "syncer.Upload")
	defer span.End()

	report := newReport()

	var localItems, remoteItems []ir.Item
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.local.ListItems(gctx)
		if err != nil {
			return fmt.Errorf("list local items: %w", err)
		}
		localItems = items
		return nil
	})
	g.Go(func() error {
		items, err := s.remote.ListItems(gctx)
		if err != nil {
			return fmt.Errorf("list remote items: %w", err)
		}
		remoteItems = items
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}

	for _, id := range unionIDs(localItems, remoteItems) {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var res itemResult
		err := backoff.Retry(func() error {
			var err error
			res, err = s.syncItem(ctx, id)
			if err != nil && !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}, backoff.WithContext(s.newBackOff(), ctx))
		if err != nil {
			s.logger.ErrorContext(ctx, "item sync failed", "item_id", id, "error", err)
			report.Failed[id] = err.Error()
			continue
		}
		res.apply(&report, id)
		if res.action != actionNone {
			s.logger.InfoContext(ctx, "item synced", "item_id", id, "action", string(res.action))
		}
	}

	span.SetAttributes(
		attribute.Int("sync.items", len(localItems)+len(remoteItems)),
		attribute.Int("sync.failed", len(report.Failed)),
		attribute.Int("sync.conflicted", len(report.Conflicted)),
	)
	return report, nil
}

func (s *Syncer) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.maxElapsed
	return bo
}

func unionIDs(a, b []ir.Item) []string {
	seen := make(map[string]bool, len(a)+len(b))
	ids := make([]string, 0, len(a)+len(b))
	for _, items := range [][]ir.Item{a, b} {
		for _, item := range items {
			if !seen[item.ID] {
				seen[item.ID] = true
				ids = append(ids, item.ID)
			}
		}
	}
	sort.Strings(ids)
	return ids
}
