package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/roach88/vaultrev/internal/ir"
	"github.com/roach88/vaultrev/internal/merge"
	"github.com/roach88/vaultrev/internal/store"
)

// Engine records revisions, detects and enqueues conflicts, and applies
// admin resolutions against one store.
//
// Thread-safety: Engine holds no mutable state of its own. Concurrent
// calls are serialized per item by the store's item lock.
type Engine struct {
	store   *store.Store
	ids     IDGenerator
	clock   Clock
	merger  *merge.Merger
	logger  *slog.Logger
	strict  bool
	metrics *instruments
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithIDGenerator sets the revision and conflict id source.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithClock sets the timestamp source.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithMerger sets the field merger.
func WithMerger(m *merge.Merger) Option {
	return func(e *Engine) {
		e.merger = m
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithStrictResolve makes AdminResolveConflict fail with ALREADY_RESOLVED
// instead of succeeding idempotently on a resolved conflict.
func WithStrictResolve(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// New creates an Engine over st.
//
// Defaults: UUIDv7 ids, the system clock, the diffmatchpatch merger and
// slog.Default().
func New(st *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		ids:    UUIDv7Generator{},
		clock:  SystemClock{},
		merger: merge.New(nil),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics = newInstruments()
	return e
}

// Store returns the engine's backing store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// fail logs a backend failure and returns the classified error.
func (e *Engine) fail(ctx context.Context, op string, err error, itemID, conflictID string) error {
	err = classify(err, itemID, conflictID)
	if IsBackendUnavailable(err) {
		e.logger.ErrorContext(ctx, "backend operation failed",
			"op", op,
			"item_id", itemID,
			"conflict_id", conflictID,
			"error", err,
		)
	}
	return err
}

// appendRevision is the low-level insertion path shared by every write:
// revision row, field rows, next version row and parent edges. It neither
// moves the head nor runs conflict detection. The caller must hold the
// item lock.
func (e *Engine) appendRevision(ctx context.Context, tx *store.Tx, rev ir.Revision, changes map[string]ir.FieldChange, parents ...string) (int64, error) {
	if err := tx.InsertRevision(ctx, rev); err != nil {
		return 0, err
	}
	if err := tx.InsertRevisionFields(ctx, rev.ID, changes); err != nil {
		return 0, err
	}

	seq, err := tx.NextVersionSeq(ctx, rev.ItemID)
	if err != nil {
		return 0, err
	}
	if err := tx.InsertItemVersion(ctx, ir.ItemVersion{ItemID: rev.ItemID, VersionSeq: seq, RevisionID: rev.ID}); err != nil {
		return 0, err
	}

	for _, parent := range parents {
		if parent == "" {
			continue
		}
		if err := tx.InsertParent(ctx, ir.ParentEdge{RevisionID: rev.ID, ParentRevisionID: parent}); err != nil {
			return 0, err
		}
	}
	return seq, nil
}

// advanceHead moves the item head and writes the new live values in the
// same transaction, so head state and live values never disagree.
func (e *Engine) advanceHead(ctx context.Context, tx *store.Tx, itemID, revisionID string, seq int64, changes map[string]ir.FieldChange, now int64) error {
	if err := tx.SetHead(ctx, itemID, revisionID, seq, now); err != nil {
		return err
	}
	return tx.WriteItemFields(ctx, itemID, liveValues(changes), now)
}

// liveValues extracts the new value of each change. NULL becomes "".
func liveValues(changes map[string]ir.FieldChange) map[string]string {
	values := make(map[string]string, len(changes))
	for name, c := range changes {
		values[name] = c.New.String
	}
	return values
}

// checkOwnRevision confirms that a non-empty revisionID exists and belongs
// to itemID, building the failure with reject.
func checkOwnRevision(ctx context.Context, tx *store.Tx, itemID, revisionID string, reject func(itemID, revisionID, reason string) *Error) error {
	if revisionID == "" {
		return nil
	}
	rev, err := tx.ReadRevision(ctx, revisionID)
	if errors.Is(err, store.ErrNotFound) {
		return reject(itemID, revisionID, "does not exist")
	}
	if err != nil {
		return err
	}
	if rev.ItemID != itemID {
		return reject(itemID, revisionID, "belongs to item "+rev.ItemID)
	}
	return nil
}

// checkFields rejects names outside the item column set, reporting the
// first offender in name order.
func checkFields[V any](itemID string, fields map[string]V) error {
	for _, name := range sortedKeys(fields) {
		if !ir.IsKnownField(name) {
			return newUnknownFieldError(itemID, name)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
