package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/vaultrev/internal/merge"
	"github.com/roach88/vaultrev/internal/telemetry"
)

const scopeName = "github.com/roach88/vaultrev/engine"

// Revision paths for the vaultrev.revisions.recorded counter.
const (
	pathCreate      = "create"
	pathFastForward = "fast_forward"
	pathDivergent   = "divergent"
)

// Merge sources for the vaultrev.merges.created counter.
const (
	sourceAuto  = "auto"
	sourceAdmin = "admin"
)

// instruments holds the engine's counters and tracer. Instruments are
// resolved from the global providers at construction, so telemetry.Init
// must run before engine.New for export to take effect.
type instruments struct {
	tracer   trace.Tracer
	recorded metric.Int64Counter
	opened   metric.Int64Counter
	merges   metric.Int64Counter
	resolved metric.Int64Counter
}

func newInstruments() *instruments {
	m := telemetry.Meter(scopeName)
	recorded, _ := m.Int64Counter("vaultrev.revisions.recorded",
		metric.WithDescription("Revisions recorded, by path"),
	)
	opened, _ := m.Int64Counter("vaultrev.conflicts.opened",
		metric.WithDescription("Conflicts enqueued, by merge outcome"),
	)
	merges, _ := m.Int64Counter("vaultrev.merges.created",
		metric.WithDescription("Merge revisions synthesized, by source"),
	)
	resolved, _ := m.Int64Counter("vaultrev.conflicts.resolved",
		metric.WithDescription("Conflicts resolved by an admin"),
	)
	return &instruments{
		tracer:   telemetry.Tracer(scopeName),
		recorded: recorded,
		opened:   opened,
		merges:   merges,
		resolved: resolved,
	}
}

// span starts a span for a public operation. The returned func ends it and
// records err, if any.
func (in *instruments) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := in.tracer.Start(ctx, "engine."+name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (in *instruments) revisionRecorded(ctx context.Context, path string) {
	in.recorded.Add(ctx, 1, metric.WithAttributes(attribute.String("path", path)))
}

func (in *instruments) conflictOpened(ctx context.Context, outcome merge.Outcome) {
	in.opened.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(outcome))))
}

func (in *instruments) mergeCreated(ctx context.Context, source string) {
	in.merges.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (in *instruments) conflictResolved(ctx context.Context, withRevision bool) {
	in.resolved.Add(ctx, 1, metric.WithAttributes(attribute.Bool("merge_revision", withRevision)))
}
