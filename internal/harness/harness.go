package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/vaultrev/internal/engine"
	"github.com/roach88/vaultrev/internal/ir"
	"github.com/roach88/vaultrev/internal/store"
	"github.com/roach88/vaultrev/internal/testutil"
)

// Harness executes one scenario against one engine.
type Harness struct {
	engine  *engine.Engine
	aliases map[string]string
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh SQLite database in a temporary directory.
// Execution flow:
//  1. Create the database and an engine with sequential ids and a
//     deterministic clock
//  2. Execute steps, checking each expect clause
//  3. Evaluate assertions
//  4. Snapshot the final state
//
// An error is returned only when the harness itself cannot run; scenario
// failures are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "vaultrev-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		engine: engine.New(st,
			engine.WithIDGenerator(testutil.NewSequentialIDs("id")),
			engine.WithClock(testutil.NewDeterministicClock(0)),
			engine.WithLogger(logger),
		),
		aliases: make(map[string]string),
		logger:  logger,
	}

	ctx := context.Background()
	result := NewResult()

	if h.executeSteps(ctx, scenario.Steps, result) {
		actx := &AssertionContext{Engine: h.engine, Aliases: h.aliases, Ctx: ctx}
		for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
			result.AddError(msg)
		}
	}

	final, err := h.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot final state: %w", err)
	}
	result.Final = final
	return result, nil
}

// executeSteps runs steps in order. It stops at the first step that fails
// unexpectedly and reports whether every step ran.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) bool {
	for i, step := range steps {
		trace, err := h.executeStep(ctx, i, step)
		if err != nil {
			var e *engine.Error
			if errors.As(err, &e) {
				trace.Error = string(e.Code)
			} else {
				trace.Error = err.Error()
			}
		}
		result.Trace = append(result.Trace, trace)

		if msg := checkExpect(i, step, trace, err); msg != "" {
			result.AddError(msg)
			return false
		}

		h.logger.Info("step completed",
			"step", i,
			"op", step.Op,
			"revision", trace.Revision,
			"conflicts", len(trace.Conflicts),
		)
	}
	return true
}

func (h *Harness) executeStep(ctx context.Context, i int, step Step) (StepTrace, error) {
	trace := StepTrace{Step: i, Op: step.Op}

	switch step.Op {
	case OpCreate:
		if _, exists := h.aliases[step.Item]; exists {
			return trace, fmt.Errorf("alias %q already defined", step.Item)
		}
		res, err := h.engine.CreateItem(ctx, engine.CreateItemRequest{
			AuthorUserID: step.Author,
			Values:       step.Values,
		})
		if err != nil {
			return trace, err
		}
		h.bind(step.Item, res.ItemID)
		h.bind(step.As, res.RevisionID)
		trace.Item = res.ItemID
		trace.Revision = res.RevisionID
		trace.VersionSeq = res.VersionSeq
		return trace, nil

	case OpEdit:
		itemID, err := h.resolve(step.Item)
		if err != nil {
			return trace, err
		}
		trace.Item = itemID
		base, err := h.revision(ctx, itemID, step.Base)
		if err != nil {
			return trace, err
		}
		changes, err := h.changesFromLive(ctx, itemID, step.Values)
		if err != nil {
			return trace, err
		}

		res, err := h.engine.RecordRevision(ctx, engine.RecordRequest{
			ItemID:         itemID,
			AuthorUserID:   step.Author,
			Changes:        changes,
			BaseRevisionID: base,
		})
		if err != nil {
			return trace, err
		}
		h.bind(step.As, res.RevisionID)
		h.bind(step.MergeAs, res.MergeRevisionID)
		h.bindAll(step.ConflictsAs, res.ConflictIDs)
		trace.Revision = res.RevisionID
		trace.VersionSeq = res.VersionSeq
		trace.FastForward = res.FastForward
		trace.Merge = res.MergeRevisionID
		trace.Conflicts = res.ConflictIDs
		return trace, nil

	case OpDetect:
		itemID, err := h.resolve(step.Item)
		if err != nil {
			return trace, err
		}
		trace.Item = itemID
		req := engine.DetectRequest{ItemID: itemID, OriginatorUserID: step.Author}
		if req.LocalRevisionID, err = h.revision(ctx, itemID, step.Local); err != nil {
			return trace, err
		}
		if req.BaseRevisionID, err = h.revision(ctx, itemID, step.Base); err != nil {
			return trace, err
		}
		if req.RemoteRevisionID, err = h.revision(ctx, itemID, step.Remote); err != nil {
			return trace, err
		}

		before, err := h.engine.GetItem(ctx, itemID)
		if err != nil {
			return trace, err
		}
		ids, err := h.engine.DetectAndEnqueueConflicts(ctx, req)
		if err != nil {
			return trace, err
		}
		h.bindAll(step.ConflictsAs, ids)
		trace.Conflicts = ids

		after, err := h.engine.GetItem(ctx, itemID)
		if err != nil {
			return trace, err
		}
		if after.HeadRevisionID != before.HeadRevisionID {
			trace.Merge = after.HeadRevisionID
			h.bind(step.MergeAs, after.HeadRevisionID)
		}
		return trace, nil

	case OpResolve:
		conflictID, err := h.resolve(step.Conflict)
		if err != nil {
			return trace, err
		}
		trace.Conflict = conflictID
		ok, err := h.engine.AdminResolveConflict(ctx, engine.ResolveRequest{
			ConflictID:          conflictID,
			AdminUserID:         step.Admin,
			MergedValues:        step.Values,
			Summary:             step.Summary,
			CreateMergeRevision: step.CreateRevision,
		})
		if err != nil {
			return trace, err
		}
		trace.Resolved = ok

		if step.As != "" {
			c, err := h.engine.GetConflictDetail(ctx, conflictID)
			if err != nil {
				return trace, err
			}
			item, err := h.engine.GetItem(ctx, c.ItemID)
			if err != nil {
				return trace, err
			}
			h.bind(step.As, item.HeadRevisionID)
		}
		return trace, nil
	}
	return trace, fmt.Errorf("unknown op %q", step.Op)
}

// checkExpect compares a step outcome with its expect clause and returns a
// failure message, or "" if the step behaved as expected.
func checkExpect(i int, step Step, trace StepTrace, err error) string {
	exp := step.Expect
	if exp == nil {
		exp = &Expect{}
	}
	if exp.Error != "" {
		if err == nil {
			return fmt.Sprintf("steps[%d] %s: expected error %s, got success", i, step.Op, exp.Error)
		}
		if trace.Error != exp.Error {
			return fmt.Sprintf("steps[%d] %s: expected error %s, got %v", i, step.Op, exp.Error, err)
		}
		return ""
	}
	if err != nil {
		return fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Op, err)
	}

	if exp.FastForward != nil && *exp.FastForward != trace.FastForward {
		return fmt.Sprintf("steps[%d] %s: expected fast_forward=%t, got %t", i, step.Op, *exp.FastForward, trace.FastForward)
	}
	if exp.Merged != nil && *exp.Merged != (trace.Merge != "") {
		return fmt.Sprintf("steps[%d] %s: expected merged=%t, got merge revision %q", i, step.Op, *exp.Merged, trace.Merge)
	}
	if exp.Conflicts != nil && *exp.Conflicts != len(trace.Conflicts) {
		return fmt.Sprintf("steps[%d] %s: expected %d conflicts, got %d", i, step.Op, *exp.Conflicts, len(trace.Conflicts))
	}
	return ""
}

func (h *Harness) bind(alias, id string) {
	if alias != "" && id != "" {
		h.aliases[alias] = id
	}
}

func (h *Harness) bindAll(aliases, ids []string) {
	for i, alias := range aliases {
		if i < len(ids) {
			h.bind(alias, ids[i])
		}
	}
}

func (h *Harness) resolve(alias string) (string, error) {
	id, ok := h.aliases[alias]
	if !ok {
		return "", fmt.Errorf("unknown alias %q", alias)
	}
	return id, nil
}

// revision resolves a revision alias. "" stays empty and HeadAlias reads
// the item's current head.
func (h *Harness) revision(ctx context.Context, itemID, alias string) (string, error) {
	switch alias {
	case "":
		return "", nil
	case HeadAlias:
		item, err := h.engine.GetItem(ctx, itemID)
		if err != nil {
			return "", err
		}
		return item.HeadRevisionID, nil
	}
	return h.resolve(alias)
}

// changesFromLive pairs each new value with the item's current live value.
func (h *Harness) changesFromLive(ctx context.Context, itemID string, values map[string]string) (map[string]ir.FieldChange, error) {
	item, err := h.engine.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	changes := make(map[string]ir.FieldChange, len(values))
	for name, v := range values {
		old, _ := item.Field(name)
		changes[name] = ir.Change(old, v)
	}
	return changes, nil
}

func (h *Harness) snapshot(ctx context.Context) (FinalState, error) {
	final := FinalState{Items: []ItemState{}, OpenConflicts: []ConflictState{}}

	items, err := h.engine.ListItems(ctx)
	if err != nil {
		return final, err
	}
	for _, item := range items {
		final.Items = append(final.Items, ItemState{
			ItemID:     item.ID,
			Head:       item.HeadRevisionID,
			VersionSeq: item.VersionSeq,
			Fields:     item.Fields(),
		})
	}

	conflicts, err := h.engine.ListOpenConflicts(ctx, engine.ConflictFilter{})
	if err != nil {
		return final, err
	}
	for _, c := range conflicts {
		final.OpenConflicts = append(final.OpenConflicts, ConflictState{
			ConflictID: c.ID,
			ItemID:     c.ItemID,
			Field:      c.FieldName,
		})
	}
	return final, nil
}
