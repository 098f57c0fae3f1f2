package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/vaultrev/internal/ir"
)

// Snapshot is what a golden file records for one scenario run.
type Snapshot struct {
	ScenarioName string
	Trace        []StepTrace
	Final        FinalState
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization. Zero-valued step fields are omitted so each op records
// only what it produces.
func (s *Snapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, st := range s.Trace {
		m := map[string]any{
			"step": st.Step,
			"op":   st.Op,
		}
		if st.Error != "" {
			m["error"] = st.Error
			trace[i] = m
			continue
		}
		if st.Item != "" {
			m["item"] = st.Item
		}
		if st.Revision != "" {
			m["revision"] = st.Revision
			m["version_seq"] = st.VersionSeq
		}
		if st.Op == OpEdit {
			m["fast_forward"] = st.FastForward
		}
		if st.Merge != "" {
			m["merge"] = st.Merge
		}
		if st.Op == OpEdit || st.Op == OpDetect {
			m["conflicts"] = stringList(st.Conflicts)
		}
		if st.Conflict != "" {
			m["conflict"] = st.Conflict
			m["resolved"] = st.Resolved
		}
		trace[i] = m
	}

	items := make([]any, len(s.Final.Items))
	for i, item := range s.Final.Items {
		items[i] = map[string]any{
			"item_id":     item.ItemID,
			"head":        item.Head,
			"version_seq": item.VersionSeq,
			"fields":      item.Fields,
		}
	}
	conflicts := make([]any, len(s.Final.OpenConflicts))
	for i, c := range s.Final.OpenConflicts {
		conflicts[i] = map[string]any{
			"conflict_id": c.ConflictID,
			"item_id":     c.ItemID,
			"field":       c.Field,
		}
	}

	return map[string]any{
		"scenario": s.ScenarioName,
		"trace":    trace,
		"final": map[string]any{
			"items":          items,
			"open_conflicts": conflicts,
		},
	}
}

func stringList(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// MarshalSnapshot renders a result as canonical JSON.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snap := Snapshot{ScenarioName: name, Trace: result.Trace, Final: result.Final}
	return ir.MarshalCanonical(snap.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
