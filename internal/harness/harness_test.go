package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool    { return &b }
func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func TestRun_FastForward(t *testing.T) {
	scenario := &Scenario{
		Name:        "ff",
		Description: "fast-forward",
		Steps: []Step{
			{Op: OpCreate, Item: "note", As: "r1", Values: map[string]string{"Name": "a"}},
			{Op: OpEdit, Item: "note", Base: "r1", As: "r2", Values: map[string]string{"Name": "b"},
				Expect: &Expect{FastForward: boolPtr(true), Conflicts: intPtr(0)}},
		},
		Assertions: []Assertion{
			{Type: AssertHead, Item: "note", Rev: "r2"},
			{Type: AssertField, Item: "note", Field: "Name", Value: strPtr("b")},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "id-0001", result.Trace[0].Item)
	assert.Equal(t, "id-0003", result.Trace[1].Revision)
	assert.Equal(t, int64(2), result.Trace[1].VersionSeq)

	require.Len(t, result.Final.Items, 1)
	assert.Equal(t, "id-0003", result.Final.Items[0].Head)
	assert.Equal(t, "b", result.Final.Items[0].Fields["Name"])
	assert.Empty(t, result.Final.OpenConflicts)
}

func TestRun_ExpectedError(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_base",
		Description: "base from another item",
		Steps: []Step{
			{Op: OpCreate, Item: "a", As: "a1", Values: map[string]string{"Name": "a"}},
			{Op: OpCreate, Item: "b", As: "b1", Values: map[string]string{"Name": "b"}},
			{Op: OpEdit, Item: "a", Base: "b1", Values: map[string]string{"Name": "x"},
				Expect: &Expect{Error: "INVALID_BASE"}},
		},
		Assertions: []Assertion{
			{Type: AssertHead, Item: "a", Rev: "a1"},
			{Type: AssertVersions, Item: "a", Count: intPtr(1)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "INVALID_BASE", result.Trace[2].Error)
}

func TestRun_UnexpectedErrorStopsSteps(t *testing.T) {
	scenario := &Scenario{
		Name:        "stops",
		Description: "unknown alias",
		Steps: []Step{
			{Op: OpEdit, Item: "missing", Values: map[string]string{"Name": "x"}},
			{Op: OpCreate, Item: "note"},
		},
		Assertions: []Assertion{
			{Type: AssertVerify, Item: "note"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Trace, 1)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Contains(t, result.Trace[0].Error, `unknown alias "missing"`)
}

func TestRun_ExpectationMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "expects a conflict that does not happen",
		Steps: []Step{
			{Op: OpCreate, Item: "note", As: "r1", Values: map[string]string{"Name": "a"}},
			{Op: OpEdit, Item: "note", Base: "r1", Values: map[string]string{"Name": "b"},
				Expect: &Expect{Conflicts: intPtr(1)}},
		},
		Assertions: []Assertion{
			{Type: AssertVerify, Item: "note"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected 1 conflicts, got 0")
}

func TestRun_DetectStaleRemote(t *testing.T) {
	scenario := &Scenario{
		Name:        "detect_stale",
		Description: "standalone detection refuses to merge against a remote that is no longer head",
		Steps: []Step{
			{Op: OpCreate, Item: "note", As: "base", Values: map[string]string{"Name": "x", "Content": "c"}},
			{Op: OpEdit, Item: "note", Base: "base", As: "remote", Values: map[string]string{"Content": "c2"}},
			{Op: OpEdit, Item: "note", Base: "base", As: "local", MergeAs: "merged", Values: map[string]string{"Name": "x2"},
				Expect: &Expect{Merged: boolPtr(true)}},
			{Op: OpDetect, Item: "note", Local: "local", Base: "base", Remote: "remote",
				Expect: &Expect{Error: "STALE_HEAD"}},
		},
		Assertions: []Assertion{
			{Type: AssertHead, Item: "note", Rev: "merged"},
			{Type: AssertParents, Rev: "merged", Parents: []string{"remote", "local"}},
			{Type: AssertVersions, Item: "note", Count: intPtr(4)},
			{Type: AssertOpenConflicts, Count: intPtr(0)},
			{Type: AssertVerify, Item: "note"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "id-0005", result.Trace[2].Merge)
	assert.Equal(t, "STALE_HEAD", result.Trace[3].Error)
}
