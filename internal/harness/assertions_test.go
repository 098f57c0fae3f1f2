package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertHead, Expected: "head is r2", Actual: "id-0002"}
	assert.Equal(t, "Assertion failed: head\n  Expected: head is r2\n  Actual: id-0002", err.Error())
}

func conflictScenario(assertions ...Assertion) *Scenario {
	return &Scenario{
		Name:        "assertions",
		Description: "same-field conflict",
		Steps: []Step{
			{Op: OpCreate, Item: "note", As: "base", Values: map[string]string{"Name": "x"}},
			{Op: OpEdit, Item: "note", Base: "base", As: "remote", Values: map[string]string{"Name": "r"}},
			{Op: OpEdit, Item: "note", Base: "base", As: "local", Values: map[string]string{"Name": "l"},
				ConflictsAs: []string{"c1"}},
		},
		Assertions: assertions,
	}
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	result, err := Run(conflictScenario(
		Assertion{Type: AssertHead, Item: "note", Rev: "remote"},
		Assertion{Type: AssertField, Item: "note", Field: "Name", Value: strPtr("r")},
		Assertion{Type: AssertField, Item: "note", Rev: "local", Field: "Name", Value: strPtr("l")},
		Assertion{Type: AssertOpenConflicts, Item: "note", Count: intPtr(1)},
		Assertion{Type: AssertConflict, Conflict: "c1", Field: "Name", Status: "open"},
		Assertion{Type: AssertVersions, Item: "note", Count: intPtr(3)},
		Assertion{Type: AssertParents, Rev: "local", Parents: []string{"base"}},
		Assertion{Type: AssertParents, Rev: "base", Parents: []string{}},
		Assertion{Type: AssertVerify, Item: "note"},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{
			name:      "head",
			assertion: Assertion{Type: AssertHead, Item: "note", Rev: "local"},
			want:      "Assertion failed: head",
		},
		{
			name:      "field",
			assertion: Assertion{Type: AssertField, Item: "note", Field: "Name", Value: strPtr("l")},
			want:      `note.Name (live) = "l"`,
		},
		{
			name:      "open conflicts",
			assertion: Assertion{Type: AssertOpenConflicts, Count: intPtr(0)},
			want:      "0 open conflicts",
		},
		{
			name:      "conflict status",
			assertion: Assertion{Type: AssertConflict, Conflict: "c1", Status: "resolved"},
			want:      "conflict c1 status resolved",
		},
		{
			name:      "versions",
			assertion: Assertion{Type: AssertVersions, Item: "note", Count: intPtr(2)},
			want:      "2 versions of note",
		},
		{
			name:      "parents",
			assertion: Assertion{Type: AssertParents, Rev: "local", Parents: []string{"remote"}},
			want:      "parents of local",
		},
		{
			name:      "unknown alias",
			assertion: Assertion{Type: AssertHead, Item: "note", Rev: "nope"},
			want:      `unknown alias "nope"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(conflictScenario(tt.assertion))
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], "assertions[0]")
			assert.Contains(t, result.Errors[0], tt.want)
		})
	}
}
