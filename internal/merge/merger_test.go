package merge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPrimitive struct {
	merged []byte
	ok     bool
	err    error
	calls  int
}

func (s *stubPrimitive) MergeFile(_, _, _ []byte) ([]byte, bool, error) {
	s.calls++
	return s.merged, s.ok, s.err
}

func TestMergeUnchangedSideShortCircuits(t *testing.T) {
	stub := &stubPrimitive{}
	m := New(stub)

	res, err := m.Merge("x", "x", "remote")
	require.NoError(t, err)
	assert.Equal(t, Result{Text: "remote", Clean: true}, res)

	res, err = m.Merge("x", "local", "x")
	require.NoError(t, err)
	assert.Equal(t, Result{Text: "local", Clean: true}, res)

	assert.Zero(t, stub.calls, "primitive must not be called when one side is unchanged")
}

func TestMergeDelegatesToPrimitive(t *testing.T) {
	stub := &stubPrimitive{merged: []byte("both"), ok: true}
	res, err := New(stub).Merge("base", "l", "r")
	require.NoError(t, err)
	assert.Equal(t, Result{Text: "both", Clean: true}, res)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, OutcomeClean, Classify(res, err))
}

func TestMergeAmbiguous(t *testing.T) {
	res, err := New(&stubPrimitive{ok: false}).Merge("base", "l", "r")
	require.NoError(t, err)
	assert.False(t, res.Clean)
	assert.Equal(t, OutcomeAmbiguous, Classify(res, err))
}

func TestMergePrimitiveFailure(t *testing.T) {
	boom := errors.New("boom")
	res, err := New(&stubPrimitive{err: boom}).Merge("base", "l", "r")
	require.Error(t, err)

	var mf *MergeFailure
	require.ErrorAs(t, err, &mf)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, OutcomePrimitiveFailure, Classify(res, err))
}

func TestMergeDefaultPrimitive(t *testing.T) {
	res, err := New(nil).Merge("a\nb\nc\n", "A\nb\nc\n", "a\nb\nC\n")
	require.NoError(t, err)
	assert.True(t, res.Clean)
	assert.Equal(t, "A\nb\nC\n", res.Text)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		err  error
		want Outcome
	}{
		{"clean", Result{Text: "x", Clean: true}, nil, OutcomeClean},
		{"ambiguous", Result{}, nil, OutcomeAmbiguous},
		{"wrapped failure", Result{}, &MergeFailure{Err: errors.New("boom")}, OutcomePrimitiveFailure},
		{"bare error", Result{Clean: true}, errors.New("boom"), OutcomePrimitiveFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.res, tt.err))
		})
	}
}
