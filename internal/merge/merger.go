// Package merge reconciles concurrent edits of a single text field.
//
// Merger implements the field-level rules (unchanged side fast-forwards,
// otherwise delegate) on top of a Primitive, the opaque three-way text
// merge. The default primitive is a line-granular diff3 built on
// diffmatchpatch. Everything here is pure and deterministic.
package merge

import "fmt"

// Primitive is a three-way text merge. automergeable is false when the
// two sides changed overlapping regions of the ancestor. An error means
// the primitive itself failed, which is distinct from a conflict.
type Primitive interface {
	MergeFile(ancestor, ours, theirs []byte) (merged []byte, automergeable bool, err error)
}

// Result is the outcome of merging one field.
type Result struct {
	Text  string
	Clean bool
}

// MergeFailure wraps an error returned by the primitive.
type MergeFailure struct {
	Err error
}

func (e *MergeFailure) Error() string {
	return fmt.Sprintf("merge primitive failed: %v", e.Err)
}

func (e *MergeFailure) Unwrap() error {
	return e.Err
}

// Merger applies the field merge rules over a Primitive.
type Merger struct {
	primitive Primitive
}

// New returns a Merger over p. A nil p selects the DiffMatchPatch primitive.
func New(p Primitive) *Merger {
	if p == nil {
		p = NewDiffMatchPatch()
	}
	return &Merger{primitive: p}
}

// Merge reconciles local and remote edits of base.
//
// If local left base unchanged the remote value wins, and vice versa; both
// are clean. Anything else goes to the primitive.
func (m *Merger) Merge(base, local, remote string) (Result, error) {
	if base == local {
		return Result{Text: remote, Clean: true}, nil
	}
	if base == remote {
		return Result{Text: local, Clean: true}, nil
	}

	merged, ok, err := m.primitive.MergeFile([]byte(base), []byte(local), []byte(remote))
	if err != nil {
		return Result{}, &MergeFailure{Err: err}
	}
	if !ok {
		return Result{Clean: false}, nil
	}
	return Result{Text: string(merged), Clean: true}, nil
}

// Outcome classifies a Merge call for logging and metrics.
type Outcome string

const (
	OutcomeClean            Outcome = "clean"
	OutcomeAmbiguous        Outcome = "merge_ambiguous"
	OutcomePrimitiveFailure Outcome = "merge_primitive_failure"
)

// Classify maps the return values of Merge to an Outcome.
func Classify(res Result, err error) Outcome {
	switch {
	case err != nil:
		return OutcomePrimitiveFailure
	case !res.Clean:
		return OutcomeAmbiguous
	default:
		return OutcomeClean
	}
}
