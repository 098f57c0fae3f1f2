package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/vaultrev/internal/engine"
)

// AssertionContext provides what assertions read from.
type AssertionContext struct {
	Engine  *engine.Engine
	Aliases map[string]string
	Ctx     context.Context
}

func (a *AssertionContext) id(alias string) (string, error) {
	id, ok := a.Aliases[alias]
	if !ok {
		return "", fmt.Errorf("unknown alias %q", alias)
	}
	return id, nil
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns one message per
// failure.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	errs := []string{}
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertHead:
		return assertHead(a, actx)
	case AssertField:
		return assertField(a, actx)
	case AssertOpenConflicts:
		return assertOpenConflicts(a, actx)
	case AssertConflict:
		return assertConflict(a, actx)
	case AssertVersions:
		return assertVersions(a, actx)
	case AssertParents:
		return assertParents(a, actx)
	case AssertVerify:
		return assertVerify(a, actx)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertHead(a Assertion, actx *AssertionContext) error {
	itemID, err := actx.id(a.Item)
	if err != nil {
		return err
	}
	want, err := actx.id(a.Rev)
	if err != nil {
		return err
	}
	item, err := actx.Engine.GetItem(actx.Ctx, itemID)
	if err != nil {
		return err
	}
	if item.HeadRevisionID != want {
		return &AssertionError{
			Type:     AssertHead,
			Expected: fmt.Sprintf("head of %s is %s (%s)", a.Item, a.Rev, want),
			Actual:   item.HeadRevisionID,
		}
	}
	return nil
}

// assertField checks the live value, or the GetFieldValue result when a
// revision is given.
func assertField(a Assertion, actx *AssertionContext) error {
	itemID, err := actx.id(a.Item)
	if err != nil {
		return err
	}
	revID := ""
	if a.Rev != "" {
		if revID, err = actx.id(a.Rev); err != nil {
			return err
		}
	}
	got, err := actx.Engine.GetFieldValue(actx.Ctx, revID, itemID, a.Field)
	if err != nil {
		return err
	}
	if got != *a.Value {
		at := "live"
		if a.Rev != "" {
			at = "at " + a.Rev
		}
		return &AssertionError{
			Type:     AssertField,
			Expected: fmt.Sprintf("%s.%s (%s) = %q", a.Item, a.Field, at, *a.Value),
			Actual:   fmt.Sprintf("%q", got),
		}
	}
	return nil
}

func assertOpenConflicts(a Assertion, actx *AssertionContext) error {
	conflicts, err := actx.Engine.ListOpenConflicts(actx.Ctx, engine.ConflictFilter{})
	if err != nil {
		return err
	}
	itemID := ""
	if a.Item != "" {
		if itemID, err = actx.id(a.Item); err != nil {
			return err
		}
	}
	n := 0
	for _, c := range conflicts {
		if itemID == "" || c.ItemID == itemID {
			n++
		}
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     AssertOpenConflicts,
			Expected: fmt.Sprintf("%d open conflicts", *a.Count),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

func assertConflict(a Assertion, actx *AssertionContext) error {
	conflictID, err := actx.id(a.Conflict)
	if err != nil {
		return err
	}
	c, err := actx.Engine.GetConflictDetail(actx.Ctx, conflictID)
	if err != nil {
		return err
	}
	if a.Field != "" && c.FieldName != a.Field {
		return &AssertionError{
			Type:     AssertConflict,
			Expected: fmt.Sprintf("conflict %s on field %s", a.Conflict, a.Field),
			Actual:   c.FieldName,
		}
	}
	if a.Status != "" && string(c.Status) != a.Status {
		return &AssertionError{
			Type:     AssertConflict,
			Expected: fmt.Sprintf("conflict %s status %s", a.Conflict, a.Status),
			Actual:   string(c.Status),
		}
	}
	return nil
}

// assertVersions checks the row count and that VersionSeq runs 1..n.
func assertVersions(a Assertion, actx *AssertionContext) error {
	itemID, err := actx.id(a.Item)
	if err != nil {
		return err
	}
	versions, err := actx.Engine.Store().ReadItemVersions(actx.Ctx, itemID)
	if err != nil {
		return err
	}
	if len(versions) != *a.Count {
		return &AssertionError{
			Type:     AssertVersions,
			Expected: fmt.Sprintf("%d versions of %s", *a.Count, a.Item),
			Actual:   fmt.Sprintf("%d", len(versions)),
		}
	}
	for i, v := range versions {
		if v.VersionSeq != int64(i+1) {
			return &AssertionError{
				Type:     AssertVersions,
				Expected: fmt.Sprintf("version_seq %d at position %d", i+1, i),
				Actual:   fmt.Sprintf("%d", v.VersionSeq),
			}
		}
	}
	return nil
}

func assertParents(a Assertion, actx *AssertionContext) error {
	revID, err := actx.id(a.Rev)
	if err != nil {
		return err
	}
	want := make([]string, 0, len(a.Parents))
	for _, alias := range a.Parents {
		id, err := actx.id(alias)
		if err != nil {
			return err
		}
		want = append(want, id)
	}
	edges, err := actx.Engine.Store().ReadParents(actx.Ctx, revID)
	if err != nil {
		return err
	}
	got := make([]string, 0, len(edges))
	for _, e := range edges {
		got = append(got, e.ParentRevisionID)
	}

	sort.Strings(want)
	sort.Strings(got)
	if strings.Join(want, ",") != strings.Join(got, ",") {
		return &AssertionError{
			Type:     AssertParents,
			Expected: fmt.Sprintf("parents of %s: %v", a.Rev, want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func assertVerify(a Assertion, actx *AssertionContext) error {
	itemID, err := actx.id(a.Item)
	if err != nil {
		return err
	}
	report, err := actx.Engine.Verify(actx.Ctx, itemID)
	if err != nil {
		return err
	}
	if !report.OK() {
		return &AssertionError{
			Type:     AssertVerify,
			Expected: fmt.Sprintf("%s passes integrity checks", a.Item),
			Actual:   strings.Join(report.Violations, "; "),
		}
	}
	return nil
}
