package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vaultrev/internal/ir"
)

// Scenario defines a conformance test scenario: a sequence of engine
// operations followed by assertions on the resulting store.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps run in order against a fresh store.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one engine operation.
type Step struct {
	// Op is create, edit, detect or resolve.
	Op string `yaml:"op"`

	// Item is the item alias. For create it defines the alias.
	Item string `yaml:"item,omitempty"`

	// As binds the recorded revision (create, edit) or the head after
	// resolution (resolve) to an alias.
	As string `yaml:"as,omitempty"`

	// Author is the author (create, edit) or originator (detect) user id.
	Author int64 `yaml:"author,omitempty"`

	// Values are the initial values (create), new values (edit) or merged
	// values (resolve).
	Values map[string]string `yaml:"values,omitempty"`

	// Base is the base revision alias, "head", or empty (edit, detect).
	Base string `yaml:"base,omitempty"`

	// Local and Remote are revision aliases for detect. Remote may be "head".
	Local  string `yaml:"local,omitempty"`
	Remote string `yaml:"remote,omitempty"`

	// MergeAs binds a synthesized merge revision (edit, detect).
	MergeAs string `yaml:"merge_as,omitempty"`

	// ConflictsAs binds enqueued conflicts, in order (edit, detect).
	ConflictsAs []string `yaml:"conflicts_as,omitempty"`

	// Conflict is the conflict alias to resolve.
	Conflict string `yaml:"conflict,omitempty"`

	// Admin is the resolving admin's user id.
	Admin int64 `yaml:"admin,omitempty"`

	// Summary is stored as the resolution payload.
	Summary string `yaml:"summary,omitempty"`

	// CreateRevision makes resolve record a merge revision.
	CreateRevision bool `yaml:"create_revision,omitempty"`

	// Expect checks the step outcome. If nil, the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step. Unset fields are not
// checked.
type Expect struct {
	FastForward *bool `yaml:"fast_forward,omitempty"`
	Merged      *bool `yaml:"merged,omitempty"`
	Conflicts   *int  `yaml:"conflicts,omitempty"`

	// Error is the expected engine error code, e.g. INVALID_BASE.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Item is the item alias (head, field, versions, verify, and
	// optionally open_conflicts).
	Item string `yaml:"item,omitempty"`

	// Rev is a revision alias: the expected head (head), the revision to
	// look the field up at (field), or the child revision (parents).
	Rev string `yaml:"rev,omitempty"`

	// Field and Value are the field name and expected value (field,
	// conflict).
	Field string  `yaml:"field,omitempty"`
	Value *string `yaml:"value,omitempty"`

	// Count is the expected number of rows (open_conflicts, versions).
	Count *int `yaml:"count,omitempty"`

	// Parents are the expected parent revision aliases, in any order.
	Parents []string `yaml:"parents,omitempty"`

	// Conflict and Status identify a conflict and its expected status.
	Conflict string `yaml:"conflict,omitempty"`
	Status   string `yaml:"status,omitempty"`
}

// Step operations.
const (
	OpCreate  = "create"
	OpEdit    = "edit"
	OpDetect  = "detect"
	OpResolve = "resolve"
)

// Assertion type constants.
const (
	AssertHead          = "head"
	AssertField         = "field"
	AssertOpenConflicts = "open_conflicts"
	AssertConflict      = "conflict"
	AssertVersions      = "versions"
	AssertParents       = "parents"
	AssertVerify        = "verify"
)

// HeadAlias names the item's head at the time a step runs.
const HeadAlias = "head"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	switch st.Op {
	case OpCreate:
		if st.Item == "" {
			return fmt.Errorf("steps[%d]: item alias is required for create", index)
		}
	case OpEdit:
		if st.Item == "" {
			return fmt.Errorf("steps[%d]: item is required for edit", index)
		}
	case OpDetect:
		if st.Item == "" || st.Local == "" || st.Remote == "" {
			return fmt.Errorf("steps[%d]: item, local and remote are required for detect", index)
		}
	case OpResolve:
		if st.Conflict == "" {
			return fmt.Errorf("steps[%d]: conflict is required for resolve", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}

	for name := range st.Values {
		if !ir.IsKnownField(name) {
			return fmt.Errorf("steps[%d]: unknown field %q", index, name)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertHead:
		if a.Item == "" || a.Rev == "" {
			return fmt.Errorf("assertions[%d]: item and rev are required for head", index)
		}
	case AssertField:
		if a.Item == "" || a.Field == "" || a.Value == nil {
			return fmt.Errorf("assertions[%d]: item, field and value are required for field", index)
		}
	case AssertOpenConflicts:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for open_conflicts", index)
		}
	case AssertConflict:
		if a.Conflict == "" {
			return fmt.Errorf("assertions[%d]: conflict is required for conflict", index)
		}
	case AssertVersions:
		if a.Item == "" || a.Count == nil {
			return fmt.Errorf("assertions[%d]: item and count are required for versions", index)
		}
	case AssertParents:
		if a.Rev == "" {
			return fmt.Errorf("assertions[%d]: rev is required for parents", index)
		}
	case AssertVerify:
		if a.Item == "" {
			return fmt.Errorf("assertions[%d]: item is required for verify", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
