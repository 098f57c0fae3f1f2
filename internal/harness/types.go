package harness

// StepTrace records what one step did. Ids are the generated ids, not
// aliases.
type StepTrace struct {
	Step        int      `json:"step"`
	Op          string   `json:"op"`
	Item        string   `json:"item,omitempty"`
	Revision    string   `json:"revision,omitempty"`
	VersionSeq  int64    `json:"version_seq,omitempty"`
	FastForward bool     `json:"fast_forward,omitempty"`
	Merge       string   `json:"merge,omitempty"`
	Conflicts   []string `json:"conflicts,omitempty"`
	Conflict    string   `json:"conflict,omitempty"`
	Resolved    bool     `json:"resolved,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// ItemState is an item as it stands after the last step.
type ItemState struct {
	ItemID     string            `json:"item_id"`
	Head       string            `json:"head"`
	VersionSeq int64             `json:"version_seq"`
	Fields     map[string]string `json:"fields"`
}

// ConflictState is an open conflict after the last step.
type ConflictState struct {
	ConflictID string `json:"conflict_id"`
	ItemID     string `json:"item_id"`
	Field      string `json:"field"`
}

// FinalState is the store contents after the last step.
type FinalState struct {
	Items         []ItemState     `json:"items"`
	OpenConflicts []ConflictState `json:"open_conflicts"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step met its expectation and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace holds one entry per executed step.
	Trace []StepTrace `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the store snapshot taken after the steps ran.
	Final FinalState `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
		Final: FinalState{
			Items:         []ItemState{},
			OpenConflicts: []ConflictState{},
		},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
