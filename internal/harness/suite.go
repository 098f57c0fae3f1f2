package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Property names one behavioral guarantee and the scenario that exercises
// it.
type Property struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Scenario    string `yaml:"scenario"`
}

// Suite is a list of properties, loaded from a suite YAML file.
type Suite struct {
	Properties []Property `yaml:"properties"`
}

// ScenarioNotFoundError is returned when a property references a scenario
// file that doesn't exist.
type ScenarioNotFoundError struct {
	Property     string
	ScenarioPath string
	ResolvedPath string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf(
		"property %q references scenario file %q which does not exist (resolved to: %s)",
		e.Property,
		e.ScenarioPath,
		e.ResolvedPath,
	)
}

// LoadSuite reads a suite file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	for i, p := range suite.Properties {
		if p.Name == "" || p.Scenario == "" {
			return nil, fmt.Errorf("properties[%d]: name and scenario are required", i)
		}
	}
	return &suite, nil
}

// ScenarioPath resolves the property's scenario relative to dir and
// checks that it exists.
func (p Property) ScenarioPath(dir string) (string, error) {
	path := p.Scenario
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", &ScenarioNotFoundError{
			Property:     p.Name,
			ScenarioPath: p.Scenario,
			ResolvedPath: path,
		}
	}
	return path, nil
}

// ValidationResult contains results from running a suite.
type ValidationResult struct {
	TotalProperties int               `json:"total_properties"`
	Passed          int               `json:"passed"`
	Failed          int               `json:"failed"`
	Failures        []PropertyFailure `json:"failures,omitempty"`
}

// OK reports whether every property passed.
func (r *ValidationResult) OK() bool {
	return r.Failed == 0
}

// PropertyFailure represents a property whose scenario failed.
type PropertyFailure struct {
	Property     string `json:"property"`
	ScenarioPath string `json:"scenario_path"`
	Error        string `json:"error"`
}

// ValidateProperties runs the scenario of every property in the suite.
// Scenario paths are resolved relative to dir.
func ValidateProperties(ctx context.Context, suite *Suite, dir string) *ValidationResult {
	result := &ValidationResult{}

	for _, p := range suite.Properties {
		if ctx.Err() != nil {
			break
		}
		result.TotalProperties++

		fail := func(path, msg string) {
			result.Failed++
			result.Failures = append(result.Failures, PropertyFailure{
				Property:     p.Name,
				ScenarioPath: path,
				Error:        msg,
			})
		}

		path, err := p.ScenarioPath(dir)
		if err != nil {
			fail(p.Scenario, err.Error())
			continue
		}
		scenario, err := LoadScenario(path)
		if err != nil {
			fail(path, fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}
		run, err := Run(scenario)
		if err != nil {
			fail(path, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		if !run.Pass {
			fail(path, fmt.Sprintf("scenario failed: %v", run.Errors))
			continue
		}
		result.Passed++
	}
	return result
}
