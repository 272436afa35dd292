package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a store conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// System is the default system params for save steps.
	System map[string]any `yaml:"system,omitempty"`

	// Flow contains the operations to execute, in order.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final state of the store.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one store operation.
type Step struct {
	// Op is one of save, load, load_all, sysparams, legacy.
	Op string `yaml:"op"`

	// RunID is the explicit run id (save, legacy) or the run to load.
	RunID string `yaml:"run_id,omitempty"`

	// Run contains the run params (save, legacy).
	Run map[string]any `yaml:"run,omitempty"`

	// System overrides the scenario's system params for a save.
	System map[string]any `yaml:"system,omitempty"`

	// Artifact is the value to save. It is stored with the JSON codec.
	Artifact any `yaml:"artifact,omitempty"`

	// NoParamSafety disables the system params check for a save.
	NoParamSafety bool `yaml:"no_param_safety,omitempty"`

	// Missing names the group a legacy run lacks: "instances" (default)
	// or "params".
	Missing string `yaml:"missing,omitempty"`

	// Expect specifies the expected outcome. If nil, the step must not fail.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies expected step behavior. Empty fields are not checked.
type Expect struct {
	// Error is the expected store error kind, e.g. "PARAM_SAFETY".
	Error string `yaml:"error,omitempty"`

	RunID      string `yaml:"run_id,omitempty"`
	InstanceID string `yaml:"instance_id,omitempty"`
	Created    *bool  `yaml:"created,omitempty"`

	// Artifact is compared after a JSON round trip (load).
	Artifact any `yaml:"artifact,omitempty"`

	// Entries lists "run/instance" pairs in order (load_all).
	Entries []string `yaml:"entries,omitempty"`

	// Present is whether system params exist (sysparams).
	Present *bool `yaml:"present,omitempty"`
}

// Assertion validates the final state of the store.
type Assertion struct {
	// Type specifies the assertion type:
	// - "run_count": number of runs equals Count
	// - "instance_count": number of instances in RunID equals Count
	// - "run_order": run ids in enumeration order equal Runs
	// - "diagnostic_count": number of diagnostics of Kind equals Count
	// - "system_params": stored system params equal Expect
	Type string `yaml:"type"`

	RunID  string         `yaml:"run_id,omitempty"`
	Count  int            `yaml:"count,omitempty"`
	Runs   []string       `yaml:"runs,omitempty"`
	Kind   string         `yaml:"kind,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpSave     = "save"
	OpLoad     = "load"
	OpLoadAll  = "load_all"
	OpSysParam = "sysparams"
	OpLegacy   = "legacy"
)

// Assertion type constants.
const (
	AssertRunCount        = "run_count"
	AssertInstanceCount   = "instance_count"
	AssertRunOrder        = "run_order"
	AssertDiagnosticCount = "diagnostic_count"
	AssertSystemParams    = "system_params"
)

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
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
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

func validateStep(index int, step *Step) error {
	switch step.Op {
	case OpSave:
		if step.Artifact == nil {
			return fmt.Errorf("flow[%d]: artifact is required for save", index)
		}
	case OpLegacy:
		if step.RunID == "" {
			return fmt.Errorf("flow[%d]: run_id is required for legacy", index)
		}
		if step.Missing != "" && step.Missing != "params" && step.Missing != "instances" {
			return fmt.Errorf("flow[%d]: missing must be params or instances, got %q", index, step.Missing)
		}
	case OpLoad, OpLoadAll, OpSysParam:
	case "":
		return fmt.Errorf("flow[%d]: op is required", index)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", index, step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertRunCount:
	case AssertInstanceCount:
		if a.RunID == "" {
			return fmt.Errorf("assertions[%d]: run_id is required for instance_count", index)
		}
	case AssertRunOrder:
		if len(a.Runs) == 0 {
			return fmt.Errorf("assertions[%d]: runs list is required for run_order", index)
		}
	case AssertDiagnosticCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for diagnostic_count", index)
		}
	case AssertSystemParams:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for system_params", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
