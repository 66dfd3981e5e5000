package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ecmc/internal/config"
)

// Scenario defines a reproducible simulation run and the properties its run
// log must have.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RawConfig is an inline run configuration, decoded like a YAML config
	// file.
	RawConfig yaml.Node `yaml:"config,omitempty"`

	// ConfigFile is a configuration file relative to the scenario file.
	// Exactly one of config and config_file is set.
	ConfigFile string `yaml:"config_file,omitempty"`

	// RunID is the fixed run identifier. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// ExpectError, when set, is a substring of the error the run must stop
	// with.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the run log and the final state.
	Assertions []Assertion `yaml:"assertions"`

	// Config is the resolved configuration. LoadScenario fills it; scenarios
	// built in code set it directly.
	Config *config.Config `yaml:"-"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalTime     = "final_time"
	AssertFinalPosition = "final_position"
	AssertSampleCount   = "sample_count"
	AssertTrajectory    = "trajectory"
)

// Assertion is one check on the result of a scenario. Which fields apply
// depends on Type.
type Assertion struct {
	Type string `yaml:"type"`

	// Event is a handler kind ("factor", "sampling", ...) or a handler name
	// ("pair(0,1)") for trace_contains and trace_count.
	Event string `yaml:"event,omitempty"`

	// Events lists kinds or handler names whose first occurrences must
	// appear in this order.
	Events []string `yaml:"events,omitempty"`

	// Count is the exact number for trace_count, sample_count and
	// trajectory; Min and Max bound it instead.
	Count *int64 `yaml:"count,omitempty"`
	Min   *int64 `yaml:"min,omitempty"`
	Max   *int64 `yaml:"max,omitempty"`

	Time      *float64  `yaml:"time,omitempty"`
	Particle  *int      `yaml:"particle,omitempty"`
	Position  []float64 `yaml:"position,omitempty"`
	Tolerance float64   `yaml:"tolerance,omitempty"`
}

// LoadScenario reads, resolves and validates the scenario at path.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario decodes a scenario. Relative config files resolve against
// baseDir.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	cfg, err := resolveConfig(&scenario, baseDir)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	scenario.Config = cfg
	return &scenario, nil
}

func resolveConfig(s *Scenario, baseDir string) (*config.Config, error) {
	if s.ConfigFile != "" {
		path := s.ConfigFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		return config.Load(path)
	}
	data, err := yaml.Marshal(&s.RawConfig)
	if err != nil {
		return nil, fmt.Errorf("re-encode inline config: %w", err)
	}
	cfg, err := config.Parse(data, config.FormatYAML)
	if err != nil {
		return nil, fmt.Errorf("parse inline config: %w", err)
	}
	return cfg, nil
}

// validateScenario checks required fields and assertion shapes.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	hasInline := s.RawConfig.Kind != 0
	if hasInline == (s.ConfigFile != "") {
		return fmt.Errorf("exactly one of config and config_file is required")
	}
	if hasInline && s.RawConfig.Kind != yaml.MappingNode {
		return fmt.Errorf("config must be a mapping")
	}

	if len(s.Assertions) == 0 && s.ExpectError == "" {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
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
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("assertions[%d]: at least two events are required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if err := validateBounds(index, a); err != nil {
			return err
		}
	case AssertSampleCount:
		if err := validateBounds(index, a); err != nil {
			return err
		}
	case AssertTrajectory:
		if a.Particle == nil {
			return fmt.Errorf("assertions[%d]: particle is required for trajectory", index)
		}
		if err := validateBounds(index, a); err != nil {
			return err
		}
	case AssertFinalTime:
		if a.Time == nil {
			return fmt.Errorf("assertions[%d]: time is required for final_time", index)
		}
	case AssertFinalPosition:
		if a.Particle == nil {
			return fmt.Errorf("assertions[%d]: particle is required for final_position", index)
		}
		if len(a.Position) == 0 {
			return fmt.Errorf("assertions[%d]: position is required for final_position", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Tolerance < 0 {
		return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
	}
	return nil
}

func validateBounds(index int, a *Assertion) error {
	if a.Count == nil && a.Min == nil && a.Max == nil {
		return fmt.Errorf("assertions[%d]: one of count, min or max is required for %s", index, a.Type)
	}
	if a.Count != nil && *a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
	}
	if a.Min != nil && a.Max != nil && *a.Min > *a.Max {
		return fmt.Errorf("assertions[%d]: min %d exceeds max %d", index, *a.Min, *a.Max)
	}
	return nil
}
