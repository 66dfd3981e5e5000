package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a configuration file.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

func (f Format) String() string {
	if f == FormatTOML {
		return "toml"
	}
	return "yaml"
}

// FormatFromPath chooses the format by file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return 0, fmt.Errorf("config %s: unsupported extension %q (want .yaml, .yml or .toml)", path, filepath.Ext(path))
	}
}

// Scheduler names.
const (
	SchedulerHeap = "heap"
	SchedulerList = "list"
)

// Interaction types.
const (
	InteractionHardSphere         = "hard_sphere"
	InteractionInversePower       = "inverse_power"
	InteractionDisplacedEvenPower = "displaced_even_power"
	InteractionLennardJones       = "lennard_jones"
)

// Samplers of the pair factor.
const (
	SamplerClosedForm        = "closed_form"
	SamplerPiecewiseConstant = "piecewise_constant"
)

// Image modes of the closed-form sampler.
const (
	ImageModeSimple    = "simple"
	ImageModeNextImage = "next_image"
)

// Config is a full run configuration.
type Config struct {
	Seed                  uint64 `yaml:"seed" toml:"seed" json:"seed"`
	Scheduler             string `yaml:"scheduler" toml:"scheduler" json:"scheduler"`
	WarnOnEqualEventTimes bool   `yaml:"warn_on_equal_event_times" toml:"warn_on_equal_event_times" json:"warn_on_equal_event_times"`

	Setting     SettingConfig     `yaml:"setting" toml:"setting" json:"setting"`
	Particles   ParticlesConfig   `yaml:"particles" toml:"particles" json:"particles"`
	Start       StartConfig       `yaml:"start" toml:"start" json:"start"`
	Interaction InteractionConfig `yaml:"interaction" toml:"interaction" json:"interaction"`

	// ChainTime is the chain length of the end-of-chain handler; 0 disables
	// it.
	ChainTime float64 `yaml:"chain_time" toml:"chain_time" json:"chain_time"`

	// SamplingInterval is the time between samples; 0 disables sampling.
	SamplingInterval float64 `yaml:"sampling_interval" toml:"sampling_interval" json:"sampling_interval"`
	EndTime          float64 `yaml:"end_time" toml:"end_time" json:"end_time"`

	// MaxEvents stops a run with an error after that many committed events;
	// 0 disables the limit.
	MaxEvents int64 `yaml:"max_events" toml:"max_events" json:"max_events"`

	Logging LoggingConfig `yaml:"logging" toml:"logging" json:"logging"`
	Store   StoreConfig   `yaml:"store" toml:"store" json:"store"`
}

// SettingConfig describes the periodic box.
type SettingConfig struct {
	Beta          float64   `yaml:"beta" toml:"beta" json:"beta"`
	Dimension     int       `yaml:"dimension" toml:"dimension" json:"dimension"`
	SystemLengths []float64 `yaml:"system_lengths" toml:"system_lengths" json:"system_lengths"`
}

// ParticlesConfig places point particles either on a lattice or at explicit
// positions. Exactly one of both is set.
type ParticlesConfig struct {
	Lattice   *LatticeConfig `yaml:"lattice,omitempty" toml:"lattice,omitempty" json:"lattice,omitempty"`
	Positions [][]float64    `yaml:"positions,omitempty" toml:"positions,omitempty" json:"positions,omitempty"`

	// Charges enables charged interactions; one entry per particle.
	Charges []float64 `yaml:"charges,omitempty" toml:"charges,omitempty" json:"charges,omitempty"`
}

// LatticeConfig fills the box with a simple cubic lattice of Count sites.
type LatticeConfig struct {
	Count int `yaml:"count" toml:"count" json:"count"`
}

// StartConfig selects the first active unit.
type StartConfig struct {
	Identifier []int     `yaml:"identifier" toml:"identifier" json:"identifier"`
	Velocity   []float64 `yaml:"velocity" toml:"velocity" json:"velocity"`
}

// InteractionConfig describes the pair factor between every two particles.
type InteractionConfig struct {
	Type        string  `yaml:"type" toml:"type" json:"type"`
	Sampler     string  `yaml:"sampler" toml:"sampler" json:"sampler"`
	Radius      float64 `yaml:"radius" toml:"radius" json:"radius"`
	Power       float64 `yaml:"power" toml:"power" json:"power"`
	Prefactor   float64 `yaml:"prefactor" toml:"prefactor" json:"prefactor"`
	Equilibrium float64 `yaml:"equilibrium" toml:"equilibrium" json:"equilibrium"`
	ImageMode   string  `yaml:"image_mode" toml:"image_mode" json:"image_mode"`

	// Length is the characteristic length of lennard_jones; a Cutoff of 0.0
	// leaves the potential uncut.
	Length float64 `yaml:"length" toml:"length" json:"length"`
	Cutoff float64 `yaml:"cutoff" toml:"cutoff" json:"cutoff"`

	// Offset and MaxDisplacement parametrize the piecewise-constant
	// sampler.
	Offset          float64 `yaml:"offset" toml:"offset" json:"offset"`
	MaxDisplacement float64 `yaml:"max_displacement" toml:"max_displacement" json:"max_displacement"`

	// Estimator bounds the piecewise-constant rate on a grid instead of at
	// the window ends.
	Estimator *EstimatorConfig `yaml:"estimator,omitempty" toml:"estimator,omitempty" json:"estimator,omitempty"`
}

// EstimatorConfig configures the inner point estimator.
type EstimatorConfig struct {
	PointsPerSide int     `yaml:"points_per_side" toml:"points_per_side" json:"points_per_side"`
	Prefactor     float64 `yaml:"prefactor" toml:"prefactor" json:"prefactor"`
}

// LoggingConfig configures the zap logger of the CLI.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"` // "json" or "console"
}

// StoreConfig configures the run log.
type StoreConfig struct {
	// Path of the SQLite database; empty disables the run log.
	Path string `yaml:"path" toml:"path" json:"path"`
}

// Defaults returns the configuration a file is decoded over. Derived fields
// stay empty; see Example for a complete configuration.
func Defaults() *Config {
	return &Config{
		Seed:      42,
		Scheduler: SchedulerHeap,
		Setting: SettingConfig{
			Beta:      1,
			Dimension: 2,
		},
		Interaction: InteractionConfig{
			Type:            InteractionHardSphere,
			Sampler:         SamplerClosedForm,
			Radius:          0.05,
			Power:           1,
			Prefactor:       1,
			Equilibrium:     0.1,
			ImageMode:       ImageModeSimple,
			Offset:          0,
			MaxDisplacement: 0.05,
		},
		SamplingInterval: 1,
		EndTime:          10,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Example returns Defaults with every derived field filled in.
func Example() *Config {
	cfg := Defaults()
	cfg.derive()
	return cfg
}

// derive fills the fields left empty by the file from the ones it set.
func (c *Config) derive() {
	if c.Setting.SystemLengths == nil && c.Setting.Dimension > 0 {
		c.Setting.SystemLengths = make([]float64, c.Setting.Dimension)
		for i := range c.Setting.SystemLengths {
			c.Setting.SystemLengths[i] = 1
		}
	}
	if c.Particles.Lattice == nil && c.Particles.Positions == nil {
		c.Particles.Lattice = &LatticeConfig{Count: 16}
	}
	if c.Start.Identifier == nil {
		c.Start.Identifier = []int{0}
	}
	if c.Start.Velocity == nil && c.Setting.Dimension > 0 {
		c.Start.Velocity = make([]float64, c.Setting.Dimension)
		c.Start.Velocity[0] = 1
	}
}

// Load reads the file at path over Defaults and derives the missing fields.
// Unknown keys are an error. The result is not validated.
func Load(path string) (*Config, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over Defaults and derives the missing fields.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := Defaults()
	switch format {
	case FormatTOML:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}
	cfg.derive()
	return cfg, nil
}

// Marshal encodes cfg in format.
func Marshal(cfg *Config, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("encode toml: %w", err)
		}
	default:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// JSON returns the compact JSON form stored with a run.
func (c *Config) JSON() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config json: %w", err)
	}
	return string(data), nil
}

// ParticleCount returns the number of particles the configuration places.
func (c *Config) ParticleCount() int {
	if c.Particles.Positions != nil {
		return len(c.Particles.Positions)
	}
	if c.Particles.Lattice != nil {
		return c.Particles.Lattice.Count
	}
	return 0
}
