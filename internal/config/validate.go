package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/ecmc/internal/errs"
)

//go:embed schema.cue
var schemaCUE string

const component = "config"

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

// schema compiles the embedded schema once per process.
func schema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Config"))
		if !schemaDef.Exists() {
			schemaErr = fmt.Errorf("compile schema: #Config not found")
		}
	})
	return schemaCtx, schemaDef, schemaErr
}

// Validate checks c against the embedded schema, then the cross-field
// rules. Every violation is a *errs.ConfigurationError; several violations
// are joined.
func (c *Config) Validate() error {
	if err := c.validateSchema(); err != nil {
		return err
	}
	return errors.Join(c.crossFieldErrors()...)
}

func (c *Config) validateSchema() error {
	ctx, def, err := schema()
	if err != nil {
		return err
	}
	value := ctx.Encode(c)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	unified := def.Unify(value)
	err = unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	var violations []error
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		violations = append(violations, errs.NewConfigurationError(component, "%s: %s",
			strings.Join(e.Path(), "."), fmt.Sprintf(format, args...)))
	}
	return errors.Join(violations...)
}

func (c *Config) crossFieldErrors() []error {
	var out []error
	fail := func(format string, args ...any) {
		out = append(out, errs.NewConfigurationError(component, format, args...))
	}

	dim := c.Setting.Dimension
	if len(c.Setting.SystemLengths) != dim {
		fail("setting.system_lengths has %d entries, dimension is %d", len(c.Setting.SystemLengths), dim)
	}

	switch {
	case c.Particles.Lattice != nil && c.Particles.Positions != nil:
		fail("particles: lattice and positions are mutually exclusive")
	case c.Particles.Lattice == nil && c.Particles.Positions == nil:
		fail("particles: either lattice or positions is required")
	case c.Particles.Positions != nil && len(c.Particles.Positions) < 2:
		fail("particles.positions: at least 2 particles are required, got %d", len(c.Particles.Positions))
	}
	for i, p := range c.Particles.Positions {
		if len(p) != dim {
			fail("particles.positions[%d] has %d entries, dimension is %d", i, len(p), dim)
			continue
		}
		for d, x := range p {
			if d < len(c.Setting.SystemLengths) && (x < 0 || x >= c.Setting.SystemLengths[d]) {
				fail("particles.positions[%d][%d] = %v lies outside [0, %v)", i, d, x, c.Setting.SystemLengths[d])
			}
		}
	}
	count := c.ParticleCount()
	if c.Particles.Charges != nil && len(c.Particles.Charges) != count {
		fail("particles.charges has %d entries, there are %d particles", len(c.Particles.Charges), count)
	}

	if len(c.Start.Velocity) != dim {
		fail("start.velocity has %d entries, dimension is %d", len(c.Start.Velocity), dim)
	}
	if len(c.Start.Identifier) != 1 {
		fail("start.identifier must name a particle, got %v", c.Start.Identifier)
	} else if c.Start.Identifier[0] >= count {
		fail("start.identifier %v is out of range for %d particles", c.Start.Identifier, count)
	}

	in := c.Interaction
	switch in.Type {
	case InteractionHardSphere:
		if in.Sampler != SamplerClosedForm {
			fail("interaction: hard_sphere requires the closed_form sampler, got %s", in.Sampler)
		}
		if in.Radius <= 0 {
			fail("interaction.radius must be greater than 0.0, got %v", in.Radius)
		}
		if c.Particles.Charges != nil {
			fail("interaction: hard_sphere takes no charges")
		}
	case InteractionInversePower:
		if in.Power <= 0 {
			fail("interaction.power must be greater than 0.0, got %v", in.Power)
		}
		if in.Prefactor == 0 {
			fail("interaction.prefactor must not be 0.0")
		}
	case InteractionDisplacedEvenPower:
		if in.Power <= 0 || in.Power != float64(int(in.Power)) || int(in.Power)%2 != 0 {
			fail("interaction.power must be a positive even integer for displaced_even_power, got %v", in.Power)
		}
		if in.Prefactor <= 0 {
			fail("interaction.prefactor must be greater than 0.0, got %v", in.Prefactor)
		}
		if in.Equilibrium <= 0 {
			fail("interaction.equilibrium must be greater than 0.0, got %v", in.Equilibrium)
		}
		if c.Particles.Charges != nil {
			fail("interaction: displaced_even_power takes no charges")
		}
	case InteractionLennardJones:
		if in.Prefactor <= 0 {
			fail("interaction.prefactor must be greater than 0.0, got %v", in.Prefactor)
		}
		if in.Length <= 0 {
			fail("interaction.length must be greater than 0.0, got %v", in.Length)
		}
		if in.Cutoff != 0 && in.Cutoff <= in.Length*math.Pow(2, 1.0/6) {
			fail("interaction.cutoff %v must exceed the equilibrium separation length * 2^(1/6)", in.Cutoff)
		}
		if c.Particles.Charges != nil {
			fail("interaction: lennard_jones takes no charges")
		}
	}
	if in.Sampler == SamplerPiecewiseConstant && in.ImageMode != ImageModeSimple {
		fail("interaction.image_mode %s only applies to the closed_form sampler", in.ImageMode)
	}
	if in.Estimator != nil && in.Sampler != SamplerPiecewiseConstant {
		fail("interaction.estimator only applies to the piecewise_constant sampler")
	}

	if c.ChainTime > 0 && !alongOneAxis(c.Start.Velocity) {
		fail("start.velocity %v must point along one axis when chain_time is set", c.Start.Velocity)
	}

	if c.SamplingInterval > c.EndTime {
		fail("sampling_interval %v exceeds end_time %v", c.SamplingInterval, c.EndTime)
	}
	return out
}

// alongOneAxis reports whether exactly one entry of v is nonzero.
func alongOneAxis(v []float64) bool {
	nonzero := 0
	for _, x := range v {
		if x != 0 {
			nonzero++
		}
	}
	return nonzero == 1
}
