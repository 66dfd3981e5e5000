package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecmc/internal/config"
)

func TestExampleConfig(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		format config.Format
	}{
		{"yaml", nil, config.FormatYAML},
		{"toml", []string{"--toml"}, config.FormatTOML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewExampleConfigCommand(&RootOptions{Format: "text"}), tt.args...)
			require.NoError(t, err)

			cfg, err := config.Parse([]byte(out), tt.format)
			require.NoError(t, err)
			assert.Equal(t, config.Example(), cfg)
			require.NoError(t, cfg.Validate(), "the example is a valid configuration")
		})
	}
}
