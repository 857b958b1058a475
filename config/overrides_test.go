package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitment-infra/config"
)

func writeOverrides(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overrides.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestApplyOverrides(t *testing.T) {
	path := writeOverrides(t, `
[prod.ecs]
max_capacity = 20

[prod.security]
enable_waf = false

[staging.ecs]
max_capacity = 6
`)

	cfg := config.MustNew("prod")
	require.NoError(t, config.ApplyOverrides(cfg, path))

	assert.Equal(t, config.EnvProd, cfg.Name)
	assert.Equal(t, 20, cfg.Ecs.MaxCapacity)
	assert.False(t, cfg.Security.EnableWaf)
	// untouched keys keep their table value
	assert.Equal(t, config.MustNew("prod").Ecs.MinCapacity, cfg.Ecs.MinCapacity)
	assert.Equal(t, config.MustNew("prod").Database, cfg.Database)
}

func TestApplyOverridesMissingSectionIsNoop(t *testing.T) {
	path := writeOverrides(t, "[staging.ecs]\nmax_capacity = 6\n")

	cfg := config.MustNew("dev")
	require.NoError(t, config.ApplyOverrides(cfg, path))
	assert.Equal(t, config.MustNew("dev"), cfg)
}

func TestApplyOverridesEmptyPath(t *testing.T) {
	cfg := config.MustNew("dev")
	require.NoError(t, config.ApplyOverrides(cfg, ""))
	assert.Equal(t, config.MustNew("dev"), cfg)
}

func TestApplyOverridesErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errLike string
	}{
		{"unknown environment", "[qa.ecs]\nmax_capacity = 3\n", "no configuration found for environment: qa"},
		{"unknown key", "[dev.ecs]\nmax_capacty = 3\n", "unknown key"},
		{"invalid result", "[dev.ecs]\nmin_capacity = 5\n", "invalid configuration"},
		{"malformed toml", "[dev.ecs\n", "decode overrides"},
		{"wrong type", "[dev.ecs]\nmax_capacity = \"lots\"\n", "decode overrides for dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.MustNew("dev")
			err := config.ApplyOverrides(cfg, writeOverrides(t, tt.content))
			assert.ErrorContains(t, err, tt.errLike)
			// a rejected file leaves the table values in place
			assert.Equal(t, config.MustNew("dev"), cfg)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestApplyOverridesMissingFile(t *testing.T) {
	cfg := config.MustNew("dev")
	err := config.ApplyOverrides(cfg, filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
