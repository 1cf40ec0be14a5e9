package supervisor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-run/kestrel/pkg/types"
)

func TestValidate_RequiresNameAndExecutable(t *testing.T) {
	err := validate(types.Config{Instances: 1})
	require.Error(t, err)

	err = validate(types.Config{Name: "x", Instances: 1})
	require.Error(t, err)
}

func TestValidate_InstancesMustBePositive(t *testing.T) {
	err := validate(types.Config{Name: "x", Executable: "bin", Instances: 0})
	require.Error(t, err)
}

func TestValidate_RangeLengthMustMatchInstances(t *testing.T) {
	err := validate(types.Config{Name: "x", Executable: "bin", Instances: 2, Port: "3000-3002"})
	require.Error(t, err)

	err = validate(types.Config{Name: "x", Executable: "bin", Instances: 3, Port: "3000-3002"})
	require.NoError(t, err)
}

func TestValidate_HealthRequiresTarget(t *testing.T) {
	cfg := types.Config{
		Name:       "x",
		Executable: "bin",
		Instances:  1,
		Health:     &types.HealthCheckConfig{Enabled: true, Kind: types.HealthHTTP},
	}
	require.Error(t, validate(cfg))

	cfg.Health.Target = "http://127.0.0.1:8080/health"
	require.NoError(t, validate(cfg))
}

func TestValidate_DisabledHealthSkipsChecks(t *testing.T) {
	cfg := types.Config{
		Name:       "x",
		Executable: "bin",
		Instances:  1,
		Health:     &types.HealthCheckConfig{Enabled: false},
	}
	require.NoError(t, validate(cfg))
}
