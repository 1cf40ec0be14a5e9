package supervisor

import (
	"fmt"

	"github.com/kestrel-run/kestrel/pkg/portpool"
	"github.com/kestrel-run/kestrel/pkg/types"
)

// validate enforces configuration rules before any side effect.
func validate(cfg types.Config) error {
	if cfg.Name == "" {
		return newErr(ValidationError, cfg.Name, "name must not be empty", nil)
	}
	if cfg.Executable == "" {
		return newErr(ValidationError, cfg.Name, "executable must not be empty", nil)
	}
	if cfg.Instances < 1 {
		return newErr(ValidationError, cfg.Name, "instances must be >= 1", nil)
	}

	spec, err := portpool.ParseSpec(cfg.Port)
	if err != nil {
		return newErr(ValidationError, cfg.Name, fmt.Sprintf("invalid port spec: %v", err), err)
	}
	if spec.Kind == types.PortRange && spec.RangeLength() != cfg.Instances {
		return newErr(ValidationError, cfg.Name,
			fmt.Sprintf("contiguous range length %d does not match instance count %d", spec.RangeLength(), cfg.Instances), nil)
	}

	if cfg.Health != nil && cfg.Health.Enabled {
		switch cfg.Health.Kind {
		case types.HealthHTTP:
			if cfg.Health.Target == "" {
				return newErr(ValidationError, cfg.Name, "health check of kind http requires a target URL", nil)
			}
		case types.HealthScript:
			if cfg.Health.Target == "" {
				return newErr(ValidationError, cfg.Name, "health check of kind script requires a target path", nil)
			}
		default:
			return newErr(ValidationError, cfg.Name, fmt.Sprintf("unknown health check kind %q", cfg.Health.Kind), nil)
		}
	}

	return nil
}
