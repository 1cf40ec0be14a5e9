package supervisor

import (
	"fmt"
	"os"
	"strconv"

	"github.com/kestrel-run/kestrel/pkg/types"
)

// childEnv builds the environment for a spawned child: the
// configured mapping, unioned with the daemon's own environment, plus PORT
// (when a single port is assigned) and the per-instance identity variables.
func childEnv(cfg types.Config, port int, instanceIndex int) []string {
	merged := make(map[string]string, len(cfg.Env)+4)
	for _, kv := range os.Environ() {
		if k, v, ok := splitEnv(kv); ok {
			merged[k] = v
		}
	}
	for k, v := range cfg.Env {
		merged[k] = v
	}

	if port != 0 {
		merged["PORT"] = strconv.Itoa(port)
	}
	if cfg.Instances > 1 {
		merged["INSTANCE_ID"] = strconv.Itoa(instanceIndex)
		merged["INSTANCE_COUNT"] = strconv.Itoa(cfg.Instances)
	}

	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

func splitEnv(kv string) (key, value string, ok bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}
