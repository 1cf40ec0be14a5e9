package supervisor

import (
	"fmt"
	"strconv"
)

// parsePortOverride accepts a single port number supplied to restart/reload.
// Unlike the configuration's port spec, an override is always a single
// concrete port — it replaces the in-memory assignment without touching the
// persisted spec — the override is never written back to it.
func parsePortOverride(raw string) (int, error) {
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid port override %q: %w", raw, err)
	}
	return port, nil
}
