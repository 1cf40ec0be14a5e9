package supervisor

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
)

// boundAddrPattern matches common "listening on" / "bound to" log lines,
// e.g. "Server listening on 0.0.0.0:4001" or "bound to address 127.0.0.1:9000".
var boundAddrPattern = regexp.MustCompile(`(?i)(?:listening|bound)[^0-9]*?:(\d{2,5})\b`)

// scanForPort watches a redirected output stream for a bound-address line
// and, if found, calls report with the discovered port. This is advisory
// only: it never reserves the port in the allocator, and callers
// must restrict its use to records with no assigned port.
func scanForPort(r io.Reader, report func(port int)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		match := boundAddrPattern.FindStringSubmatch(scanner.Text())
		if match == nil {
			continue
		}
		if port, err := strconv.Atoi(match[1]); err == nil {
			report(port)
			return
		}
	}
}
