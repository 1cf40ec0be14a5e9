/*
Package health implements the engine's probe contract: a single attempt
(HTTP or script), a uniform Result, and a Status tracker that turns
repeated attempts into a hysteresis-based healthy/unhealthy verdict.

Two checkers satisfy the Checker interface — HTTPChecker (pass ⇔ 2xx
response) and ScriptChecker (pass ⇔ exit code 0). WaitReady composes a
Checker with a Config to implement blocking-start: it polls at Interval,
up to Retries times, bounded additionally by an outer timeout supplied by
the caller. Status.Update implements the background semantics: Retries
consecutive failures flip Healthy to false; a single success resets it.

Probes never hold any lock belonging to their caller — pkg/supervisor
runs them outside the registry lock and only re-enters it to commit the
resulting Status.
*/
package health
