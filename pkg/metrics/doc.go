/*
Package metrics registers the engine's Prometheus metrics: process counts by
state, restart counters, health probe durations and outcomes, port-pool
utilization, per-instance CPU/memory gauges fed by the background monitoring
sweep, and the sweep's own duration and cycle count. All metrics register at
package init and are exposed by Handler for scraping.
*/
package metrics
