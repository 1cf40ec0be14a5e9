/*
Package types defines the data structures shared by every layer of the
supervision engine: process configuration, the runtime record that
composes configuration with live state, restart policy, health-check
configuration, and port specifications.

All types here are plain data. Mutation discipline — who is allowed to
change a Record and under what lock — lives in pkg/supervisor, not here.
*/
package types
