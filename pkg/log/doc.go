// Package log wraps zerolog with the engine's logging conventions:
// a package-level Logger configured once via Init, and component/record
// scoped child loggers for everything downstream.
package log
