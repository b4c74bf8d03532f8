// Package logger wraps zap with a process-wide sugared logger and context helpers.
//
// Every service receives a context and pulls its logger from it, so names and
// key-value fields attached with WithName/WithKV follow the publish run through
// the coordinator, the manifest updater and the storage backends. Output goes
// to stderr; stdout is reserved for command output.
package logger
