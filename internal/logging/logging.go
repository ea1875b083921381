// Package logging wires a process-wide zerolog logger. Rocktick's
// multi-process, multi-tenant shape leans on field-scoped logs
// (tenant_id, region, job_id, scheduler), so every role logs through
// the same structured setup.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process-wide logger. component names the binary
// (scheduler, broker, drone, api) so multiplexed log output can be
// filtered per role.
func New(component string, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
