// Package logging builds the structured logger shared by cmd/relayd and
// the relay cycle, following the field-scoped zap idiom used throughout
// vyrodovalexey-avapigw (a *zap.Logger per component, narrowed further
// per request with .With(...)) rather than the teacher's bare *log.Logger.
package logging

import (
	"go.uber.org/zap"
)

// New builds the process-wide logger. Production builds use the JSON
// encoder config; development builds (the common case while iterating
// on a proxy locally) use the human-readable console encoder.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// ForCycle narrows logger to one relay cycle, tagging every subsequent
// line with the cycle's correlation ID so a single request's log lines
// can be grepped out of a busy proxy's output.
func ForCycle(logger *zap.Logger, cycleID string) *zap.Logger {
	return logger.With(zap.String("cycle_id", cycleID))
}
