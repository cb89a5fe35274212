// Package advisory runs best-effort follow-up steps whose failure should
// be reported but never fail the operation that triggered them, such as
// re-enabling a released plugin in a tool's own settings.
package advisory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mycelium-labs/mycelium/internal/logging"
)

// Step is one named best-effort action.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Failure records a step that returned an error or panicked.
type Failure struct {
	Step string
	Err  error
}

func (f Failure) Error() string {
	return f.Step + ": " + f.Err.Error()
}

// Run executes steps in order. Every failure is logged at warn level and
// returned; later steps still run. A cancelled context stops the sequence.
func Run(ctx context.Context, logger *slog.Logger, steps ...Step) []Failure {
	logger = logging.OrDefault(logger)

	var failures []Failure
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			failures = append(failures, Failure{Step: s.Name, Err: err})
			continue
		}
		if err := runStep(ctx, s); err != nil {
			logger.Warn("advisory step failed", "step", s.Name, "error", err)
			failures = append(failures, Failure{Step: s.Name, Err: err})
			continue
		}
		logger.Debug("advisory step done", "step", s.Name)
	}
	return failures
}

func runStep(ctx context.Context, s Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Run(ctx)
}
