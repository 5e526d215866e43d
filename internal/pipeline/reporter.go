package pipeline

import (
	"fmt"
	"runtime/debug"

	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/state"
	honeybadger "github.com/honeybadger-io/honeybadger-go"
)

// Reporter receives stage failures. Reports are fire-and-forget.
type Reporter interface {
	Report(stage string, rec any, a state.Action)
}

type noopReporter struct{}

func (noopReporter) Report(string, any, state.Action) {}

type honeybadgerReporter struct{}

func (honeybadgerReporter) Report(stage string, rec any, a state.Action) {
	honeybadger.Notify(fmt.Sprintf("Panic in %s stage: %v", stage, rec),
		honeybadger.Context{"action": a.Type, "stack": string(debug.Stack())},
		honeybadger.Tags{"panic", "pipeline"})
}

// NewReporter returns a Honeybadger-backed reporter when apiKey is set and a
// no-op reporter otherwise.
func NewReporter(apiKey, env string) Reporter {
	if apiKey == "" {
		logger.WithComponent("pipeline").Info("Honeybadger is not active. To enable error reporting, set the HONEYBADGER_API_KEY environment variable.")
		return noopReporter{}
	}

	honeybadger.Configure(honeybadger.Configuration{
		APIKey: apiKey,
		Env:    env,
	})
	logger.WithComponent("pipeline").Info("Honeybadger error reporting is enabled.")
	return honeybadgerReporter{}
}
