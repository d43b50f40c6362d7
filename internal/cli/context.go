// Package cli provides the command-line interface for the crawly application.
package cli

import (
	"github.com/DONALDBZR/Crawly/internal/app"
)

// globalApp is the process-wide application instance. A CLI invocation runs
// exactly one command, so a single slot is enough: PersistentPreRunE fills it
// and PersistentPostRun clears it.
var globalApp *app.Application

// SetApp stores the shared Application for commands to use.
func SetApp(a *app.Application) {
	globalApp = a
}

// GetApp returns the shared Application, or nil before initialization.
func GetApp() *app.Application {
	return globalApp
}
