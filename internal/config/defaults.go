package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel = "info"
	DefaultJSONLog  = false

	DefaultUserAgent      = "Crawly/1.0 (+https://github.com/DONALDBZR/Crawly)"
	DefaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	DefaultAcceptLanguage = "en-US,en;q=0.9"
	DefaultHTTPTimeout    = 10 * time.Second
	DefaultRespectRobots  = true

	DefaultMaxAttempts = 3
	DefaultBackoffBase = 500 * time.Millisecond

	// Inline-script harvesting is opt-in; readability refinement is on by
	// default because it only replaces content it improves on.
	DefaultRunScripts     = false
	DefaultUseReadability = true

	// Response size caps. A payload larger than this is rejected rather
	// than buffered.
	DefaultMaxHTMLResponseBytes = 16 << 20
	DefaultMaxAPIResponseBytes  = 10 << 20

	DefaultOutputFormat = "json"

	DefaultDBDriver         = "sqlite"
	DefaultDBDSN            = "crawly.db"
	DefaultDBPoolSize       = 5
	DefaultDBAcquireTimeout = 10 * time.Second
	DefaultDBResetSession   = true

	DefaultBrowserHeadless = true
	DefaultJSWaitTime      = 500 * time.Millisecond
)
