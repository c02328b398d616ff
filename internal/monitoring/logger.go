// Package monitoring carries the diagnostic logger and the per-run
// observability context used by the analysis pipeline.
package monitoring

import "log"

// Logf receives the diagnostic lines of the storage layers: skipped
// shapefile rows and reprojections, SQLite busy retries and schema
// migrations. It defaults to log.Printf; forest-report -quiet mutes it
// through SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Prefixed returns a logger that tags each line with prefix and forwards
// it to whatever Logf is at call time, so a later SetLogger still applies.
func Prefixed(prefix string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
