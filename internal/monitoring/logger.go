// Package monitoring is the diagnostic logging seam shared by the pose
// pipeline packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger, defaulting to log.Printf.
// Pipeline packages log through it so tests can redirect or mute their
// output via SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
