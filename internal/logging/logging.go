// Package logging configures the process-wide logrus logger. Individual
// call chains use occontext.Context to carry request-scoped fields
// instead of the global logger below.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// ConfigureCommandLineLogging sets up a human-readable logger for
// interactive CLI use (odcctl).
func ConfigureCommandLineLogging() {
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true})
	logrus.SetOutput(os.Stdout)
}

// ConfigureApplicationLogging sets up JSON logging suitable for the
// long-running controller process, where logs are shipped to a collector
// rather than read by a human on a terminal.
func ConfigureApplicationLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(lvl)
	return nil
}
