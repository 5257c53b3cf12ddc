// ABOUTME: Diagnostic logging setup.
// ABOUTME: Configures logrus for stderr so stdout stays reserved for course listings and progress.

package main

import (
	"io"

	"github.com/sirupsen/logrus"
)

func setupLogging(w io.Writer, level string, colors bool) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)

	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat:  "15:04:05.000",
		FullTimestamp:    true,
		ForceColors:      colors,
		DisableColors:    !colors,
		QuoteEmptyFields: true,
	})
	logrus.SetOutput(w)
	return nil
}
