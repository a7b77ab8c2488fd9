package testutil

import (
	"flag"
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
)

var (
	logLevel  = "info"
	logStderr = false
)

func init() {
	flag.StringVar(&logLevel, "log-level", logLevel,
		"log level: trace, debug, info, warn, error, fatal, or panic")
	flag.BoolVar(&logStderr, "log-stderr", logStderr, "log to standard error")
	flag.BoolVar(&logStderr, "s", logStderr, "log to standard error")
}

type testWriter struct {
	tb testing.TB
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.tb.Log(string(p))
	return len(p), nil
}

// Logger returns a logger for databases opened by a test, to use as Options.InfoLog. It
// logs through tb, or to standard error with -log-stderr.
func Logger(tb testing.TB) *log.Logger {
	ll, err := log.ParseLevel(logLevel)
	if err != nil {
		tb.Fatal(err)
	}

	logger := log.New()
	if logStderr {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(testWriter{tb})
	}
	logger.SetFormatter(&log.TextFormatter{
		DisableColors:          true,
		DisableLevelTruncation: true,
	})
	logger.SetLevel(ll)
	return logger
}
