package logger_test

import (
	"errors"

	"github.com/wonny/confluence/backend/pkg/config"
	"github.com/wonny/confluence/backend/pkg/logger"
)

// Example_basic demonstrates basic logger usage
func Example_basic() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	// Create logger (SSOT)
	log := logger.New(cfg)

	log.Debug("This won't appear (level is info)")
	log.Info("Engine started")
	log.Warnf("Layer %d timed out after %s", 3, "5s")
}

// Example_signalContext demonstrates the domain field helpers
func Example_signalContext() {
	log := logger.New(&config.Config{Env: "production", LogLevel: "info", LogFormat: "json"})

	// {"level":"info","symbol":"EURUSD","message":"Scan started",...}
	log.WithSymbol("EURUSD").Info("Scan started")

	// {"level":"info","signal_id":"...","symbol":"EURUSD","status":"tp1_hit",...}
	log.WithSignal("3f6c2a", "EURUSD").
		WithField("status", "tp1_hit").
		Info("Signal transitioned")
}

// Example_withError demonstrates error logging
func Example_withError() {
	log := logger.New(&config.Config{Env: "production", LogLevel: "error", LogFormat: "json"})

	err := errors.New("analysis service timeout")
	log.WithError(err).
		WithFields(map[string]interface{}{
			"layer":      "wyckoff",
			"timeout_ms": 5000,
		}).
		Error("Layer unavailable")
}
