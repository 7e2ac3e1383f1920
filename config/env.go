package config

import (
	"os"
	"time"
)

const (
	envAddr           = "COMET_ADDR"
	envPath           = "COMET_PATH"
	envRouter         = "COMET_ROUTER"
	envSuspendTimeout = "COMET_SUSPEND_TIMEOUT"
)

func envString(env string, def string) string {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		return v
	}

	return def
}

func envDuration(env string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(env))
	if err != nil {
		return def
	}

	return d
}
