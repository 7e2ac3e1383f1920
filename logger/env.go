package logger

import (
	"os"
	"strconv"
)

const (
	envLogLevel  = "LOG_LEVEL"
	envLogEnable = "LOG_ENABLE"
	envDebug     = "DEBUG"
)

func envInt(env string, def int) int {
	i, err := strconv.Atoi(os.Getenv(env))
	if err != nil {
		return def
	}

	return i
}

func envBool(env string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(env))
	if err != nil {
		return def
	}

	return b
}
