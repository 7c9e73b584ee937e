package utils

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvDefault returns the value of key, or def when unset or blank.
func GetEnvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func GetEnvInt(key string, def int) int {
	raw := GetEnvDefault(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("⚠️  %s=%q is not an integer, using %d", key, raw, def)
		return def
	}
	return n
}

// GetEnvDuration accepts Go durations ("10s") or plain milliseconds ("10000").
func GetEnvDuration(key string, def time.Duration) time.Duration {
	raw := GetEnvDefault(key, "")
	if raw == "" {
		return def
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("⚠️  %s=%q is not a duration, using %s", key, raw, def)
		return def
	}
	return d
}

// SplitCSV splits a comma separated list and drops blanks.
func SplitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
