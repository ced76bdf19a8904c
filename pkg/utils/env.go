package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Getenv retrieves the value of the environment variable named by the key.
// If the variable is not present or its value is empty, Getenv returns the fallback string.
func Getenv(key, fallback string) string {
	value := os.Getenv(key)
	if len(value) == 0 {
		return fallback
	}
	return value
}

// GetenvInt is Getenv for integers. Unparsable values fall back.
func GetenvInt(key string, fallback int) int {
	n, err := strconv.Atoi(Getenv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

// GetenvBool accepts anything strconv.ParseBool does.
func GetenvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(Getenv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

// GetenvDuration parses values such as "90s" or "12h".
func GetenvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(Getenv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

// GetenvList splits a comma separated variable, dropping blanks.
func GetenvList(key string, fallback []string) []string {
	raw := Getenv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
