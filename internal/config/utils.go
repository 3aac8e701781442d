package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup parses the variable named key, falling back to def when it is unset
// or fails to parse.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func getEnv(key, def string) string {
	return lookup(key, def, func(s string) (string, error) { return s, nil })
}

func getEnvAsInt(key string, def int) int {
	return lookup(key, def, strconv.Atoi)
}

func getEnvAsBool(key string, def bool) bool {
	return lookup(key, def, strconv.ParseBool)
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	return lookup(key, def, time.ParseDuration)
}

// getEnvAsStringSlice splits a comma separated list, dropping blanks. An
// all-blank value keeps the defaults.
func getEnvAsStringSlice(key string, def []string) []string {
	out := lookup(key, nil, func(s string) ([]string, error) {
		var items []string
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				items = append(items, p)
			}
		}
		return items, nil
	})
	if len(out) == 0 {
		return def
	}
	return out
}
