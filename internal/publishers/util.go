package publishers

import (
	"strconv"
	"time"
)

// Internal params injected by the CLI. They start with "_" so they never
// clash with user configuration.
const (
	ParamTimeout  = "_timeout"
	ParamRetries  = "_retries"
	ParamProxyURL = "_proxy_url"
)

func String(config map[string]interface{}, key string) string {
	s, _ := config[key].(string)
	return s
}

// Int accepts ints and numeric strings, as --param overrides may be either.
func Int(config map[string]interface{}, key string, def int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func Duration(config map[string]interface{}, key string, def time.Duration) time.Duration {
	switch v := config[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func Bool(config map[string]interface{}, key string) bool {
	switch v := config[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}
