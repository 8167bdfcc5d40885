package env

import "os"

// Get reads the named variable, falling back when it is unset or blank.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
