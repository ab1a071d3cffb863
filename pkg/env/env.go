// Package env reads the few settings needed before config is loaded.
package env

import (
	"os"
	"strings"
)

// Get returns the first non-blank value among keys, trimmed, or fallback.
// Earlier keys win, so a prefixed name can shadow a generic one.
func Get(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return fallback
}
