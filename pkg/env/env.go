package env

import "os"

// Get reads an environment variable, falling back when it is unset or blank.
// Configuration proper goes through envconfig; this helper covers the few
// reads that happen before config is loaded, such as logger bootstrap.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}
