package bbservice

import "fmt"

// PrefixEnvVar adds a prefix to the environment variable,
// and returns the env-var name used by a CLI flag.
func PrefixEnvVar(prefix, suffix string) string {
	return fmt.Sprintf("%s_%s", prefix, suffix)
}
