package enums

import "fmt"

// Environment tags recorded usage with the deployment it came from. It is
// injected at service construction so the same process can serve multiple
// environments deterministically in tests.
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentStaging     Environment = "staging"
	EnvironmentProduction  Environment = "production"
)

var validEnvironments = []Environment{
	EnvironmentDevelopment,
	EnvironmentStaging,
	EnvironmentProduction,
}

// String implements fmt.Stringer.
func (e Environment) String() string {
	return string(e)
}

// IsValid reports whether the value is a known Environment.
func (e Environment) IsValid() bool {
	for _, candidate := range validEnvironments {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEnvironment converts raw input into an Environment.
func ParseEnvironment(value string) (Environment, error) {
	for _, candidate := range validEnvironments {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid environment %q", value)
}
