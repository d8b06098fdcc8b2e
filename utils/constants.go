package utils

const (
	AppName = "signalhub"

	DefaultAddr   = ":3001"
	DefaultOrigin = "http://localhost/"
	EnvPrefix     = "SIGNALHUB_"
)

// EnvVar returns the environment variable name for a setting.
func EnvVar(name string) string {
	return EnvPrefix + name
}
