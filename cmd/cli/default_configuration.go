package cli

import _ "embed"

//go:embed default_config.yaml
var embeddedDefaultConfigurationContent []byte

// EmbeddedDefaultConfiguration returns a copy of the configuration written by --init.
func EmbeddedDefaultConfiguration() []byte {
	return append([]byte(nil), embeddedDefaultConfigurationContent...)
}
