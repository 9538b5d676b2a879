// Package utils holds the process-wide plumbing shared by every ghpr command:
// the Viper-backed ConfigurationLoader, the ConfigurationInitializer behind
// --init, and the zap LoggerFactory.
package utils
