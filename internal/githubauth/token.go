package githubauth

import (
	"os"
	"strings"
)

// Environment variable names consulted for the public host token.
const (
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"
)

var tokenPreference = []string{
	EnvGitHubCLIToken,
	EnvGitHubToken,
	EnvGitHubAPIToken,
}

// EnvironmentLookup reads a single environment variable.
type EnvironmentLookup func(key string) (string, bool)

// ProcessEnvironment reads variables from the running process.
func ProcessEnvironment() EnvironmentLookup {
	return os.LookupEnv
}

// ResolveEnvironmentToken returns the first non-empty token among GH_TOKEN, GITHUB_TOKEN and GITHUB_API_TOKEN.
func ResolveEnvironmentToken(lookup EnvironmentLookup) (string, bool) {
	if lookup == nil {
		return "", false
	}
	for _, key := range tokenPreference {
		value, exists := lookup(key)
		if !exists {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) > 0 {
			return value, true
		}
	}
	return "", false
}
