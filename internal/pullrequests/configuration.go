package pullrequests

import (
	"strings"

	"github.com/temirov/ghpr/internal/githubauth"
)

const (
	defaultRepositoryPathConstant = "."
	defaultTargetBranchConstant   = "master"
	defaultTargetRemoteConstant   = "origin"
	maskedTokenConstant           = "********"

	configurationRepositoryPathKeyConstant = "repository_path"
	configurationTargetBranchKeyConstant   = "target_branch"
	configurationTargetRemoteKeyConstant   = "target_remote"
	configurationAccessTokenKeyConstant    = "access_token"
	configurationAccessTokensKeyConstant   = "access_tokens"
	configurationAutoOpenKeyConstant       = "auto_open_pr"
)

// Configuration captures the pull request workflow settings.
type Configuration struct {
	RepositoryPath      string                 `mapstructure:"repository_path" yaml:"repository_path"`
	TargetBranch        string                 `mapstructure:"target_branch" yaml:"target_branch"`
	TargetRemote        string                 `mapstructure:"target_remote" yaml:"target_remote"`
	AccessToken         string                 `mapstructure:"access_token" yaml:"access_token"`
	AccessTokens        []githubauth.HostToken `mapstructure:"access_tokens" yaml:"access_tokens"`
	AutoOpenPullRequest bool                   `mapstructure:"auto_open_pr" yaml:"auto_open_pr"`
}

// DefaultConfiguration provides baseline workflow settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		RepositoryPath:      defaultRepositoryPathConstant,
		TargetBranch:        defaultTargetBranchConstant,
		TargetRemote:        defaultTargetRemoteConstant,
		AccessToken:         "",
		AccessTokens:        []githubauth.HostToken{},
		AutoOpenPullRequest: false,
	}
}

// DefaultConfigurationValues produces Viper defaults rooted at rootKey.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		rootKey + "." + configurationRepositoryPathKeyConstant: defaults.RepositoryPath,
		rootKey + "." + configurationTargetBranchKeyConstant:   defaults.TargetBranch,
		rootKey + "." + configurationTargetRemoteKeyConstant:   defaults.TargetRemote,
		rootKey + "." + configurationAccessTokenKeyConstant:    defaults.AccessToken,
		rootKey + "." + configurationAccessTokensKeyConstant:   defaults.AccessTokens,
		rootKey + "." + configurationAutoOpenKeyConstant:       defaults.AutoOpenPullRequest,
	}
}

// Sanitize trims values and restores defaults for blank required settings.
func (configuration Configuration) Sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration

	sanitized.RepositoryPath = valueOrDefault(configuration.RepositoryPath, defaults.RepositoryPath)
	sanitized.TargetBranch = valueOrDefault(configuration.TargetBranch, defaults.TargetBranch)
	sanitized.TargetRemote = valueOrDefault(configuration.TargetRemote, defaults.TargetRemote)
	sanitized.AccessToken = strings.TrimSpace(configuration.AccessToken)

	sanitized.AccessTokens = make([]githubauth.HostToken, 0, len(configuration.AccessTokens))
	for _, hostToken := range configuration.AccessTokens {
		trimmedHost := strings.TrimSpace(hostToken.Host)
		if len(trimmedHost) == 0 {
			continue
		}
		sanitized.AccessTokens = append(sanitized.AccessTokens, githubauth.HostToken{
			Host:  strings.TrimSuffix(trimmedHost, "/"),
			Token: strings.TrimSpace(hostToken.Token),
		})
	}

	return sanitized
}

// Masked returns a copy with every token replaced by a placeholder.
func (configuration Configuration) Masked() Configuration {
	masked := configuration
	masked.AccessToken = maskToken(configuration.AccessToken)
	masked.AccessTokens = make([]githubauth.HostToken, len(configuration.AccessTokens))
	for index, hostToken := range configuration.AccessTokens {
		masked.AccessTokens[index] = githubauth.HostToken{Host: hostToken.Host, Token: maskToken(hostToken.Token)}
	}
	return masked
}

func maskToken(token string) string {
	if len(token) == 0 {
		return ""
	}
	return maskedTokenConstant
}

func valueOrDefault(value string, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return defaultValue
	}
	return trimmed
}
