package githubauth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	// PublicHostURL is the protocol-qualified public GitHub host.
	PublicHostURL = "https://github.com"
	// PublicHostName is the hostname of the public GitHub instance.
	PublicHostName = "github.com"

	protocolSuffixConstant           = ":"
	templateStartTagConstant         = "{{"
	templateEndTagConstant           = "}}"
	webURLTemplateConstant           = "{{protocol}}//{{host}}"
	enterpriseAPIURLTemplateConstant = "https://{{host}}/api/v3/"
	publicAPIURLConstant             = "https://api.github.com/"
	tokenSettingsURLTemplateConstant = "{{web_url}}/settings/tokens"
	protocolTemplateKeyConstant      = "protocol"
	hostTemplateKeyConstant          = "host"
	webURLTemplateKeyConstant        = "web_url"

	unknownHostTemplateConstant            = "pull_requests.access_tokens does not contain an entry for %s (e.g. host: https://%s)"
	missingProtocolTemplateConstant        = "pull_requests.access_tokens entry %q must have a protocol (e.g. host: https://%s)"
	missingPublicTokenMessageConstant      = "pull_requests.access_token is not set"
	missingEnterpriseTokenTemplateConstant = "pull_requests.access_tokens entry %q has no token"
	hostTokenSeparatorConstant             = "="
	malformedHostTokenTemplateConstant     = "access token entry %q must have the form host=token"
)

// HostToken associates a protocol-qualified host URL with its access token.
type HostToken struct {
	Host  string `mapstructure:"host" yaml:"host"`
	Token string `mapstructure:"token" yaml:"token"`
}

// UnmarshalText parses the host=token form used by environment overrides.
func (hostToken *HostToken) UnmarshalText(text []byte) error {
	host, token, found := strings.Cut(string(text), hostTokenSeparatorConstant)
	if !found || len(strings.TrimSpace(host)) == 0 {
		return fmt.Errorf(malformedHostTokenTemplateConstant, string(text))
	}
	hostToken.Host = strings.TrimSpace(host)
	hostToken.Token = strings.TrimSpace(token)
	return nil
}

// HostCredentials describes how to reach a GitHub host.
type HostCredentials struct {
	Host       string
	Protocol   string
	WebURL     string
	APIBaseURL string
	Token      string
	PublicHost bool
}

// UnknownHostError indicates no configured entry matches the repository host.
type UnknownHostError struct {
	Host string
}

// Error describes the unknown host.
func (hostError UnknownHostError) Error() string {
	return fmt.Sprintf(unknownHostTemplateConstant, hostError.Host, hostError.Host)
}

// MissingProtocolError indicates the matching entry lacks a scheme.
type MissingProtocolError struct {
	Host string
}

// Error describes the unqualified entry.
func (protocolError MissingProtocolError) Error() string {
	return fmt.Sprintf(missingProtocolTemplateConstant, protocolError.Host, protocolError.Host)
}

// MissingTokenError indicates the resolved host has no access token configured.
type MissingTokenError struct {
	Credentials      HostCredentials
	TokenSettingsURL string
}

// Error describes which setting must be provided.
func (tokenError MissingTokenError) Error() string {
	if tokenError.Credentials.PublicHost {
		return missingPublicTokenMessageConstant
	}
	return fmt.Sprintf(missingEnterpriseTokenTemplateConstant, tokenError.Credentials.WebURL)
}

// BuildHostList returns the configured hosts in order followed by the public host URL.
func BuildHostList(hostTokens []HostToken) []string {
	hosts := make([]string, 0, len(hostTokens)+1)
	for _, hostToken := range hostTokens {
		hosts = append(hosts, hostToken.Host)
	}
	return append(hosts, PublicHostURL)
}

// ResolveProtocol returns the protocol, including its trailing colon, of the first entry naming host.
// Entries match on their parsed hostname, or verbatim when they carry no scheme.
func ResolveProtocol(host string, knownHosts []string) (string, error) {
	index, protocol := matchHost(host, knownHosts)
	if index < 0 {
		return "", UnknownHostError{Host: host}
	}
	if len(protocol) == 0 {
		return "", MissingProtocolError{Host: host}
	}
	return protocol, nil
}

func matchHost(host string, knownHosts []string) (int, string) {
	for index, entry := range knownHosts {
		trimmedEntry := strings.TrimSpace(entry)
		parsedEntry, parseError := url.Parse(trimmedEntry)
		if parseError == nil && len(parsedEntry.Scheme) > 0 && parsedEntry.Hostname() == host {
			return index, parsedEntry.Scheme + protocolSuffixConstant
		}
		if trimmedEntry == host {
			return index, ""
		}
	}
	return -1, ""
}

// CredentialResolver maps repository hosts to credentials using the configured host table.
type CredentialResolver struct {
	PublicToken       string
	HostTokens        []HostToken
	LookupEnvironment EnvironmentLookup
}

// Resolve returns credentials for host, failing when the host is unknown, unqualified, or has no token.
func (resolver CredentialResolver) Resolve(host string) (HostCredentials, error) {
	knownHosts := BuildHostList(resolver.HostTokens)
	index, protocol := matchHost(host, knownHosts)
	if index < 0 {
		return HostCredentials{}, UnknownHostError{Host: host}
	}
	if len(protocol) == 0 {
		return HostCredentials{}, MissingProtocolError{Host: host}
	}

	webURL := fasttemplate.ExecuteString(webURLTemplateConstant, templateStartTagConstant, templateEndTagConstant, map[string]interface{}{
		protocolTemplateKeyConstant: protocol,
		hostTemplateKeyConstant:     host,
	})
	credentials := HostCredentials{
		Host:       host,
		Protocol:   protocol,
		WebURL:     webURL,
		PublicHost: host == PublicHostName,
	}

	if credentials.PublicHost {
		credentials.APIBaseURL = publicAPIURLConstant
	} else {
		credentials.APIBaseURL = fasttemplate.ExecuteString(enterpriseAPIURLTemplateConstant, templateStartTagConstant, templateEndTagConstant, map[string]interface{}{
			hostTemplateKeyConstant: host,
		})
	}

	credentials.Token = resolver.resolveToken(index, credentials.PublicHost)
	if len(credentials.Token) == 0 {
		return HostCredentials{}, MissingTokenError{Credentials: credentials, TokenSettingsURL: TokenSettingsURL(webURL)}
	}
	return credentials, nil
}

func (resolver CredentialResolver) resolveToken(index int, publicHost bool) string {
	if index < len(resolver.HostTokens) {
		if token := strings.TrimSpace(resolver.HostTokens[index].Token); len(token) > 0 {
			return token
		}
	}
	if !publicHost {
		return ""
	}
	if token := strings.TrimSpace(resolver.PublicToken); len(token) > 0 {
		return token
	}
	token, _ := ResolveEnvironmentToken(resolver.LookupEnvironment)
	return token
}

// TokenSettingsURL returns the page where users create personal access tokens on the host.
func TokenSettingsURL(webURL string) string {
	return fasttemplate.ExecuteString(tokenSettingsURLTemplateConstant, templateStartTagConstant, templateEndTagConstant, map[string]interface{}{
		webURLTemplateKeyConstant: strings.TrimSuffix(webURL, "/"),
	})
}
