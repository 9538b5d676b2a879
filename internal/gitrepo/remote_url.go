package gitrepo

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	schemeSeparatorConstant             = "://"
	pathSeparatorConstant               = "/"
	gitSuffixConstant                   = ".git"
	remoteURLParseErrorTemplateConstant = "%s: %s"
	requiredValueMessageConstant        = "remote url must be provided"
	invalidRemoteURLMessageConstant     = "invalid remote url"
	missingHostMessageConstant          = "remote url has no host"
	missingRepositoryMessageConstant    = "remote url has no owner/repository path"
)

// scpLikeRemotePattern matches user@host:path remotes. The user part is optional.
var scpLikeRemotePattern = regexp.MustCompile(`^(?:[^@/\s]+@)?([^@:/\s]+):(.+)$`)

// RemoteDescriptor identifies a hosted repository derived from a remote URL.
type RemoteDescriptor struct {
	Host         string
	RepositoryID string
}

// Owner returns the account or organization segment of the repository identifier.
func (descriptor RemoteDescriptor) Owner() string {
	owner, _, _ := strings.Cut(descriptor.RepositoryID, pathSeparatorConstant)
	return owner
}

// Name returns the repository segment of the repository identifier.
func (descriptor RemoteDescriptor) Name() string {
	_, remainder, found := strings.Cut(descriptor.RepositoryID, pathSeparatorConstant)
	if !found {
		return ""
	}
	name, _, _ := strings.Cut(remainder, pathSeparatorConstant)
	return name
}

// RemoteURLParseError indicates a remote string could not be parsed.
type RemoteURLParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError RemoteURLParseError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// ParseRepositoryURL converts a standard or SCP-like remote URL into a RemoteDescriptor.
// Standard URLs are tried first; remotes without a scheme fall back to the SCP-like grammar.
func ParseRepositoryURL(remote string) (RemoteDescriptor, error) {
	trimmedRemote := strings.TrimSpace(remote)
	if len(trimmedRemote) == 0 {
		return RemoteDescriptor{}, RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	}

	var host string
	var repositoryPath string
	if strings.Contains(trimmedRemote, schemeSeparatorConstant) {
		parsedURL, parseError := url.Parse(trimmedRemote)
		if parseError != nil {
			return RemoteDescriptor{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
		}
		host = parsedURL.Hostname()
		repositoryPath = parsedURL.Path
	} else {
		matches := scpLikeRemotePattern.FindStringSubmatch(trimmedRemote)
		if matches == nil {
			return RemoteDescriptor{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
		}
		host = matches[1]
		repositoryPath = matches[2]
	}

	if len(host) == 0 {
		return RemoteDescriptor{}, RemoteURLParseError{Input: remote, Message: missingHostMessageConstant}
	}

	repositoryID := normalizeRepositoryID(repositoryPath)
	if len(repositoryID) == 0 {
		return RemoteDescriptor{}, RemoteURLParseError{Input: remote, Message: missingRepositoryMessageConstant}
	}

	return RemoteDescriptor{Host: host, RepositoryID: repositoryID}, nil
}

func normalizeRepositoryID(repositoryPath string) string {
	trimmed := strings.Trim(strings.TrimSpace(repositoryPath), pathSeparatorConstant)
	trimmed = strings.TrimSuffix(trimmed, gitSuffixConstant)
	return strings.TrimSuffix(trimmed, pathSeparatorConstant)
}
