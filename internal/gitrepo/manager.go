package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/ghpr/internal/execshell"
)

const (
	gitStatusSubcommandConstant              = "status"
	gitPorcelainFlagConstant                 = "--porcelain=v1"
	gitBranchFlagConstant                    = "--branch"
	gitRevParseSubcommandConstant            = "rev-parse"
	gitVerifyFlagConstant                    = "--verify"
	gitQuietFlagConstant                     = "--quiet"
	gitHeadReferenceConstant                 = "HEAD"
	gitLogSubcommandConstant                 = "log"
	gitLogLimitFlagConstant                  = "-1"
	gitLogSubjectFormatFlagConstant          = "--format=%s"
	gitRemoteSubcommandConstant              = "remote"
	gitVerboseFlagConstant                   = "-v"
	gitCheckoutSubcommandConstant            = "checkout"
	gitCreateBranchFlagConstant              = "-b"
	gitAddSubcommandConstant                 = "add"
	gitAllFlagConstant                       = "--all"
	gitCommitSubcommandConstant              = "commit"
	gitMessageFlagConstant                   = "-m"
	gitPushSubcommandConstant                = "push"
	gitSetUpstreamFlagConstant               = "-u"
	gitFetchSubcommandConstant               = "fetch"
	gitBranchSubcommandConstant              = "branch"
	gitListFlagConstant                      = "--list"
	gitShortRefFormatFlagConstant            = "--format=%(refname:short)"
	remoteReferenceTemplateConstant          = "%s/%s"
	commitDecorationMarkerConstant           = "(HEAD"
	statusBranchHeaderPrefixConstant         = "## "
	statusNoCommitsPrefixConstant            = "No commits yet on "
	statusInitialCommitPrefixConstant        = "Initial commit on "
	statusDetachedHeadConstant               = "HEAD (no branch)"
	statusUpstreamSeparatorConstant          = "..."
	statusEntryMinimumLengthConstant         = 3
	remoteFetchMarkerConstant                = "(fetch)"
	remotePushMarkerConstant                 = "(push)"
	revisionMissingExitCodeConstant          = 1
	gitTerminalPromptEnvironmentNameConstant = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledValueConstant   = "0"

	gitExecutorMissingMessageConstant = "git executor not configured"
	conflictsMessageConstant          = "unresolved conflicts, please resolve before opening a pull request"
	noRemotesMessageConstant          = "no remotes configured"
	remoteNotFoundTemplateConstant    = "target remote %s does not exist"
	operationErrorTemplateConstant    = "%s: %v"

	operationReadStatusConstant             = "read working tree status"
	operationReadCommitConstant             = "read latest commit"
	operationListRemotesConstant            = "list remotes"
	operationCreateBranchTemplateConstant   = "create branch %s"
	operationCheckoutBranchTemplateConstant = "check out branch %s"
	operationStageFilesConstant             = "stage changes"
	operationCommitConstant                 = "commit changes"
	operationPushTemplateConstant           = "push %s to %s"
	operationFetchTemplateConstant          = "fetch %s from %s"
	operationListBranchesConstant           = "list local branches"
)

// conflictStatusCodes lists porcelain status pairs that denote unmerged paths.
var conflictStatusCodes = map[string]struct{}{
	"DD": {},
	"AU": {},
	"UD": {},
	"UA": {},
	"DU": {},
	"AA": {},
	"UU": {},
}

var (
	// ErrGitExecutorNotConfigured indicates the git executor dependency was missing.
	ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)
	// ErrUnresolvedConflicts indicates the working tree contains unmerged paths.
	ErrUnresolvedConflicts = errors.New(conflictsMessageConstant)
	// ErrNoRemotesConfigured indicates the repository has no remotes.
	ErrNoRemotesConfigured = errors.New(noRemotesMessageConstant)
)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RemoteNotFoundError reports a configured target remote that the repository lacks.
type RemoteNotFoundError struct {
	RemoteName string
}

// Error describes the missing remote.
func (remoteError RemoteNotFoundError) Error() string {
	return fmt.Sprintf(remoteNotFoundTemplateConstant, remoteError.RemoteName)
}

// OperationError wraps a failed git operation.
type OperationError struct {
	Operation string
	Cause     error
}

// Error describes the failed operation.
func (operationError OperationError) Error() string {
	return fmt.Sprintf(operationErrorTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// FileChangeKind classifies a working tree entry.
type FileChangeKind string

// Working tree entry kinds.
const (
	FileChangeCreated   FileChangeKind = "created"
	FileChangeDeleted   FileChangeKind = "deleted"
	FileChangeModified  FileChangeKind = "modified"
	FileChangeRenamed   FileChangeKind = "renamed"
	FileChangeUntracked FileChangeKind = "untracked"
)

// FileChange is a single non-conflicted working tree entry.
type FileChange struct {
	Path string
	Kind FileChangeKind
}

// RepositoryStatus is a snapshot of the working tree relative to the target branch.
type RepositoryStatus struct {
	CurrentBranch  string
	OnTargetBranch bool
	Clean          bool
	Changes        []FileChange
}

// RepositoryManager inspects and mutates a single local repository through git.
type RepositoryManager struct {
	executor       GitExecutor
	repositoryPath string
}

// NewRepositoryManager constructs a RepositoryManager rooted at repositoryPath.
func NewRepositoryManager(executor GitExecutor, repositoryPath string) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor, repositoryPath: strings.TrimSpace(repositoryPath)}, nil
}

// CheckStatus reports the current branch and cleanliness. Conflicted paths fail the check before anything else is evaluated.
func (manager *RepositoryManager) CheckStatus(executionContext context.Context, targetBranch string) (RepositoryStatus, error) {
	output, executionError := manager.run(executionContext, nil, gitStatusSubcommandConstant, gitPorcelainFlagConstant, gitBranchFlagConstant)
	if executionError != nil {
		return RepositoryStatus{}, OperationError{Operation: operationReadStatusConstant, Cause: executionError}
	}

	currentBranch := ""
	changes := []FileChange{}
	for _, line := range strings.Split(output, "\n") {
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		if strings.HasPrefix(line, statusBranchHeaderPrefixConstant) {
			currentBranch = parseBranchHeader(strings.TrimPrefix(line, statusBranchHeaderPrefixConstant))
			continue
		}
		if len(line) < statusEntryMinimumLengthConstant {
			continue
		}
		statusCode := line[:2]
		if _, conflicted := conflictStatusCodes[statusCode]; conflicted {
			return RepositoryStatus{}, ErrUnresolvedConflicts
		}
		changes = append(changes, FileChange{Path: strings.TrimSpace(line[3:]), Kind: classifyStatusCode(statusCode)})
	}

	return RepositoryStatus{
		CurrentBranch:  currentBranch,
		OnTargetBranch: currentBranch == strings.TrimSpace(targetBranch),
		Clean:          len(changes) == 0,
		Changes:        changes,
	}, nil
}

// LastCommitMessage returns the subject of the latest commit, or an empty string when the repository has no commits.
func (manager *RepositoryManager) LastCommitMessage(executionContext context.Context) (string, error) {
	_, verificationError := manager.run(executionContext, nil, gitRevParseSubcommandConstant, gitVerifyFlagConstant, gitQuietFlagConstant, gitHeadReferenceConstant)
	if verificationError != nil {
		var commandFailure execshell.CommandFailedError
		if errors.As(verificationError, &commandFailure) && commandFailure.Result.ExitCode == revisionMissingExitCodeConstant {
			return "", nil
		}
		return "", OperationError{Operation: operationReadCommitConstant, Cause: verificationError}
	}

	output, executionError := manager.run(executionContext, nil, gitLogSubcommandConstant, gitLogLimitFlagConstant, gitLogSubjectFormatFlagConstant)
	if executionError != nil {
		return "", OperationError{Operation: operationReadCommitConstant, Cause: executionError}
	}

	subject, _, _ := strings.Cut(output, commitDecorationMarkerConstant)
	return strings.TrimSpace(subject), nil
}

// ResolveRemote parses the push URL of the named remote.
func (manager *RepositoryManager) ResolveRemote(executionContext context.Context, remoteName string) (RemoteDescriptor, error) {
	output, executionError := manager.run(executionContext, nil, gitRemoteSubcommandConstant, gitVerboseFlagConstant)
	if executionError != nil {
		return RemoteDescriptor{}, OperationError{Operation: operationListRemotesConstant, Cause: executionError}
	}

	remotes := parseRemoteListing(output)
	if len(remotes) == 0 {
		return RemoteDescriptor{}, ErrNoRemotesConfigured
	}

	trimmedRemoteName := strings.TrimSpace(remoteName)
	endpoints, found := remotes[trimmedRemoteName]
	if !found {
		return RemoteDescriptor{}, RemoteNotFoundError{RemoteName: trimmedRemoteName}
	}

	remoteURL := endpoints.pushURL
	if len(remoteURL) == 0 {
		remoteURL = endpoints.fetchURL
	}
	return ParseRepositoryURL(remoteURL)
}

// CreateBranch creates and switches to a new branch.
func (manager *RepositoryManager) CreateBranch(executionContext context.Context, branchName string) error {
	if _, executionError := manager.run(executionContext, nil, gitCheckoutSubcommandConstant, gitCreateBranchFlagConstant, branchName); executionError != nil {
		return OperationError{Operation: fmt.Sprintf(operationCreateBranchTemplateConstant, branchName), Cause: executionError}
	}
	return nil
}

// CheckoutBranch switches to an existing local branch.
func (manager *RepositoryManager) CheckoutBranch(executionContext context.Context, branchName string) error {
	if _, executionError := manager.run(executionContext, nil, gitCheckoutSubcommandConstant, branchName); executionError != nil {
		return OperationError{Operation: fmt.Sprintf(operationCheckoutBranchTemplateConstant, branchName), Cause: executionError}
	}
	return nil
}

// CheckoutTrackingBranch creates a local branch starting at remoteName/branchName and switches to it.
func (manager *RepositoryManager) CheckoutTrackingBranch(executionContext context.Context, remoteName string, branchName string) error {
	startPoint := fmt.Sprintf(remoteReferenceTemplateConstant, remoteName, branchName)
	if _, executionError := manager.run(executionContext, nil, gitCheckoutSubcommandConstant, gitCreateBranchFlagConstant, branchName, startPoint); executionError != nil {
		return OperationError{Operation: fmt.Sprintf(operationCheckoutBranchTemplateConstant, branchName), Cause: executionError}
	}
	return nil
}

// StageFiles stages the given path specs, or every change when none are supplied.
func (manager *RepositoryManager) StageFiles(executionContext context.Context, pathSpecs ...string) error {
	arguments := []string{gitAddSubcommandConstant}
	if len(pathSpecs) == 0 {
		arguments = append(arguments, gitAllFlagConstant)
	} else {
		arguments = append(arguments, pathSpecs...)
	}
	if _, executionError := manager.run(executionContext, nil, arguments...); executionError != nil {
		return OperationError{Operation: operationStageFilesConstant, Cause: executionError}
	}
	return nil
}

// Commit records the staged changes with the provided message.
func (manager *RepositoryManager) Commit(executionContext context.Context, message string) error {
	if _, executionError := manager.run(executionContext, nil, gitCommitSubcommandConstant, gitMessageFlagConstant, message); executionError != nil {
		return OperationError{Operation: operationCommitConstant, Cause: executionError}
	}
	return nil
}

// Push publishes the branch to the remote and sets it as upstream.
func (manager *RepositoryManager) Push(executionContext context.Context, remoteName string, branchName string) error {
	if _, executionError := manager.run(executionContext, nonInteractiveEnvironment(), gitPushSubcommandConstant, gitSetUpstreamFlagConstant, remoteName, branchName); executionError != nil {
		return OperationError{Operation: fmt.Sprintf(operationPushTemplateConstant, branchName, remoteName), Cause: executionError}
	}
	return nil
}

// Fetch retrieves a single branch from the remote.
func (manager *RepositoryManager) Fetch(executionContext context.Context, remoteName string, branchName string) error {
	if _, executionError := manager.run(executionContext, nonInteractiveEnvironment(), gitFetchSubcommandConstant, remoteName, branchName); executionError != nil {
		return OperationError{Operation: fmt.Sprintf(operationFetchTemplateConstant, branchName, remoteName), Cause: executionError}
	}
	return nil
}

// ListBranches returns the set of local branch names.
func (manager *RepositoryManager) ListBranches(executionContext context.Context) (map[string]struct{}, error) {
	output, executionError := manager.run(executionContext, nil, gitBranchSubcommandConstant, gitListFlagConstant, gitShortRefFormatFlagConstant)
	if executionError != nil {
		return nil, OperationError{Operation: operationListBranchesConstant, Cause: executionError}
	}

	branches := map[string]struct{}{}
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		branches[trimmed] = struct{}{}
	}
	return branches, nil
}

func (manager *RepositoryManager) run(executionContext context.Context, environment map[string]string, arguments ...string) (string, error) {
	result, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     manager.repositoryPath,
		EnvironmentVariables: environment,
	})
	if executionError != nil {
		return "", executionError
	}
	return result.StandardOutput, nil
}

func nonInteractiveEnvironment() map[string]string {
	return map[string]string{gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptDisabledValueConstant}
}

func parseBranchHeader(header string) string {
	trimmedHeader := strings.TrimSpace(header)
	switch {
	case strings.HasPrefix(trimmedHeader, statusNoCommitsPrefixConstant):
		return strings.TrimPrefix(trimmedHeader, statusNoCommitsPrefixConstant)
	case strings.HasPrefix(trimmedHeader, statusInitialCommitPrefixConstant):
		return strings.TrimPrefix(trimmedHeader, statusInitialCommitPrefixConstant)
	case trimmedHeader == statusDetachedHeadConstant:
		return gitHeadReferenceConstant
	}
	branchName, _, _ := strings.Cut(trimmedHeader, statusUpstreamSeparatorConstant)
	branchName, _, _ = strings.Cut(branchName, " ")
	return branchName
}

func classifyStatusCode(statusCode string) FileChangeKind {
	if statusCode == "??" {
		return FileChangeUntracked
	}
	switch {
	case strings.Contains(statusCode, "R"):
		return FileChangeRenamed
	case strings.ContainsAny(statusCode, "AC"):
		return FileChangeCreated
	case strings.Contains(statusCode, "D"):
		return FileChangeDeleted
	default:
		return FileChangeModified
	}
}

type remoteEndpoints struct {
	fetchURL string
	pushURL  string
}

func parseRemoteListing(output string) map[string]remoteEndpoints {
	remotes := map[string]remoteEndpoints{}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		endpoints := remotes[fields[0]]
		marker := ""
		if len(fields) > 2 {
			marker = fields[2]
		}
		switch marker {
		case remotePushMarkerConstant:
			endpoints.pushURL = fields[1]
		case remoteFetchMarkerConstant:
			endpoints.fetchURL = fields[1]
		default:
			if len(endpoints.fetchURL) == 0 {
				endpoints.fetchURL = fields[1]
			}
		}
		remotes[fields[0]] = endpoints
	}
	return remotes
}
