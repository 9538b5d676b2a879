package pullrequests

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/valyala/fasttemplate"
	"go.uber.org/zap"

	"github.com/temirov/ghpr/internal/githubapi"
	"github.com/temirov/ghpr/internal/githubauth"
	"github.com/temirov/ghpr/internal/gitrepo"
	"github.com/temirov/ghpr/internal/ui"
)

const (
	userMessagePrefixConstant = "GitHub PR: "

	branchPromptMessageConstant       = "Branch name"
	commitPromptMessageConstant       = "Commit message"
	commitPromptPlaceholderConstant   = "required"
	selectPullRequestPromptConstant   = "Select PR"
	openPullRequestActionConstant     = "Open PR"
	createOnGitHubActionConstant      = "Create on GitHub"
	generateAccessTokenActionConstant = "Generate Access Token"

	buildingStatusTemplateConstant         = "Building PR to %s from %s..."
	createdStatusTemplateConstant          = "PR #%d created."
	createFailedStatusConstant             = "Unable to create PR."
	listFailedStatusConstant               = "Unable to list PRs."
	viewFailedStatusConstant               = "Unable to view PR."
	checkoutFailedStatusConstant           = "Unable to check out PR."
	alreadyExistsMessageTemplateConstant   = "A pull request for %s already exists."
	unauthorizedMessageTemplateConstant    = "The access token for %s was rejected."
	creationFailureMessageTemplateConstant = "Unable to create PR: %v"
	pullRequestNotSelectedMessageConstant  = "PR not selected."
	noOpenPullRequestsMessageConstant      = "No open pull requests."
	checkingOutStatusTemplateConstant      = "Checking out PR #%d..."
	switchedStatusTemplateConstant         = "Switched to PR #%d."
	choiceLabelTemplateConstant            = "PR #%d: %s"
	choiceBaseSuffixTemplateConstant       = " > %s"

	compareURLTemplateConstant          = "{{web_url}}/{{owner}}/{{repository}}/compare/{{base}}...{{head}}"
	templateStartTagConstant            = "{{"
	templateEndTagConstant              = "}}"
	webURLTemplateKeyConstant           = "web_url"
	ownerTemplateKeyConstant            = "owner"
	repositoryTemplateKeyConstant       = "repository"
	baseTemplateKeyConstant             = "base"
	headTemplateKeyConstant             = "head"
	unknownMutationStepTemplateConstant = "unknown mutation step %s"

	repositoryNotConfiguredMessageConstant    = "pull request service requires a repository"
	clientFactoryNotConfiguredMessageConstant = "pull request service requires a client factory"
	interactionNotConfiguredMessageConstant   = "pull request service requires an interaction surface"
	browserNotConfiguredMessageConstant       = "pull request service requires a browser opener"

	logFieldRepositoryHostConstant    = "repository_host"
	logFieldRepositoryIDConstant      = "repository_id"
	logFieldBranchConstant            = "branch"
	logFieldTargetBranchConstant      = "target_branch"
	logFieldPullRequestNumberConstant = "pull_request_number"
	logFieldStepsConstant             = "steps"
	logFieldStatusCodeConstant        = "status_code"
	logFieldURLConstant               = "url"
	publishingLogMessageConstant      = "Publishing branch"
	createdLogMessageConstant         = "Pull request created"
	creationFailedLogMessageConstant  = "Pull request creation failed"
	checkoutLogMessageConstant        = "Checking out pull request"
	browserFailedLogMessageConstant   = "Unable to open browser"
)

var (
	// ErrRepositoryNotConfigured indicates a missing repository inspector.
	ErrRepositoryNotConfigured = errors.New(repositoryNotConfiguredMessageConstant)
	// ErrClientFactoryNotConfigured indicates a missing API client factory.
	ErrClientFactoryNotConfigured = errors.New(clientFactoryNotConfiguredMessageConstant)
	// ErrInteractionNotConfigured indicates a missing interaction surface.
	ErrInteractionNotConfigured = errors.New(interactionNotConfiguredMessageConstant)
	// ErrBrowserNotConfigured indicates a missing browser opener.
	ErrBrowserNotConfigured = errors.New(browserNotConfiguredMessageConstant)
	// ErrPullRequestNotSelected indicates the user dismissed the pull request selection.
	ErrPullRequestNotSelected = errors.New(pullRequestNotSelectedMessageConstant)
	// ErrNoOpenPullRequests indicates there was nothing to select from.
	ErrNoOpenPullRequests = errors.New(noOpenPullRequestsMessageConstant)
)

// RepositoryInspector reads and mutates the local repository.
type RepositoryInspector interface {
	CheckStatus(executionContext context.Context, targetBranch string) (gitrepo.RepositoryStatus, error)
	LastCommitMessage(executionContext context.Context) (string, error)
	ResolveRemote(executionContext context.Context, remoteName string) (gitrepo.RemoteDescriptor, error)
	CreateBranch(executionContext context.Context, branchName string) error
	CheckoutBranch(executionContext context.Context, branchName string) error
	CheckoutTrackingBranch(executionContext context.Context, remoteName string, branchName string) error
	StageFiles(executionContext context.Context, pathSpecs ...string) error
	Commit(executionContext context.Context, message string) error
	Push(executionContext context.Context, remoteName string, branchName string) error
	Fetch(executionContext context.Context, remoteName string, branchName string) error
	ListBranches(executionContext context.Context) (map[string]struct{}, error)
}

// PullRequestClient talks to the hosting API.
type PullRequestClient interface {
	CreatePullRequest(executionContext context.Context, request githubapi.NewPullRequest) (githubapi.PullRequestSummary, error)
	ListOpenPullRequests(executionContext context.Context, owner string, repository string) ([]githubapi.PullRequestSummary, error)
}

// ClientFactory builds an API client for resolved host credentials.
type ClientFactory func(credentials githubauth.HostCredentials) (PullRequestClient, error)

// Interaction prompts the user and presents notices.
type Interaction interface {
	PromptText(executionContext context.Context, prompt ui.TextPrompt) (string, error)
	SelectChoice(executionContext context.Context, prompt string, choices []ui.Choice) (int, bool, error)
	Confirm(executionContext context.Context, actionLabel string) (bool, error)
	ShowError(message string)
	ShowInfo(message string)
	SetStatus(message string)
}

// BrowserOpener opens web pages.
type BrowserOpener interface {
	OpenURL(executionContext context.Context, address string) error
}

// ServiceDependencies enumerates the collaborators of Service.
type ServiceDependencies struct {
	Logger            *zap.Logger
	Repository        RepositoryInspector
	ClientFactory     ClientFactory
	Interaction       Interaction
	Browser           BrowserOpener
	LookupEnvironment githubauth.EnvironmentLookup
}

// Service runs the open, view, checkout and list workflows.
type Service struct {
	logger            *zap.Logger
	repository        RepositoryInspector
	clientFactory     ClientFactory
	interaction       Interaction
	browser           BrowserOpener
	lookupEnvironment githubauth.EnvironmentLookup
	configuration     Configuration
}

// remoteSession carries what every workflow resolves before talking to the API.
type remoteSession struct {
	remote      gitrepo.RemoteDescriptor
	credentials githubauth.HostCredentials
	client      PullRequestClient
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies, configuration Configuration) (*Service, error) {
	if dependencies.Repository == nil {
		return nil, ErrRepositoryNotConfigured
	}
	if dependencies.ClientFactory == nil {
		return nil, ErrClientFactoryNotConfigured
	}
	if dependencies.Interaction == nil {
		return nil, ErrInteractionNotConfigured
	}
	if dependencies.Browser == nil {
		return nil, ErrBrowserNotConfigured
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		logger:            logger,
		repository:        dependencies.Repository,
		clientFactory:     dependencies.ClientFactory,
		interaction:       dependencies.Interaction,
		browser:           dependencies.Browser,
		lookupEnvironment: dependencies.LookupEnvironment,
		configuration:     configuration.Sanitize(),
	}, nil
}

// OpenPullRequest publishes the working branch and opens a pull request against the target branch.
func (service *Service) OpenPullRequest(executionContext context.Context) (githubapi.PullRequestSummary, error) {
	targetBranch := service.configuration.TargetBranch
	targetRemote := service.configuration.TargetRemote

	status, statusError := service.repository.CheckStatus(executionContext, targetBranch)
	if statusError != nil {
		return githubapi.PullRequestSummary{}, service.reportFailure(createFailedStatusConstant, statusError)
	}

	lastCommitMessage, commitError := service.repository.LastCommitMessage(executionContext)
	if commitError != nil {
		return githubapi.PullRequestSummary{}, service.reportFailure(createFailedStatusConstant, commitError)
	}

	session, sessionError := service.connect(executionContext, createFailedStatusConstant)
	if sessionError != nil {
		return githubapi.PullRequestSummary{}, sessionError
	}

	branchDefault := status.CurrentBranch
	if status.OnTargetBranch {
		branchDefault = ""
	}
	branchName, branchError := service.interaction.PromptText(executionContext, ui.TextPrompt{
		Message: branchPromptMessageConstant,
		Default: branchDefault,
	})
	if branchError != nil {
		return githubapi.PullRequestSummary{}, service.reportFailure(createFailedStatusConstant, branchError)
	}
	if validationError := ValidateBranchName(branchName, targetBranch); validationError != nil {
		return githubapi.PullRequestSummary{}, service.reportFailure(createFailedStatusConstant, validationError)
	}

	commitDefault := ""
	if status.Clean {
		commitDefault = lastCommitMessage
	}
	commitMessage, messageError := service.interaction.PromptText(executionContext, ui.TextPrompt{
		Message:     commitPromptMessageConstant,
		Placeholder: commitPromptPlaceholderConstant,
		Default:     commitDefault,
	})
	if messageError != nil {
		return githubapi.PullRequestSummary{}, service.reportFailure(createFailedStatusConstant, messageError)
	}
	if validationError := ValidateCommitMessage(commitMessage); validationError != nil {
		return githubapi.PullRequestSummary{}, service.reportFailure(createFailedStatusConstant, validationError)
	}

	service.interaction.SetStatus(prefixUserMessage(fmt.Sprintf(buildingStatusTemplateConstant, targetBranch, branchName)))

	steps := PlanMutations(status, branchName)
	service.logger.Info(publishingLogMessageConstant,
		zap.String(logFieldRepositoryHostConstant, session.remote.Host),
		zap.String(logFieldRepositoryIDConstant, session.remote.RepositoryID),
		zap.String(logFieldBranchConstant, branchName),
		zap.String(logFieldTargetBranchConstant, targetBranch),
		zap.Strings(logFieldStepsConstant, stepNames(steps)),
	)
	for _, step := range steps {
		if stepError := service.applyStep(executionContext, step, targetRemote, branchName, commitMessage); stepError != nil {
			return githubapi.PullRequestSummary{}, service.reportFailure(createFailedStatusConstant, stepError)
		}
	}

	summary, creationError := session.client.CreatePullRequest(executionContext, githubapi.NewPullRequest{
		Owner:      session.remote.Owner(),
		Repository: session.remote.Name(),
		Title:      commitMessage,
		Head:       branchName,
		Base:       targetBranch,
	})
	if creationError != nil {
		return githubapi.PullRequestSummary{}, service.handleCreationFailure(executionContext, session, branchName, creationError)
	}

	service.logger.Info(createdLogMessageConstant,
		zap.String(logFieldRepositoryIDConstant, session.remote.RepositoryID),
		zap.Int(logFieldPullRequestNumberConstant, summary.Number),
		zap.String(logFieldURLConstant, summary.URL),
	)

	createdMessage := prefixUserMessage(fmt.Sprintf(createdStatusTemplateConstant, summary.Number))
	service.interaction.ShowInfo(createdMessage)
	if service.configuration.AutoOpenPullRequest {
		service.openInBrowser(executionContext, summary.URL)
		return summary, nil
	}
	if confirmError := service.offerToOpen(executionContext, openPullRequestActionConstant, summary.URL); confirmError != nil {
		return summary, confirmError
	}
	return summary, nil
}

// ViewPullRequest lets the user pick an open pull request and opens it in the browser.
func (service *Service) ViewPullRequest(executionContext context.Context) (githubapi.PullRequestSummary, error) {
	summary, selectionError := service.selectPullRequest(executionContext, viewFailedStatusConstant)
	if selectionError != nil {
		return githubapi.PullRequestSummary{}, selectionError
	}
	if openError := service.browser.OpenURL(executionContext, summary.URL); openError != nil {
		return summary, service.reportFailure(viewFailedStatusConstant, openError)
	}
	return summary, nil
}

// CheckoutPullRequest lets the user pick an open pull request and switches to its head branch.
func (service *Service) CheckoutPullRequest(executionContext context.Context) (githubapi.PullRequestSummary, error) {
	summary, selectionError := service.selectPullRequest(executionContext, checkoutFailedStatusConstant)
	if selectionError != nil {
		return githubapi.PullRequestSummary{}, selectionError
	}

	targetRemote := service.configuration.TargetRemote
	branchName := summary.HeadRef
	service.interaction.SetStatus(prefixUserMessage(fmt.Sprintf(checkingOutStatusTemplateConstant, summary.Number)))
	service.logger.Info(checkoutLogMessageConstant,
		zap.Int(logFieldPullRequestNumberConstant, summary.Number),
		zap.String(logFieldBranchConstant, branchName),
	)

	localBranches, listError := service.repository.ListBranches(executionContext)
	if listError != nil {
		return summary, service.reportFailure(checkoutFailedStatusConstant, listError)
	}

	if _, exists := localBranches[branchName]; exists {
		if checkoutError := service.repository.CheckoutBranch(executionContext, branchName); checkoutError != nil {
			return summary, service.reportFailure(checkoutFailedStatusConstant, checkoutError)
		}
	} else {
		if fetchError := service.repository.Fetch(executionContext, targetRemote, branchName); fetchError != nil {
			return summary, service.reportFailure(checkoutFailedStatusConstant, fetchError)
		}
		if checkoutError := service.repository.CheckoutTrackingBranch(executionContext, targetRemote, branchName); checkoutError != nil {
			return summary, service.reportFailure(checkoutFailedStatusConstant, checkoutError)
		}
	}

	service.interaction.ShowInfo(prefixUserMessage(fmt.Sprintf(switchedStatusTemplateConstant, summary.Number)))
	return summary, nil
}

// ListPullRequests returns the open pull requests of the repository behind the target remote.
func (service *Service) ListPullRequests(executionContext context.Context) ([]githubapi.PullRequestSummary, error) {
	return service.listPullRequests(executionContext, listFailedStatusConstant)
}

// BuildChoices converts pull requests into selectable entries. The base branch is shown only when it differs from targetBranch.
func BuildChoices(summaries []githubapi.PullRequestSummary, targetBranch string) []ui.Choice {
	choices := make([]ui.Choice, 0, len(summaries))
	for _, summary := range summaries {
		description := summary.HeadRef
		if summary.BaseRef != targetBranch {
			description += fmt.Sprintf(choiceBaseSuffixTemplateConstant, summary.BaseRef)
		}
		choices = append(choices, ui.Choice{
			Label:       fmt.Sprintf(choiceLabelTemplateConstant, summary.Number, summary.Title),
			Description: description,
			Detail:      summary.Body,
		})
	}
	return choices
}

// CompareURL returns the web page that creates a pull request from head into base.
func CompareURL(webURL string, remote gitrepo.RemoteDescriptor, base string, head string) string {
	return fasttemplate.ExecuteString(compareURLTemplateConstant, templateStartTagConstant, templateEndTagConstant, map[string]interface{}{
		webURLTemplateKeyConstant:     strings.TrimSuffix(webURL, "/"),
		ownerTemplateKeyConstant:      remote.Owner(),
		repositoryTemplateKeyConstant: remote.Name(),
		baseTemplateKeyConstant:       base,
		headTemplateKeyConstant:       head,
	})
}

func (service *Service) listPullRequests(executionContext context.Context, failureStatus string) ([]githubapi.PullRequestSummary, error) {
	session, sessionError := service.connect(executionContext, failureStatus)
	if sessionError != nil {
		return nil, sessionError
	}
	summaries, listError := session.client.ListOpenPullRequests(executionContext, session.remote.Owner(), session.remote.Name())
	if listError != nil {
		return nil, service.reportFailure(failureStatus, listError)
	}
	return summaries, nil
}

func (service *Service) selectPullRequest(executionContext context.Context, failureStatus string) (githubapi.PullRequestSummary, error) {
	summaries, listError := service.listPullRequests(executionContext, failureStatus)
	if listError != nil {
		return githubapi.PullRequestSummary{}, listError
	}
	if len(summaries) == 0 {
		service.interaction.ShowInfo(prefixUserMessage(noOpenPullRequestsMessageConstant))
		return githubapi.PullRequestSummary{}, ui.MarkReported(ErrNoOpenPullRequests)
	}

	selectedIndex, selected, selectionError := service.interaction.SelectChoice(
		executionContext,
		selectPullRequestPromptConstant,
		BuildChoices(summaries, service.configuration.TargetBranch),
	)
	if selectionError != nil {
		return githubapi.PullRequestSummary{}, service.reportFailure(failureStatus, selectionError)
	}
	if !selected || selectedIndex < 0 || selectedIndex >= len(summaries) {
		return githubapi.PullRequestSummary{}, service.reportFailure(failureStatus, ErrPullRequestNotSelected)
	}
	return summaries[selectedIndex], nil
}

// connect resolves the target remote, its host credentials and an API client.
func (service *Service) connect(executionContext context.Context, failureStatus string) (remoteSession, error) {
	remote, remoteError := service.repository.ResolveRemote(executionContext, service.configuration.TargetRemote)
	if remoteError != nil {
		return remoteSession{}, service.reportFailure(failureStatus, remoteError)
	}

	resolver := githubauth.CredentialResolver{
		PublicToken:       service.configuration.AccessToken,
		HostTokens:        service.configuration.AccessTokens,
		LookupEnvironment: service.lookupEnvironment,
	}
	credentials, credentialsError := resolver.Resolve(remote.Host)
	if credentialsError != nil {
		var missingTokenError githubauth.MissingTokenError
		if errors.As(credentialsError, &missingTokenError) {
			return remoteSession{}, service.guideTokenSetup(executionContext, failureStatus, missingTokenError)
		}
		return remoteSession{}, service.reportFailure(failureStatus, credentialsError)
	}

	client, clientError := service.clientFactory(credentials)
	if clientError != nil {
		return remoteSession{}, service.reportFailure(failureStatus, clientError)
	}

	return remoteSession{remote: remote, credentials: credentials, client: client}, nil
}

func (service *Service) applyStep(executionContext context.Context, step MutationStep, remoteName string, branchName string, commitMessage string) error {
	switch step {
	case StepCreateBranch:
		return service.repository.CreateBranch(executionContext, branchName)
	case StepStageAll:
		return service.repository.StageFiles(executionContext)
	case StepCommit:
		return service.repository.Commit(executionContext, commitMessage)
	case StepPush:
		return service.repository.Push(executionContext, remoteName, branchName)
	default:
		return fmt.Errorf(unknownMutationStepTemplateConstant, step)
	}
}

// handleCreationFailure explains a rejected creation and offers the manual compare page or token page.
func (service *Service) handleCreationFailure(executionContext context.Context, session remoteSession, branchName string, creationError error) error {
	compareURL := CompareURL(session.credentials.WebURL, session.remote, service.configuration.TargetBranch, branchName)

	var pullRequestError githubapi.PullRequestCreationError
	classified := errors.As(creationError, &pullRequestError)
	service.logger.Warn(creationFailedLogMessageConstant,
		zap.String(logFieldRepositoryIDConstant, session.remote.RepositoryID),
		zap.String(logFieldBranchConstant, branchName),
		zap.Int(logFieldStatusCodeConstant, pullRequestError.StatusCode),
		zap.Error(creationError),
	)

	service.interaction.SetStatus(prefixUserMessage(createFailedStatusConstant))
	switch {
	case classified && pullRequestError.AlreadyExists():
		service.interaction.ShowError(prefixUserMessage(fmt.Sprintf(alreadyExistsMessageTemplateConstant, branchName)))
	case classified && pullRequestError.Unauthorized():
		service.interaction.ShowError(prefixUserMessage(fmt.Sprintf(unauthorizedMessageTemplateConstant, session.credentials.WebURL)))
		if offerError := service.offerToOpen(executionContext, generateAccessTokenActionConstant, githubauth.TokenSettingsURL(session.credentials.WebURL)); offerError != nil {
			return offerError
		}
		return ui.MarkReported(creationError)
	default:
		service.interaction.ShowError(prefixUserMessage(fmt.Sprintf(creationFailureMessageTemplateConstant, creationError)))
	}

	if offerError := service.offerToOpen(executionContext, createOnGitHubActionConstant, compareURL); offerError != nil {
		return offerError
	}
	return ui.MarkReported(creationError)
}

func (service *Service) guideTokenSetup(executionContext context.Context, failureStatus string, tokenError githubauth.MissingTokenError) error {
	service.interaction.ShowError(prefixUserMessage(tokenError.Error()))
	service.interaction.SetStatus(prefixUserMessage(failureStatus))
	if offerError := service.offerToOpen(executionContext, generateAccessTokenActionConstant, tokenError.TokenSettingsURL); offerError != nil {
		return offerError
	}
	return ui.MarkReported(tokenError)
}

func (service *Service) offerToOpen(executionContext context.Context, actionLabel string, address string) error {
	accepted, confirmError := service.interaction.Confirm(executionContext, actionLabel)
	if confirmError != nil {
		return confirmError
	}
	if accepted {
		service.openInBrowser(executionContext, address)
	}
	return nil
}

func (service *Service) openInBrowser(executionContext context.Context, address string) {
	if openError := service.browser.OpenURL(executionContext, address); openError != nil {
		service.logger.Warn(browserFailedLogMessageConstant, zap.String(logFieldURLConstant, address), zap.Error(openError))
		service.interaction.ShowInfo(address)
	}
}

// reportFailure presents err with the workflow failure status and marks it as reported.
func (service *Service) reportFailure(failureStatus string, err error) error {
	service.interaction.ShowError(prefixUserMessage(err.Error()))
	service.interaction.SetStatus(prefixUserMessage(failureStatus))
	return ui.MarkReported(err)
}

func prefixUserMessage(message string) string {
	return userMessagePrefixConstant + message
}

func stepNames(steps []MutationStep) []string {
	names := make([]string, len(steps))
	for index, step := range steps {
		names[index] = string(step)
	}
	return names
}
