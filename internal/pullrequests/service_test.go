package pullrequests_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/ghpr/internal/githubapi"
	"github.com/temirov/ghpr/internal/githubauth"
	"github.com/temirov/ghpr/internal/gitrepo"
	"github.com/temirov/ghpr/internal/pullrequests"
	"github.com/temirov/ghpr/internal/ui"
)

const (
	testPublicHostConstant       = "github.com"
	testRepositoryIDConstant     = "jasonnutter/vscode-github-pr-test"
	testAccessTokenConstant      = "public-token"
	testLastCommitConstant       = "Add status bar"
	testPullRequestURLConstant   = "https://github.com/jasonnutter/vscode-github-pr-test/pull/12"
	testCompareURLConstant       = "https://github.com/jasonnutter/vscode-github-pr-test/compare/master...feature-x"
	testTokenSettingsURLConstant = "https://github.com/settings/tokens"
	testCreatedMessageConstant   = "GitHub PR: PR #12 created."
	testCreateFailedConstant     = "GitHub PR: Unable to create PR."
	testOpenActionConstant       = "Open PR"
	testCreateActionConstant     = "Create on GitHub"
	testTokenActionConstant      = "Generate Access Token"
)

type stubRepository struct {
	status        gitrepo.RepositoryStatus
	statusError   error
	lastCommit    string
	remote        gitrepo.RemoteDescriptor
	remoteError   error
	localBranches map[string]struct{}
	failures      map[string]error
	calls         []string
}

func (repository *stubRepository) record(call string) error {
	repository.calls = append(repository.calls, call)
	return repository.failures[call]
}

func (repository *stubRepository) CheckStatus(executionContext context.Context, targetBranch string) (gitrepo.RepositoryStatus, error) {
	repository.calls = append(repository.calls, "status "+targetBranch)
	return repository.status, repository.statusError
}

func (repository *stubRepository) LastCommitMessage(executionContext context.Context) (string, error) {
	return repository.lastCommit, repository.record("last-commit")
}

func (repository *stubRepository) ResolveRemote(executionContext context.Context, remoteName string) (gitrepo.RemoteDescriptor, error) {
	repository.calls = append(repository.calls, "remote "+remoteName)
	return repository.remote, repository.remoteError
}

func (repository *stubRepository) CreateBranch(executionContext context.Context, branchName string) error {
	return repository.record("create-branch " + branchName)
}

func (repository *stubRepository) CheckoutBranch(executionContext context.Context, branchName string) error {
	return repository.record("checkout " + branchName)
}

func (repository *stubRepository) CheckoutTrackingBranch(executionContext context.Context, remoteName string, branchName string) error {
	return repository.record(fmt.Sprintf("checkout-tracking %s/%s", remoteName, branchName))
}

func (repository *stubRepository) StageFiles(executionContext context.Context, pathSpecs ...string) error {
	return repository.record("stage-all")
}

func (repository *stubRepository) Commit(executionContext context.Context, message string) error {
	return repository.record("commit " + message)
}

func (repository *stubRepository) Push(executionContext context.Context, remoteName string, branchName string) error {
	return repository.record(fmt.Sprintf("push %s %s", remoteName, branchName))
}

func (repository *stubRepository) Fetch(executionContext context.Context, remoteName string, branchName string) error {
	return repository.record(fmt.Sprintf("fetch %s %s", remoteName, branchName))
}

func (repository *stubRepository) ListBranches(executionContext context.Context) (map[string]struct{}, error) {
	return repository.localBranches, repository.record("list-branches")
}

type stubClient struct {
	created        githubapi.PullRequestSummary
	creationError  error
	listed         []githubapi.PullRequestSummary
	listError      error
	createRequests []githubapi.NewPullRequest
}

func (client *stubClient) CreatePullRequest(executionContext context.Context, request githubapi.NewPullRequest) (githubapi.PullRequestSummary, error) {
	client.createRequests = append(client.createRequests, request)
	return client.created, client.creationError
}

func (client *stubClient) ListOpenPullRequests(executionContext context.Context, owner string, repository string) ([]githubapi.PullRequestSummary, error) {
	return client.listed, client.listError
}

type stubInteraction struct {
	textAnswers     []string
	inputClosed     bool
	prompts         []ui.TextPrompt
	selectedIndex   int
	selected        bool
	offeredChoices  []ui.Choice
	confirmAnswers  map[string]bool
	confirmedLabels []string
	errorMessages   []string
	infoMessages    []string
	statusMessages  []string
}

func (interaction *stubInteraction) PromptText(executionContext context.Context, prompt ui.TextPrompt) (string, error) {
	interaction.prompts = append(interaction.prompts, prompt)
	if len(interaction.textAnswers) == 0 {
		if interaction.inputClosed {
			return "", ui.ErrInputClosed
		}
		return prompt.Default, nil
	}
	answer := interaction.textAnswers[0]
	interaction.textAnswers = interaction.textAnswers[1:]
	if len(answer) == 0 {
		return prompt.Default, nil
	}
	return answer, nil
}

func (interaction *stubInteraction) SelectChoice(executionContext context.Context, prompt string, choices []ui.Choice) (int, bool, error) {
	interaction.offeredChoices = choices
	if !interaction.selected {
		return -1, false, nil
	}
	return interaction.selectedIndex, true, nil
}

func (interaction *stubInteraction) Confirm(executionContext context.Context, actionLabel string) (bool, error) {
	interaction.confirmedLabels = append(interaction.confirmedLabels, actionLabel)
	return interaction.confirmAnswers[actionLabel], nil
}

func (interaction *stubInteraction) ShowError(message string) {
	interaction.errorMessages = append(interaction.errorMessages, message)
}

func (interaction *stubInteraction) ShowInfo(message string) {
	interaction.infoMessages = append(interaction.infoMessages, message)
}

func (interaction *stubInteraction) SetStatus(message string) {
	interaction.statusMessages = append(interaction.statusMessages, message)
}

type stubBrowser struct {
	openedURLs []string
}

func (browser *stubBrowser) OpenURL(executionContext context.Context, address string) error {
	browser.openedURLs = append(browser.openedURLs, address)
	return nil
}

type serviceFixture struct {
	repository         *stubRepository
	client             *stubClient
	interaction        *stubInteraction
	browser            *stubBrowser
	configuration      pullrequests.Configuration
	requestedHosts     []githubauth.HostCredentials
	environmentEntries map[string]string
}

func newServiceFixture() *serviceFixture {
	return &serviceFixture{
		repository: &stubRepository{
			status:     gitrepo.RepositoryStatus{CurrentBranch: testTargetBranchConstant, OnTargetBranch: true, Clean: true},
			lastCommit: testLastCommitConstant,
			remote:     gitrepo.RemoteDescriptor{Host: testPublicHostConstant, RepositoryID: testRepositoryIDConstant},
			failures:   map[string]error{},
		},
		client: &stubClient{
			created: githubapi.PullRequestSummary{Number: 12, Title: testLastCommitConstant, URL: testPullRequestURLConstant},
		},
		interaction:   &stubInteraction{confirmAnswers: map[string]bool{}},
		browser:       &stubBrowser{},
		configuration: pullrequests.Configuration{AccessToken: testAccessTokenConstant},
	}
}

func (fixture *serviceFixture) build(testInstance *testing.T, logger *zap.Logger) *pullrequests.Service {
	testInstance.Helper()
	service, serviceError := pullrequests.NewService(pullrequests.ServiceDependencies{
		Logger:     logger,
		Repository: fixture.repository,
		ClientFactory: func(credentials githubauth.HostCredentials) (pullrequests.PullRequestClient, error) {
			fixture.requestedHosts = append(fixture.requestedHosts, credentials)
			return fixture.client, nil
		},
		Interaction: fixture.interaction,
		Browser:     fixture.browser,
		LookupEnvironment: func(key string) (string, bool) {
			value, exists := fixture.environmentEntries[key]
			return value, exists
		},
	}, fixture.configuration)
	require.NoError(testInstance, serviceError)
	return service
}

func TestOpenPullRequestOnTargetBranchWithCleanTree(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.interaction.textAnswers = []string{testFeatureBranchConstant, ""}
	fixture.interaction.confirmAnswers[testOpenActionConstant] = true

	observerCore, observedLogs := observer.New(zapcore.InfoLevel)
	summary, openError := fixture.build(testInstance, zap.New(observerCore)).OpenPullRequest(context.Background())
	require.NoError(testInstance, openError)
	require.Equal(testInstance, 12, summary.Number)

	require.Equal(testInstance, []string{
		"status master",
		"last-commit",
		"remote origin",
		"create-branch feature-x",
		"push origin feature-x",
	}, fixture.repository.calls)

	require.Len(testInstance, fixture.interaction.prompts, 2)
	require.Empty(testInstance, fixture.interaction.prompts[0].Default)
	require.Equal(testInstance, testLastCommitConstant, fixture.interaction.prompts[1].Default)

	require.Equal(testInstance, []githubapi.NewPullRequest{{
		Owner:      "jasonnutter",
		Repository: "vscode-github-pr-test",
		Title:      testLastCommitConstant,
		Head:       testFeatureBranchConstant,
		Base:       testTargetBranchConstant,
	}}, fixture.client.createRequests)

	require.Len(testInstance, fixture.requestedHosts, 1)
	require.Equal(testInstance, githubapi.PublicAPIBaseURL, fixture.requestedHosts[0].APIBaseURL)
	require.Equal(testInstance, testAccessTokenConstant, fixture.requestedHosts[0].Token)

	require.Equal(testInstance, []string{"GitHub PR: Building PR to master from feature-x..."}, fixture.interaction.statusMessages)
	require.Equal(testInstance, []string{testCreatedMessageConstant}, fixture.interaction.infoMessages)
	require.Equal(testInstance, []string{testOpenActionConstant}, fixture.interaction.confirmedLabels)
	require.Equal(testInstance, []string{testPullRequestURLConstant}, fixture.browser.openedURLs)
	require.Empty(testInstance, fixture.interaction.errorMessages)

	require.Equal(testInstance, 1, observedLogs.FilterMessage("Publishing branch").Len())
	require.Equal(testInstance, 1, observedLogs.FilterMessage("Pull request created").Len())
}

func TestOpenPullRequestMutationSequences(testInstance *testing.T) {
	testCases := []struct {
		name             string
		status           gitrepo.RepositoryStatus
		textAnswers      []string
		expectedCommit   string
		expectedMutation []string
	}{
		{
			name:           "on_target_dirty",
			status:         gitrepo.RepositoryStatus{CurrentBranch: testTargetBranchConstant, OnTargetBranch: true},
			textAnswers:    []string{testFeatureBranchConstant, "Wire status bar"},
			expectedCommit: "Wire status bar",
			expectedMutation: []string{
				"create-branch feature-x",
				"stage-all",
				"commit Wire status bar",
				"push origin feature-x",
			},
		},
		{
			name:             "on_feature_clean_accepts_defaults",
			status:           gitrepo.RepositoryStatus{CurrentBranch: testFeatureBranchConstant, Clean: true},
			textAnswers:      []string{"", ""},
			expectedCommit:   testLastCommitConstant,
			expectedMutation: []string{"push origin feature-x"},
		},
		{
			name:           "on_feature_dirty",
			status:         gitrepo.RepositoryStatus{CurrentBranch: testFeatureBranchConstant},
			textAnswers:    []string{"", "Wire status bar"},
			expectedCommit: "Wire status bar",
			expectedMutation: []string{
				"stage-all",
				"commit Wire status bar",
				"push origin feature-x",
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newServiceFixture()
			fixture.repository.status = testCase.status
			fixture.interaction.textAnswers = testCase.textAnswers

			_, openError := fixture.build(testInstance, nil).OpenPullRequest(context.Background())
			require.NoError(testInstance, openError)

			require.Equal(testInstance, testCase.expectedMutation, fixture.repository.calls[3:])
			require.Len(testInstance, fixture.client.createRequests, 1)
			require.Equal(testInstance, testCase.expectedCommit, fixture.client.createRequests[0].Title)
			require.Empty(testInstance, fixture.browser.openedURLs)
		})
	}
}

func TestOpenPullRequestAutoOpensWhenConfigured(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.configuration.AutoOpenPullRequest = true
	fixture.interaction.textAnswers = []string{testFeatureBranchConstant, ""}

	_, openError := fixture.build(testInstance, nil).OpenPullRequest(context.Background())
	require.NoError(testInstance, openError)
	require.Empty(testInstance, fixture.interaction.confirmedLabels)
	require.Equal(testInstance, []string{testPullRequestURLConstant}, fixture.browser.openedURLs)
}

func TestOpenPullRequestRejectsInvalidInput(testInstance *testing.T) {
	testCases := []struct {
		name            string
		textAnswers     []string
		expectedMessage string
	}{
		{
			name:            "branch_defaults_to_empty_on_target",
			textAnswers:     []string{""},
			expectedMessage: "GitHub PR: Branch name must be provided.",
		},
		{
			name:            "branch_is_target",
			textAnswers:     []string{testTargetBranchConstant},
			expectedMessage: "GitHub PR: Branch name cannot be the default branch name (master).",
		},
		{
			name:            "branch_contains_spaces",
			textAnswers:     []string{"feature x"},
			expectedMessage: "GitHub PR: Branch name must not contain spaces.",
		},
		{
			name:            "commit_message_blank",
			textAnswers:     []string{testFeatureBranchConstant, "   "},
			expectedMessage: "GitHub PR: Commit message must be provided.",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newServiceFixture()
			fixture.repository.status.Clean = false
			fixture.interaction.textAnswers = testCase.textAnswers

			_, openError := fixture.build(testInstance, nil).OpenPullRequest(context.Background())
			require.Error(testInstance, openError)
			require.True(testInstance, ui.IsReported(openError))

			var validationError pullrequests.ValidationError
			require.True(testInstance, errors.As(openError, &validationError))

			require.Equal(testInstance, []string{"status master", "last-commit", "remote origin"}, fixture.repository.calls)
			require.Empty(testInstance, fixture.client.createRequests)
			require.Equal(testInstance, []string{testCase.expectedMessage}, fixture.interaction.errorMessages)
			require.Equal(testInstance, []string{testCreateFailedConstant}, fixture.interaction.statusMessages)
		})
	}
}

func TestOpenPullRequestStopsWhenInputCloses(testInstance *testing.T) {
	testCases := []struct {
		name            string
		textAnswers     []string
		expectedPrompts int
	}{
		{name: "branch_prompt", expectedPrompts: 1},
		{name: "commit_prompt", textAnswers: []string{testFeatureBranchConstant}, expectedPrompts: 2},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newServiceFixture()
			fixture.repository.status = gitrepo.RepositoryStatus{CurrentBranch: testFeatureBranchConstant, Clean: true}
			fixture.interaction.textAnswers = testCase.textAnswers
			fixture.interaction.inputClosed = true

			_, openError := fixture.build(testInstance, nil).OpenPullRequest(context.Background())
			require.ErrorIs(testInstance, openError, ui.ErrInputClosed)
			require.True(testInstance, ui.IsReported(openError))
			require.Len(testInstance, fixture.interaction.prompts, testCase.expectedPrompts)
			require.Equal(testInstance, []string{"status master", "last-commit", "remote origin"}, fixture.repository.calls)
			require.Empty(testInstance, fixture.client.createRequests)
			require.Equal(testInstance, []string{"GitHub PR: input closed before an answer was given"}, fixture.interaction.errorMessages)
			require.Equal(testInstance, []string{testCreateFailedConstant}, fixture.interaction.statusMessages)
		})
	}
}

func TestOpenPullRequestStopsOnRepositoryStateErrors(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.repository.statusError = gitrepo.ErrUnresolvedConflicts

	_, openError := fixture.build(testInstance, nil).OpenPullRequest(context.Background())
	require.ErrorIs(testInstance, openError, gitrepo.ErrUnresolvedConflicts)
	require.True(testInstance, ui.IsReported(openError))
	require.Equal(testInstance, []string{"status master"}, fixture.repository.calls)
	require.Empty(testInstance, fixture.interaction.prompts)
	require.Equal(testInstance, []string{"GitHub PR: " + gitrepo.ErrUnresolvedConflicts.Error()}, fixture.interaction.errorMessages)
}

func TestOpenPullRequestStopsAfterFailedMutation(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.interaction.textAnswers = []string{testFeatureBranchConstant, ""}
	pushFailure := gitrepo.OperationError{Operation: "push feature-x to origin", Cause: errors.New("rejected")}
	fixture.repository.failures["push origin feature-x"] = pushFailure

	_, openError := fixture.build(testInstance, nil).OpenPullRequest(context.Background())
	require.Error(testInstance, openError)
	require.True(testInstance, ui.IsReported(openError))

	var operationError gitrepo.OperationError
	require.True(testInstance, errors.As(openError, &operationError))
	require.Contains(testInstance, fixture.repository.calls, "create-branch feature-x")
	require.Empty(testInstance, fixture.client.createRequests)
	require.Equal(testInstance, []string{"GitHub PR: push feature-x to origin: rejected"}, fixture.interaction.errorMessages)
}

func TestOpenPullRequestGuidesMissingToken(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.configuration.AccessToken = ""
	fixture.interaction.confirmAnswers[testTokenActionConstant] = true

	_, openError := fixture.build(testInstance, nil).OpenPullRequest(context.Background())
	require.Error(testInstance, openError)
	require.True(testInstance, ui.IsReported(openError))

	var missingTokenError githubauth.MissingTokenError
	require.True(testInstance, errors.As(openError, &missingTokenError))
	require.Empty(testInstance, fixture.requestedHosts)
	require.Empty(testInstance, fixture.interaction.prompts)
	require.Equal(testInstance, []string{"GitHub PR: pull_requests.access_token is not set"}, fixture.interaction.errorMessages)
	require.Equal(testInstance, []string{testTokenActionConstant}, fixture.interaction.confirmedLabels)
	require.Equal(testInstance, []string{testTokenSettingsURLConstant}, fixture.browser.openedURLs)
}

func TestOpenPullRequestUsesEnvironmentTokenForPublicHost(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.configuration.AccessToken = ""
	fixture.environmentEntries = map[string]string{githubauth.EnvGitHubToken: "environment-token"}
	fixture.interaction.textAnswers = []string{testFeatureBranchConstant, ""}

	_, openError := fixture.build(testInstance, nil).OpenPullRequest(context.Background())
	require.NoError(testInstance, openError)
	require.Len(testInstance, fixture.requestedHosts, 1)
	require.Equal(testInstance, "environment-token", fixture.requestedHosts[0].Token)
}

func TestOpenPullRequestCreationFailures(testInstance *testing.T) {
	testCases := []struct {
		name            string
		creationError   error
		expectedMessage string
		expectedAction  string
		expectedURL     string
	}{
		{
			name: "already_exists",
			creationError: githubapi.PullRequestCreationError{
				StatusCode: http.StatusUnprocessableEntity,
				Messages:   []string{"A pull request already exists for jasonnutter:feature-x."},
				Cause:      errors.New("validation failed"),
			},
			expectedMessage: "GitHub PR: A pull request for feature-x already exists.",
			expectedAction:  testCreateActionConstant,
			expectedURL:     testCompareURLConstant,
		},
		{
			name: "unauthorized",
			creationError: githubapi.PullRequestCreationError{
				StatusCode: http.StatusUnauthorized,
				Cause:      errors.New("bad credentials"),
			},
			expectedMessage: "GitHub PR: The access token for https://github.com was rejected.",
			expectedAction:  testTokenActionConstant,
			expectedURL:     testTokenSettingsURLConstant,
		},
		{
			name:            "transport_failure",
			creationError:   errors.New("connection reset"),
			expectedMessage: "GitHub PR: Unable to create PR: connection reset",
			expectedAction:  testCreateActionConstant,
			expectedURL:     testCompareURLConstant,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newServiceFixture()
			fixture.client.creationError = testCase.creationError
			fixture.interaction.textAnswers = []string{testFeatureBranchConstant, ""}
			fixture.interaction.confirmAnswers[testCase.expectedAction] = true

			observerCore, observedLogs := observer.New(zapcore.WarnLevel)
			_, openError := fixture.build(testInstance, zap.New(observerCore)).OpenPullRequest(context.Background())
			require.Error(testInstance, openError)
			require.True(testInstance, ui.IsReported(openError))
			require.Equal(testInstance, testCase.creationError, errors.Unwrap(openError))

			require.Equal(testInstance, []string{testCase.expectedMessage}, fixture.interaction.errorMessages)
			require.Contains(testInstance, fixture.interaction.statusMessages, testCreateFailedConstant)
			require.Equal(testInstance, []string{testCase.expectedAction}, fixture.interaction.confirmedLabels)
			require.Equal(testInstance, []string{testCase.expectedURL}, fixture.browser.openedURLs)
			require.Equal(testInstance, 1, observedLogs.FilterMessage("Pull request creation failed").Len())
		})
	}
}

func TestOpenPullRequestDeclinedFallbackOpensNothing(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.client.creationError = errors.New("connection reset")
	fixture.interaction.textAnswers = []string{testFeatureBranchConstant, ""}

	_, openError := fixture.build(testInstance, nil).OpenPullRequest(context.Background())
	require.Error(testInstance, openError)
	require.Equal(testInstance, []string{testCreateActionConstant}, fixture.interaction.confirmedLabels)
	require.Empty(testInstance, fixture.browser.openedURLs)
}

func openPullRequestSummaries() []githubapi.PullRequestSummary {
	return []githubapi.PullRequestSummary{
		{Number: 12, Title: "Add status bar", HeadRef: "status-bar", BaseRef: testTargetBranchConstant, URL: testPullRequestURLConstant, Body: "Shows the current PR."},
		{Number: 9, Title: "Parse remotes", HeadRef: "remote-parsing", BaseRef: "develop", URL: "https://github.com/jasonnutter/vscode-github-pr-test/pull/9"},
	}
}

func TestViewPullRequestOpensSelection(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.client.listed = openPullRequestSummaries()
	fixture.interaction.selected = true
	fixture.interaction.selectedIndex = 1

	summary, viewError := fixture.build(testInstance, nil).ViewPullRequest(context.Background())
	require.NoError(testInstance, viewError)
	require.Equal(testInstance, 9, summary.Number)
	require.Equal(testInstance, []string{"https://github.com/jasonnutter/vscode-github-pr-test/pull/9"}, fixture.browser.openedURLs)
	require.Equal(testInstance, []string{"remote origin"}, fixture.repository.calls)

	require.Equal(testInstance, []ui.Choice{
		{Label: "PR #12: Add status bar", Description: "status-bar", Detail: "Shows the current PR."},
		{Label: "PR #9: Parse remotes", Description: "remote-parsing > develop"},
	}, fixture.interaction.offeredChoices)
}

func TestViewPullRequestWithoutSelection(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.client.listed = openPullRequestSummaries()

	_, viewError := fixture.build(testInstance, nil).ViewPullRequest(context.Background())
	require.ErrorIs(testInstance, viewError, pullrequests.ErrPullRequestNotSelected)
	require.True(testInstance, ui.IsReported(viewError))
	require.Empty(testInstance, fixture.browser.openedURLs)
	require.Equal(testInstance, []string{"GitHub PR: PR not selected."}, fixture.interaction.errorMessages)
	require.Equal(testInstance, []string{"GitHub PR: Unable to view PR."}, fixture.interaction.statusMessages)
}

func TestViewPullRequestWithoutOpenPullRequests(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.interaction.selected = true

	_, viewError := fixture.build(testInstance, nil).ViewPullRequest(context.Background())
	require.ErrorIs(testInstance, viewError, pullrequests.ErrNoOpenPullRequests)
	require.True(testInstance, ui.IsReported(viewError))
	require.Nil(testInstance, fixture.interaction.offeredChoices)
	require.Empty(testInstance, fixture.browser.openedURLs)
	require.Equal(testInstance, []string{"GitHub PR: No open pull requests."}, fixture.interaction.infoMessages)
	require.Empty(testInstance, fixture.interaction.errorMessages)
	require.Empty(testInstance, fixture.interaction.statusMessages)
}

func TestViewPullRequestReportsListingFailure(testInstance *testing.T) {
	fixture := newServiceFixture()
	listFailure := githubapi.OperationError{Operation: "list open pull requests for jasonnutter/vscode-github-pr-test", Cause: errors.New("not found")}
	fixture.client.listError = listFailure

	_, viewError := fixture.build(testInstance, nil).ViewPullRequest(context.Background())
	require.ErrorIs(testInstance, viewError, listFailure)
	require.Nil(testInstance, fixture.interaction.offeredChoices)
	require.Equal(testInstance, []string{"GitHub PR: list open pull requests for jasonnutter/vscode-github-pr-test: not found"}, fixture.interaction.errorMessages)
}

func TestCheckoutPullRequest(testInstance *testing.T) {
	testCases := []struct {
		name          string
		localBranches map[string]struct{}
		expectedCalls []string
	}{
		{
			name:          "existing_local_branch",
			localBranches: map[string]struct{}{"status-bar": {}, testTargetBranchConstant: {}},
			expectedCalls: []string{"remote origin", "list-branches", "checkout status-bar"},
		},
		{
			name:          "remote_only_branch",
			localBranches: map[string]struct{}{testTargetBranchConstant: {}},
			expectedCalls: []string{"remote origin", "list-branches", "fetch origin status-bar", "checkout-tracking origin/status-bar"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newServiceFixture()
			fixture.client.listed = openPullRequestSummaries()
			fixture.repository.localBranches = testCase.localBranches
			fixture.interaction.selected = true

			summary, checkoutError := fixture.build(testInstance, nil).CheckoutPullRequest(context.Background())
			require.NoError(testInstance, checkoutError)
			require.Equal(testInstance, 12, summary.Number)
			require.Equal(testInstance, testCase.expectedCalls, fixture.repository.calls)
			require.Equal(testInstance, []string{"GitHub PR: Checking out PR #12..."}, fixture.interaction.statusMessages)
			require.Equal(testInstance, []string{"GitHub PR: Switched to PR #12."}, fixture.interaction.infoMessages)
		})
	}
}

func TestCheckoutPullRequestReportsFetchFailure(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.client.listed = openPullRequestSummaries()
	fixture.repository.localBranches = map[string]struct{}{}
	fixture.repository.failures["fetch origin status-bar"] = errors.New("couldn't find remote ref status-bar")
	fixture.interaction.selected = true

	_, checkoutError := fixture.build(testInstance, nil).CheckoutPullRequest(context.Background())
	require.Error(testInstance, checkoutError)
	require.True(testInstance, ui.IsReported(checkoutError))
	require.NotContains(testInstance, fixture.repository.calls, "checkout-tracking origin/status-bar")
	require.Contains(testInstance, fixture.interaction.statusMessages, "GitHub PR: Unable to check out PR.")
}

func TestListPullRequestsResolvesEnterpriseHost(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.repository.remote = gitrepo.RemoteDescriptor{Host: "github.example.com", RepositoryID: "jasonnutter/test-repo"}
	fixture.configuration.AccessTokens = []githubauth.HostToken{{Host: "https://github.example.com", Token: "enterprise-token"}}
	fixture.client.listed = openPullRequestSummaries()

	summaries, listError := fixture.build(testInstance, nil).ListPullRequests(context.Background())
	require.NoError(testInstance, listError)
	require.Len(testInstance, summaries, 2)
	require.Len(testInstance, fixture.requestedHosts, 1)
	require.Equal(testInstance, "https://github.example.com/api/v3/", fixture.requestedHosts[0].APIBaseURL)
	require.Equal(testInstance, "enterprise-token", fixture.requestedHosts[0].Token)
}

func TestListPullRequestsReportsUnknownHost(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.repository.remote = gitrepo.RemoteDescriptor{Host: "git.internal", RepositoryID: "team/tool"}

	_, listError := fixture.build(testInstance, nil).ListPullRequests(context.Background())
	require.Error(testInstance, listError)

	var unknownHostError githubauth.UnknownHostError
	require.True(testInstance, errors.As(listError, &unknownHostError))
	require.Empty(testInstance, fixture.requestedHosts)
	require.Equal(testInstance, []string{"GitHub PR: Unable to list PRs."}, fixture.interaction.statusMessages)
}

func TestNewServiceRequiresDependencies(testInstance *testing.T) {
	fixture := newServiceFixture()
	clientFactory := func(credentials githubauth.HostCredentials) (pullrequests.PullRequestClient, error) {
		return fixture.client, nil
	}

	testCases := []struct {
		name          string
		dependencies  pullrequests.ServiceDependencies
		expectedError error
	}{
		{
			name:          "repository",
			dependencies:  pullrequests.ServiceDependencies{ClientFactory: clientFactory, Interaction: fixture.interaction, Browser: fixture.browser},
			expectedError: pullrequests.ErrRepositoryNotConfigured,
		},
		{
			name:          "client_factory",
			dependencies:  pullrequests.ServiceDependencies{Repository: fixture.repository, Interaction: fixture.interaction, Browser: fixture.browser},
			expectedError: pullrequests.ErrClientFactoryNotConfigured,
		},
		{
			name:          "interaction",
			dependencies:  pullrequests.ServiceDependencies{Repository: fixture.repository, ClientFactory: clientFactory, Browser: fixture.browser},
			expectedError: pullrequests.ErrInteractionNotConfigured,
		},
		{
			name:          "browser",
			dependencies:  pullrequests.ServiceDependencies{Repository: fixture.repository, ClientFactory: clientFactory, Interaction: fixture.interaction},
			expectedError: pullrequests.ErrBrowserNotConfigured,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, serviceError := pullrequests.NewService(testCase.dependencies, pullrequests.DefaultConfiguration())
			require.ErrorIs(testInstance, serviceError, testCase.expectedError)
		})
	}
}

func TestCompareURL(testInstance *testing.T) {
	remote := gitrepo.RemoteDescriptor{Host: "github.example.com", RepositoryID: "jasonnutter/test-repo"}
	require.Equal(testInstance,
		"http://github.example.com/jasonnutter/test-repo/compare/develop...feature-x",
		pullrequests.CompareURL("http://github.example.com/", remote, "develop", testFeatureBranchConstant),
	)
}
