package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v68/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// PublicAPIBaseURL is the REST endpoint of the public GitHub instance.
	PublicAPIBaseURL = "https://api.github.com/"

	openPullRequestStateConstant      = "open"
	pullRequestsPerPageConstant       = 100
	apiBaseURLRequiredMessageConstant = "api base url must be provided"
	enterpriseURLTemplateConstant     = "configure enterprise api url %s: %w"
	listOperationTemplateConstant     = "list open pull requests for %s/%s"
	operationErrorTemplateConstant    = "%s: %v"
	creationErrorTemplateConstant     = "unable to create pull request: %v"
	alreadyExistsMarkerConstant       = "already exists"
	repositoryLogFieldConstant        = "repository"
	pullRequestLogFieldConstant       = "pull_request_number"
	pullRequestCountLogFieldConstant  = "pull_request_count"
	apiBaseURLLogFieldConstant        = "api_base_url"
	createdLogMessageConstant         = "Created pull request"
	listedLogMessageConstant          = "Listed open pull requests"
	repositoryLogTemplateConstant     = "%s/%s"
)

// ErrAPIBaseURLRequired indicates the client configuration lacked an API base URL.
var ErrAPIBaseURLRequired = errors.New(apiBaseURLRequiredMessageConstant)

// PullRequestSummary is the subset of pull request data the workflow consumes.
type PullRequestSummary struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HeadRef string `json:"head"`
	BaseRef string `json:"base"`
	URL     string `json:"url"`
	Body    string `json:"body,omitempty"`
}

// NewPullRequest describes a pull request to open.
type NewPullRequest struct {
	Owner      string
	Repository string
	Title      string
	Head       string
	Base       string
	Body       string
}

// PullRequestCreationError reports a rejected pull request creation.
type PullRequestCreationError struct {
	StatusCode int
	Messages   []string
	Cause      error
}

// Error describes the rejection.
func (creationError PullRequestCreationError) Error() string {
	return fmt.Sprintf(creationErrorTemplateConstant, creationError.Cause)
}

// Unwrap exposes the underlying cause.
func (creationError PullRequestCreationError) Unwrap() error {
	return creationError.Cause
}

// AlreadyExists reports whether GitHub rejected the request because a pull request for the head already exists.
func (creationError PullRequestCreationError) AlreadyExists() bool {
	if creationError.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	for _, message := range creationError.Messages {
		if strings.Contains(strings.ToLower(message), alreadyExistsMarkerConstant) {
			return true
		}
	}
	return false
}

// Unauthorized reports whether the token was rejected.
func (creationError PullRequestCreationError) Unauthorized() bool {
	return creationError.StatusCode == http.StatusUnauthorized || creationError.StatusCode == http.StatusForbidden
}

// OperationError reports a failed API call other than pull request creation.
type OperationError struct {
	Operation string
	Cause     error
}

// Error describes the failed call.
func (operationError OperationError) Error() string {
	return fmt.Sprintf(operationErrorTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ClientConfiguration configures a Client.
type ClientConfiguration struct {
	APIBaseURL string
	Token      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client calls the GitHub REST API for pull request operations.
type Client struct {
	githubClient *github.Client
	logger       *zap.Logger
}

// NewClient builds an authenticated client. Hosts other than the public API use enterprise URLs.
func NewClient(configuration ClientConfiguration) (*Client, error) {
	apiBaseURL := strings.TrimSpace(configuration.APIBaseURL)
	if len(apiBaseURL) == 0 {
		return nil, ErrAPIBaseURLRequired
	}

	baseHTTPClient := configuration.HTTPClient
	if baseHTTPClient == nil {
		baseHTTPClient = &http.Client{}
	}
	tokenContext := context.WithValue(context.Background(), oauth2.HTTPClient, baseHTTPClient)
	authenticatedHTTPClient := oauth2.NewClient(tokenContext, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: configuration.Token}))
	authenticatedHTTPClient.Timeout = baseHTTPClient.Timeout

	githubClient := github.NewClient(authenticatedHTTPClient)
	if apiBaseURL != PublicAPIBaseURL {
		enterpriseClient, enterpriseError := githubClient.WithEnterpriseURLs(apiBaseURL, apiBaseURL)
		if enterpriseError != nil {
			return nil, fmt.Errorf(enterpriseURLTemplateConstant, apiBaseURL, enterpriseError)
		}
		githubClient = enterpriseClient
	}

	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{githubClient: githubClient, logger: logger.With(zap.String(apiBaseURLLogFieldConstant, githubClient.BaseURL.String()))}, nil
}

// CreatePullRequest opens a pull request.
func (client *Client) CreatePullRequest(executionContext context.Context, request NewPullRequest) (PullRequestSummary, error) {
	createdPullRequest, response, creationError := client.githubClient.PullRequests.Create(executionContext, request.Owner, request.Repository, &github.NewPullRequest{
		Title: github.Ptr(request.Title),
		Head:  github.Ptr(request.Head),
		Base:  github.Ptr(request.Base),
		Body:  github.Ptr(request.Body),
	})
	if creationError != nil {
		return PullRequestSummary{}, newPullRequestCreationError(response, creationError)
	}

	summary := summarizePullRequest(createdPullRequest)
	client.logger.Info(createdLogMessageConstant,
		zap.String(repositoryLogFieldConstant, fmt.Sprintf(repositoryLogTemplateConstant, request.Owner, request.Repository)),
		zap.Int(pullRequestLogFieldConstant, summary.Number),
	)
	return summary, nil
}

// ListOpenPullRequests returns every open pull request of the repository, following pagination.
func (client *Client) ListOpenPullRequests(executionContext context.Context, owner string, repository string) ([]PullRequestSummary, error) {
	listOptions := &github.PullRequestListOptions{
		State:       openPullRequestStateConstant,
		ListOptions: github.ListOptions{PerPage: pullRequestsPerPageConstant},
	}

	summaries := []PullRequestSummary{}
	for {
		pullRequests, response, listError := client.githubClient.PullRequests.List(executionContext, owner, repository, listOptions)
		if listError != nil {
			return nil, OperationError{Operation: fmt.Sprintf(listOperationTemplateConstant, owner, repository), Cause: listError}
		}
		for _, pullRequest := range pullRequests {
			summaries = append(summaries, summarizePullRequest(pullRequest))
		}
		if response == nil || response.NextPage == 0 {
			break
		}
		listOptions.Page = response.NextPage
	}

	client.logger.Debug(listedLogMessageConstant,
		zap.String(repositoryLogFieldConstant, fmt.Sprintf(repositoryLogTemplateConstant, owner, repository)),
		zap.Int(pullRequestCountLogFieldConstant, len(summaries)),
	)
	return summaries, nil
}

func summarizePullRequest(pullRequest *github.PullRequest) PullRequestSummary {
	return PullRequestSummary{
		Number:  pullRequest.GetNumber(),
		Title:   pullRequest.GetTitle(),
		HeadRef: pullRequest.GetHead().GetRef(),
		BaseRef: pullRequest.GetBase().GetRef(),
		URL:     pullRequest.GetHTMLURL(),
		Body:    pullRequest.GetBody(),
	}
}

func newPullRequestCreationError(response *github.Response, cause error) PullRequestCreationError {
	creationError := PullRequestCreationError{Cause: cause}
	if response != nil && response.Response != nil {
		creationError.StatusCode = response.StatusCode
	}

	var errorResponse *github.ErrorResponse
	if errors.As(cause, &errorResponse) {
		if errorResponse.Response != nil && creationError.StatusCode == 0 {
			creationError.StatusCode = errorResponse.Response.StatusCode
		}
		if len(errorResponse.Message) > 0 {
			creationError.Messages = append(creationError.Messages, errorResponse.Message)
		}
		for _, detail := range errorResponse.Errors {
			if len(detail.Message) > 0 {
				creationError.Messages = append(creationError.Messages, detail.Message)
			}
		}
	}
	return creationError
}
