package pullrequests

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ghpr/internal/browser"
	"github.com/temirov/ghpr/internal/execshell"
	"github.com/temirov/ghpr/internal/githubapi"
	"github.com/temirov/ghpr/internal/githubauth"
	"github.com/temirov/ghpr/internal/gitrepo"
	"github.com/temirov/ghpr/internal/ui"
	pathutils "github.com/temirov/ghpr/internal/utils/path"
)

const (
	openCommandUseConstant              = "open"
	openCommandShortDescriptionConstant = "Publish the current work and open a pull request"
	openCommandLongDescriptionConstant  = "open creates or reuses a branch, commits pending changes, pushes the branch and opens a pull request against the target branch."
	viewCommandUseConstant              = "view"
	viewCommandShortDescriptionConstant = "Open a pull request in the browser"
	viewCommandLongDescriptionConstant  = "view lists the open pull requests of the repository and opens the selected one in the default browser."
	checkoutCommandUseConstant          = "checkout"
	checkoutShortDescriptionConstant    = "Check out the branch of a pull request"
	checkoutLongDescriptionConstant     = "checkout lists the open pull requests of the repository and switches to the head branch of the selected one, fetching it when needed."
	listCommandUseConstant              = "list"
	listCommandShortDescriptionConstant = "List open pull requests"
	listCommandLongDescriptionConstant  = "list prints the open pull requests of the repository behind the target remote."

	repositoryFlagNameConstant        = "repository"
	repositoryFlagDescriptionConstant = "Path to the repository (overrides pull_requests.repository_path)"
	formatFlagNameConstant            = "format"
	formatFlagDescriptionConstant     = "Output format: text or json"
	formatTextConstant                = "text"
	formatJSONConstant                = "json"
	jsonIndentConstant                = "  "

	unexpectedArgumentsTemplateConstant    = "%s does not accept positional arguments"
	unsupportedFormatTemplateConstant      = "unsupported output format %q (expected text or json)"
	repositoryManagerErrorTemplateConstant = "unable to construct repository manager: %w"
	browserOpenerErrorTemplateConstant     = "unable to construct browser opener: %w"
	listOutputErrorTemplateConstant        = "unable to write pull request list: %w"

	numberColumnConstant = "NUMBER"
	titleColumnConstant  = "TITLE"
	headColumnConstant   = "HEAD"
	baseColumnConstant   = "BASE"
	urlColumnConstant    = "URL"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// InteractionFactory builds the interaction surface for a command invocation.
type InteractionFactory func(command *cobra.Command) Interaction

// CommandExecutor runs git and the browser launcher.
type CommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// CommandBuilder assembles the pull request commands.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() Configuration
	Executor                     CommandExecutor
	InteractionFactory           InteractionFactory
	ClientFactory                ClientFactory
	Browser                      BrowserOpener
	LookupEnvironment            githubauth.EnvironmentLookup
	HomeExpander                 *pathutils.HomeExpander
}

// BuildOpenCommand constructs the open command.
func (builder *CommandBuilder) BuildOpenCommand() (*cobra.Command, error) {
	return builder.buildCommand(openCommandUseConstant, openCommandShortDescriptionConstant, openCommandLongDescriptionConstant,
		func(command *cobra.Command, service *Service) error {
			_, openError := service.OpenPullRequest(command.Context())
			return openError
		}), nil
}

// BuildViewCommand constructs the view command.
func (builder *CommandBuilder) BuildViewCommand() (*cobra.Command, error) {
	return builder.buildCommand(viewCommandUseConstant, viewCommandShortDescriptionConstant, viewCommandLongDescriptionConstant,
		func(command *cobra.Command, service *Service) error {
			_, viewError := service.ViewPullRequest(command.Context())
			return viewError
		}), nil
}

// BuildCheckoutCommand constructs the checkout command.
func (builder *CommandBuilder) BuildCheckoutCommand() (*cobra.Command, error) {
	return builder.buildCommand(checkoutCommandUseConstant, checkoutShortDescriptionConstant, checkoutLongDescriptionConstant,
		func(command *cobra.Command, service *Service) error {
			_, checkoutError := service.CheckoutPullRequest(command.Context())
			return checkoutError
		}), nil
}

// BuildListCommand constructs the list command.
func (builder *CommandBuilder) BuildListCommand() (*cobra.Command, error) {
	command := builder.buildCommand(listCommandUseConstant, listCommandShortDescriptionConstant, listCommandLongDescriptionConstant,
		func(command *cobra.Command, service *Service) error {
			formatValue, _ := command.Flags().GetString(formatFlagNameConstant)
			format := strings.ToLower(strings.TrimSpace(formatValue))
			if format != formatTextConstant && format != formatJSONConstant {
				return fmt.Errorf(unsupportedFormatTemplateConstant, formatValue)
			}

			summaries, listError := service.ListPullRequests(command.Context())
			if listError != nil {
				return listError
			}
			if writeError := writePullRequests(command.OutOrStdout(), format, summaries); writeError != nil {
				return fmt.Errorf(listOutputErrorTemplateConstant, writeError)
			}
			return nil
		})
	command.Flags().String(formatFlagNameConstant, formatTextConstant, formatFlagDescriptionConstant)
	return command, nil
}

func (builder *CommandBuilder) buildCommand(use string, short string, long string, action func(*cobra.Command, *Service) error) *cobra.Command {
	command := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		RunE: func(command *cobra.Command, arguments []string) error {
			if len(arguments) > 0 {
				return fmt.Errorf(unexpectedArgumentsTemplateConstant, command.Name())
			}
			service, serviceError := builder.newService(command)
			if serviceError != nil {
				return serviceError
			}
			return action(command, service)
		},
	}
	command.Flags().String(repositoryFlagNameConstant, "", repositoryFlagDescriptionConstant)
	return command
}

func (builder *CommandBuilder) newService(command *cobra.Command) (*Service, error) {
	configuration := builder.resolveConfiguration(command)
	logger := builder.resolveLogger()

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return nil, executorError
	}

	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor, builder.resolveHomeExpander().Expand(configuration.RepositoryPath))
	if managerError != nil {
		return nil, fmt.Errorf(repositoryManagerErrorTemplateConstant, managerError)
	}

	browserOpener, browserError := builder.resolveBrowser(executor)
	if browserError != nil {
		return nil, fmt.Errorf(browserOpenerErrorTemplateConstant, browserError)
	}

	return NewService(ServiceDependencies{
		Logger:            logger,
		Repository:        repositoryManager,
		ClientFactory:     builder.resolveClientFactory(logger),
		Interaction:       builder.resolveInteraction(command),
		Browser:           browserOpener,
		LookupEnvironment: builder.resolveEnvironmentLookup(),
	}, configuration)
}

func (builder *CommandBuilder) resolveConfiguration(command *cobra.Command) Configuration {
	configuration := DefaultConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	if command.Flags().Changed(repositoryFlagNameConstant) {
		repositoryPath, _ := command.Flags().GetString(repositoryFlagNameConstant)
		configuration.RepositoryPath = repositoryPath
	}
	return configuration.Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (CommandExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}

	executorOptions := []execshell.ShellExecutorOption{}
	if builder.HumanReadableLoggingProvider != nil && builder.HumanReadableLoggingProvider() {
		executorOptions = append(executorOptions, execshell.WithCommandEventObserver(ui.NewConsoleCommandEventLogger(logger)))
	}
	return execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), executorOptions...)
}

func (builder *CommandBuilder) resolveBrowser(executor CommandExecutor) (BrowserOpener, error) {
	if builder.Browser != nil {
		return builder.Browser, nil
	}
	return browser.NewOpener(executor)
}

func (builder *CommandBuilder) resolveClientFactory(logger *zap.Logger) ClientFactory {
	if builder.ClientFactory != nil {
		return builder.ClientFactory
	}
	return func(credentials githubauth.HostCredentials) (PullRequestClient, error) {
		return githubapi.NewClient(githubapi.ClientConfiguration{
			APIBaseURL: credentials.APIBaseURL,
			Token:      credentials.Token,
			Logger:     logger,
		})
	}
}

func (builder *CommandBuilder) resolveInteraction(command *cobra.Command) Interaction {
	if builder.InteractionFactory != nil {
		if interaction := builder.InteractionFactory(command); interaction != nil {
			return interaction
		}
	}

	input := command.InOrStdin()
	output := command.ErrOrStderr()
	inputFile, inputIsFile := input.(*os.File)
	outputFile, outputIsFile := output.(*os.File)
	interactive := inputIsFile && outputIsFile && ui.IsInteractiveTerminal(inputFile, outputFile)
	return ui.NewTerminalInteraction(input, output, ui.WithInteractiveTerminal(interactive))
}

func (builder *CommandBuilder) resolveEnvironmentLookup() githubauth.EnvironmentLookup {
	if builder.LookupEnvironment != nil {
		return builder.LookupEnvironment
	}
	return githubauth.ProcessEnvironment()
}

func (builder *CommandBuilder) resolveHomeExpander() *pathutils.HomeExpander {
	if builder.HomeExpander != nil {
		return builder.HomeExpander
	}
	return pathutils.NewHomeExpander()
}

func writePullRequests(output io.Writer, format string, summaries []githubapi.PullRequestSummary) error {
	if format == formatJSONConstant {
		encoded, encodeError := json.MarshalIndent(summaries, "", jsonIndentConstant)
		if encodeError != nil {
			return encodeError
		}
		_, writeError := fmt.Fprintln(output, string(encoded))
		return writeError
	}

	rows := make([][]string, 0, len(summaries))
	for _, summary := range summaries {
		rows = append(rows, []string{strconv.Itoa(summary.Number), summary.Title, summary.HeadRef, summary.BaseRef, summary.URL})
	}
	_, writeError := fmt.Fprintln(output, ui.RenderTable(output, []string{
		numberColumnConstant,
		titleColumnConstant,
		headColumnConstant,
		baseColumnConstant,
		urlColumnConstant,
	}, rows))
	return writeError
}
