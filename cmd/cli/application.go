package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/temirov/ghpr/internal/pullrequests"
	"github.com/temirov/ghpr/internal/utils"
	pathutils "github.com/temirov/ghpr/internal/utils/path"
)

const (
	applicationNameConstant                  = "ghpr"
	applicationShortDescriptionConstant      = "Open, view, and check out GitHub pull requests from a local repository"
	applicationLongDescriptionConstant       = "ghpr publishes the current work of a git repository as a GitHub pull request and lets you browse or check out the open pull requests of its GitHub or GitHub Enterprise remote."
	configFileFlagNameConstant               = "config"
	configFileFlagUsageConstant              = "Optional path to a configuration file (YAML)."
	logLevelFlagNameConstant                 = "log-level"
	logLevelFlagUsageConstant                = "Override the configured log level."
	logFormatFlagNameConstant                = "log-format"
	logFormatFlagUsageConstant               = "Override the configured log format (structured or console)."
	initFlagNameConstant                     = "init"
	initFlagUsageConstant                    = "Write the default configuration to ./config.yaml (local) or ~/.ghpr/config.yaml (user)."
	forceFlagNameConstant                    = "force"
	forceFlagUsageConstant                   = "Overwrite an existing configuration file when used with --init."
	configCommandUseConstant                 = "config"
	configCommandShortDescriptionConstant    = "Print the effective configuration"
	configCommandLongDescriptionConstant     = "config prints the configuration after merging defaults, the configuration file, and GHPR_* environment variables. Access tokens are masked."
	commonLogLevelConfigKeyConstant          = "common.log_level"
	commonLogFormatConfigKeyConstant         = "common.log_format"
	pullRequestsConfigurationKeyConstant     = "pull_requests"
	environmentPrefixConstant                = "GHPR"
	configurationNameConstant                = "config"
	configurationTypeConstant                = "yaml"
	configurationFileNameConstant            = configurationNameConstant + "." + configurationTypeConstant
	localConfigurationSearchPathConstant     = "."
	userConfigurationSearchPathConstant      = "~/.ghpr"
	configurationInitializedMessageConstant  = "configuration initialized"
	configurationWrittenTemplateConstant     = "Configuration written to %s\n"
	configurationLogLevelFieldConstant       = "log_level"
	configurationLogFormatFieldConstant      = "log_format"
	configurationFileFieldConstant           = "config_file"
	configurationLoadErrorTemplateConstant   = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant      = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant          = "unable to flush logger: %w"
	workingDirectoryErrorTemplateConstant    = "unable to determine working directory: %w"
	configurationRenderErrorTemplateConstant = "unable to render configuration: %w"
	unexpectedArgumentsTemplateConstant      = "%s does not accept positional arguments"
)

// Version is overridden at build time through -ldflags.
var Version = "dev"

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common       ApplicationCommonConfiguration `mapstructure:"common" yaml:"common"`
	PullRequests pullrequests.Configuration     `mapstructure:"pull_requests" yaml:"pull_requests"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand              *cobra.Command
	configurationLoader      *utils.ConfigurationLoader
	loggerFactory            *utils.LoggerFactory
	homeExpander             *pathutils.HomeExpander
	logger                   *zap.Logger
	configuration            ApplicationConfiguration
	configurationMetadata    utils.LoadedConfiguration
	configurationFilePath    string
	logLevelFlagValue        string
	logFormatFlagValue       string
	initializationScope      string
	forceInitialization      bool
	workingDirectoryProvider func() (string, error)
	pullRequestBuilder       pullrequests.CommandBuilder
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	homeExpander := pathutils.NewHomeExpander()
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{localConfigurationSearchPathConstant, homeExpander.Expand(userConfigurationSearchPathConstant)},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:      configurationLoader,
		loggerFactory:            utils.NewLoggerFactory(),
		homeExpander:             homeExpander,
		logger:                   zap.NewNop(),
		workingDirectoryProvider: os.Getwd,
	}
	application.pullRequestBuilder = pullrequests.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider: func() pullrequests.Configuration {
			return application.configuration.PullRequests
		},
		HomeExpander: homeExpander,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if command.Flags().Changed(initFlagNameConstant) {
				return nil
			}
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.Flags().StringVar(&application.initializationScope, initFlagNameConstant, "", initFlagUsageConstant)
	cobraCommand.Flags().Lookup(initFlagNameConstant).NoOptDefVal = utils.ConfigurationScopeLocal
	cobraCommand.Flags().BoolVar(&application.forceInitialization, forceFlagNameConstant, false, forceFlagUsageConstant)

	application.rootCommand = cobraCommand
	application.registerCommands()

	return application
}

func (application *Application) registerCommands() {
	builders := []func() (*cobra.Command, error){
		application.pullRequestBuilder.BuildOpenCommand,
		application.pullRequestBuilder.BuildViewCommand,
		application.pullRequestBuilder.BuildCheckoutCommand,
		application.pullRequestBuilder.BuildListCommand,
	}
	for _, build := range builders {
		command, buildError := build()
		if buildError == nil {
			application.rootCommand.AddCommand(command)
		}
	}

	application.rootCommand.AddCommand(&cobra.Command{
		Use:   configCommandUseConstant,
		Short: configCommandShortDescriptionConstant,
		Long:  configCommandLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			if len(arguments) > 0 {
				return fmt.Errorf(unexpectedArgumentsTemplateConstant, command.Name())
			}
			return application.printConfiguration(command)
		},
	})
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}
	for configurationKey, configurationValue := range pullrequests.DefaultConfigurationValues(pullRequestsConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}

	configurationFilePath := application.homeExpander.Expand(strings.TrimSpace(application.configurationFilePath))
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration
	application.configuration.PullRequests = application.configuration.PullRequests.Sanitize()

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerError := application.createLogger()
	if loggerError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerError)
	}
	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)
	return nil
}

func (application *Application) createLogger() (*zap.Logger, error) {
	logLevel, levelError := utils.ParseLogLevel(application.configuration.Common.LogLevel)
	if levelError != nil {
		return nil, levelError
	}
	logFormat, formatError := utils.ParseLogFormat(application.configuration.Common.LogFormat)
	if formatError != nil {
		return nil, formatError
	}
	application.configuration.Common.LogLevel = string(logLevel)
	application.configuration.Common.LogFormat = string(logFormat)
	return application.loggerFactory.CreateLogger(logLevel, logFormat)
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if command.Flags().Changed(initFlagNameConstant) {
		return application.writeDefaultConfiguration(command)
	}
	if len(arguments) > 0 {
		return fmt.Errorf(unexpectedArgumentsTemplateConstant, command.Name())
	}
	return command.Help()
}

func (application *Application) writeDefaultConfiguration(command *cobra.Command) error {
	workingDirectory, workingDirectoryError := application.workingDirectoryProvider()
	if workingDirectoryError != nil {
		return fmt.Errorf(workingDirectoryErrorTemplateConstant, workingDirectoryError)
	}

	initializer := utils.ConfigurationInitializer{
		FileName:                   configurationFileNameConstant,
		Content:                    EmbeddedDefaultConfiguration(),
		WorkingDirectory:           workingDirectory,
		UserConfigurationDirectory: application.homeExpander.Expand(userConfigurationSearchPathConstant),
	}
	writtenPath, initializeError := initializer.Initialize(application.initializationScope, application.forceInitialization)
	if initializeError != nil {
		return initializeError
	}

	_, printError := fmt.Fprintf(command.OutOrStdout(), configurationWrittenTemplateConstant, writtenPath)
	return printError
}

func (application *Application) printConfiguration(command *cobra.Command) error {
	effectiveConfiguration := application.configuration
	effectiveConfiguration.PullRequests = effectiveConfiguration.PullRequests.Masked()

	encoder := yaml.NewEncoder(command.OutOrStdout())
	encoder.SetIndent(2)
	if encodeError := encoder.Encode(effectiveConfiguration); encodeError != nil {
		return fmt.Errorf(configurationRenderErrorTemplateConstant, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return fmt.Errorf(configurationRenderErrorTemplateConstant, closeError)
	}
	return nil
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}
	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}
	return false
}
