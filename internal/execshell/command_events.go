package execshell

import (
	"strings"

	"go.uber.org/zap"
)

// CommandEventObserver receives lifecycle notifications for shell command execution.
type CommandEventObserver interface {
	CommandStarted(command ShellCommand)
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed reports failures that prevented an exit code from being observed.
	CommandExecutionFailed(command ShellCommand, failure error)
}

// structuredCommandLogger is the default observer; it writes one zap entry per event with command fields attached.
type structuredCommandLogger struct {
	logger    *zap.Logger
	formatter CommandMessageFormatter
}

func (eventLogger structuredCommandLogger) CommandStarted(command ShellCommand) {
	eventLogger.logger.Info(eventLogger.formatter.BuildStartedMessage(command), commandFields(command)...)
}

func (eventLogger structuredCommandLogger) CommandCompleted(command ShellCommand, result ExecutionResult) {
	fields := append(commandFields(command), zap.Int(commandExitCodeLogFieldConstant, result.ExitCode))
	if result.ExitCode == 0 {
		eventLogger.logger.Info(eventLogger.formatter.BuildCompletedMessage(command, result), fields...)
		return
	}
	fields = append(fields, zap.String(commandStandardErrorLogFieldConstant, strings.TrimSpace(result.StandardError)))
	eventLogger.logger.Warn(eventLogger.formatter.BuildFailureMessage(command, result), fields...)
}

func (eventLogger structuredCommandLogger) CommandExecutionFailed(command ShellCommand, failure error) {
	fields := append(commandFields(command), zap.Error(failure))
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionFailureMessage(command, failure), fields...)
}

func commandFields(command ShellCommand) []zap.Field {
	return []zap.Field{
		zap.String(commandNameLogFieldConstant, string(command.Name)),
		zap.Strings(commandArgumentsLogFieldConstant, command.Details.Arguments),
		zap.String(commandWorkingDirectoryLogFieldConstant, command.Details.WorkingDirectory),
	}
}
