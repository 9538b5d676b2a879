package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	flagPrefixConstant                      = "-"
)

const (
	gitRevParseSubcommandNameConstant = "rev-parse"
	gitAbbrevRefFlagConstant          = "--abbrev-ref"
	gitVerifyFlagConstant             = "--verify"
	gitHeadReferenceConstant          = "HEAD"
	gitRemoteSubcommandNameConstant   = "remote"
	gitStatusSubcommandNameConstant   = "status"
	gitLogSubcommandNameConstant      = "log"
	gitCheckoutSubcommandNameConstant = "checkout"
	gitCreateBranchFlagConstant       = "-b"
	gitBranchSubcommandNameConstant   = "branch"
	gitFetchSubcommandNameConstant    = "fetch"
	gitPushSubcommandNameConstant     = "push"
	gitAddSubcommandNameConstant      = "add"
	gitCommitSubcommandNameConstant   = "commit"
	gitMessageFlagConstant            = "-m"
)

const (
	gitCurrentBranchStartTemplateConstant               = "Identifying current branch in %s"
	gitCurrentBranchSuccessTemplateConstant             = "Current branch in %s is %s"
	gitCurrentBranchFailureTemplateConstant             = "Failed to identify current branch in %s (exit code %d%s)"
	gitCurrentBranchExecutionFailureTemplateConstant    = "Unable to identify current branch in %s: %s"
	gitRevisionStartTemplateConstant                    = "Resolving %s in %s"
	gitRevisionSuccessTemplateConstant                  = "%s in %s resolved to %s"
	gitRevisionEmptySuccessTemplateConstant             = "%s in %s did not resolve to a revision"
	gitRevisionFailureTemplateConstant                  = "Failed to resolve %s in %s (exit code %d%s)"
	gitRevisionExecutionFailureTemplateConstant         = "Unable to resolve %s in %s: %s"
	gitStatusStartTemplateConstant                      = "Reviewing working tree status in %s"
	gitStatusSuccessTemplateConstant                    = "Collected working tree status for %s"
	gitStatusFailureTemplateConstant                    = "Failed to review working tree status in %s (exit code %d%s)"
	gitStatusExecutionFailureTemplateConstant           = "Unable to review working tree status in %s: %s"
	gitLogStartTemplateConstant                         = "Reading latest commit in %s"
	gitLogSuccessTemplateConstant                       = "Read latest commit in %s"
	gitLogFailureTemplateConstant                       = "Failed to read latest commit in %s (exit code %d%s)"
	gitLogExecutionFailureTemplateConstant              = "Unable to read latest commit in %s: %s"
	gitRemoteListStartTemplateConstant                  = "Listing remotes in %s"
	gitRemoteListSuccessTemplateConstant                = "Listed remotes in %s"
	gitRemoteListFailureTemplateConstant                = "Failed to list remotes in %s (exit code %d%s)"
	gitRemoteListExecutionFailureTemplateConstant       = "Unable to list remotes in %s: %s"
	gitCheckoutStartTemplateConstant                    = "Switching %s to branch %s"
	gitCheckoutSuccessTemplateConstant                  = "%s now on branch %s"
	gitCheckoutFailureTemplateConstant                  = "Failed to switch %s to branch %s (exit code %d%s)"
	gitCheckoutExecutionFailureTemplateConstant         = "Unable to switch %s to branch %s: %s"
	gitCheckoutCreateStartTemplateConstant              = "Creating branch %s in %s"
	gitCheckoutCreateSuccessTemplateConstant            = "Created branch %s in %s"
	gitCheckoutCreateFailureTemplateConstant            = "Failed to create branch %s in %s (exit code %d%s)"
	gitCheckoutCreateExecutionFailureTemplateConstant   = "Unable to create branch %s in %s: %s"
	gitBranchListStartTemplateConstant                  = "Listing local branches in %s"
	gitBranchListSuccessTemplateConstant                = "Listed local branches in %s"
	gitBranchListFailureTemplateConstant                = "Failed to list local branches in %s (exit code %d%s)"
	gitBranchListExecutionFailureTemplateConstant       = "Unable to list local branches in %s: %s"
	gitFetchStartTemplateConstant                       = "Fetching %s from %s in %s"
	gitFetchWithoutRefsStartTemplateConstant            = "Fetching from %s in %s"
	gitFetchSuccessTemplateConstant                     = "Fetched %s from %s in %s"
	gitFetchWithoutRefsSuccessTemplateConstant          = "Fetched from %s in %s"
	gitFetchFailureTemplateConstant                     = "Failed to fetch %s from %s in %s (exit code %d%s)"
	gitFetchWithoutRefsFailureTemplateConstant          = "Failed to fetch from %s in %s (exit code %d%s)"
	gitFetchExecutionFailureTemplateConstant            = "Unable to fetch %s from %s in %s: %s"
	gitFetchWithoutRefsExecutionFailureTemplateConstant = "Unable to fetch from %s in %s: %s"
	gitFetchAllRemotesLabelConstant                     = "all remotes"
	gitPushStartTemplateConstant                        = "Pushing %s to %s from %s"
	gitPushSuccessTemplateConstant                      = "Pushed %s to %s from %s"
	gitPushFailureTemplateConstant                      = "Failed to push %s to %s from %s (exit code %d%s)"
	gitPushExecutionFailureTemplateConstant             = "Unable to push %s to %s from %s: %s"
	gitAddStartTemplateConstant                         = "Staging %s in %s"
	gitAddSuccessTemplateConstant                       = "Staged %s in %s"
	gitAddFailureTemplateConstant                       = "Failed to stage %s in %s (exit code %d%s)"
	gitAddExecutionFailureTemplateConstant              = "Unable to stage %s in %s: %s"
	gitAddAllChangesLabelConstant                       = "all changes"
	gitCommitStartTemplateConstant                      = "Creating commit in %s with message %q"
	gitCommitSuccessTemplateConstant                    = "Created commit in %s with message %q"
	gitCommitFailureTemplateConstant                    = "Failed to create commit in %s with message %q (exit code %d%s)"
	gitCommitExecutionFailureTemplateConstant           = "Unable to create commit in %s with message %q: %s"
)

// stageTemplates groups the four lifecycle templates of one git operation.
type stageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildCompletedMessage formats the success message using the command output where relevant.
func (formatter CommandMessageFormatter) BuildCompletedMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGit || len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)

	switch strings.TrimSpace(arguments[0]) {
	case gitRevParseSubcommandNameConstant:
		return formatter.describeGitRevParseMessage(command, result, failure, stage)
	case gitStatusSubcommandNameConstant:
		return formatter.renderStage(stageTemplates{gitStatusStartTemplateConstant, gitStatusSuccessTemplateConstant, gitStatusFailureTemplateConstant, gitStatusExecutionFailureTemplateConstant}, []any{workingDirectory}, result, failure, stage)
	case gitLogSubcommandNameConstant:
		return formatter.renderStage(stageTemplates{gitLogStartTemplateConstant, gitLogSuccessTemplateConstant, gitLogFailureTemplateConstant, gitLogExecutionFailureTemplateConstant}, []any{workingDirectory}, result, failure, stage)
	case gitRemoteSubcommandNameConstant:
		return formatter.renderStage(stageTemplates{gitRemoteListStartTemplateConstant, gitRemoteListSuccessTemplateConstant, gitRemoteListFailureTemplateConstant, gitRemoteListExecutionFailureTemplateConstant}, []any{workingDirectory}, result, failure, stage)
	case gitBranchSubcommandNameConstant:
		return formatter.renderStage(stageTemplates{gitBranchListStartTemplateConstant, gitBranchListSuccessTemplateConstant, gitBranchListFailureTemplateConstant, gitBranchListExecutionFailureTemplateConstant}, []any{workingDirectory}, result, failure, stage)
	case gitCheckoutSubcommandNameConstant:
		return formatter.describeGitCheckoutMessage(command, result, failure, stage)
	case gitFetchSubcommandNameConstant:
		return formatter.describeGitFetchMessage(command, result, failure, stage)
	case gitPushSubcommandNameConstant:
		remoteName, references := formatter.extractRemoteAndReferences(arguments[1:])
		return formatter.renderStage(stageTemplates{gitPushStartTemplateConstant, gitPushSuccessTemplateConstant, gitPushFailureTemplateConstant, gitPushExecutionFailureTemplateConstant}, []any{formatter.ensureValue(formatter.joinReferences(references)), formatter.ensureValue(remoteName), workingDirectory}, result, failure, stage)
	case gitAddSubcommandNameConstant:
		target := formatter.extractFirstNonFlagArgument(arguments[1:])
		if len(target) == 0 {
			target = gitAddAllChangesLabelConstant
		}
		return formatter.renderStage(stageTemplates{gitAddStartTemplateConstant, gitAddSuccessTemplateConstant, gitAddFailureTemplateConstant, gitAddExecutionFailureTemplateConstant}, []any{target, workingDirectory}, result, failure, stage)
	case gitCommitSubcommandNameConstant:
		return formatter.renderStage(stageTemplates{gitCommitStartTemplateConstant, gitCommitSuccessTemplateConstant, gitCommitFailureTemplateConstant, gitCommitExecutionFailureTemplateConstant}, []any{workingDirectory, formatter.extractCommitMessage(arguments)}, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) renderStage(templates stageTemplates, values []any, result ExecutionResult, failure error, stage messageStage) string {
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, values...)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, values...)
	case messageStageFailure:
		return fmt.Sprintf(templates.failure, append(values, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))...)
	case messageStageExecutionFailure:
		return fmt.Sprintf(templates.executionFailure, append(values, formatter.describeFailure(failure))...)
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) describeGitRevParseMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)

	if containsArgument(arguments, gitAbbrevRefFlagConstant) && !containsArgument(arguments, gitVerifyFlagConstant) {
		if stage == messageStageSuccess {
			return fmt.Sprintf(gitCurrentBranchSuccessTemplateConstant, workingDirectory, formatter.ensureValue(result.StandardOutput))
		}
		return formatter.renderStage(stageTemplates{gitCurrentBranchStartTemplateConstant, gitCurrentBranchSuccessTemplateConstant, gitCurrentBranchFailureTemplateConstant, gitCurrentBranchExecutionFailureTemplateConstant}, []any{workingDirectory}, result, failure, stage)
	}

	reference := formatter.resolveRevisionReference(arguments)
	if stage == messageStageSuccess {
		trimmed := strings.TrimSpace(result.StandardOutput)
		if len(trimmed) == 0 {
			return fmt.Sprintf(gitRevisionEmptySuccessTemplateConstant, reference, workingDirectory)
		}
		return fmt.Sprintf(gitRevisionSuccessTemplateConstant, reference, workingDirectory, trimmed)
	}
	return formatter.renderStage(stageTemplates{gitRevisionStartTemplateConstant, gitRevisionSuccessTemplateConstant, gitRevisionFailureTemplateConstant, gitRevisionExecutionFailureTemplateConstant}, []any{reference, workingDirectory}, result, failure, stage)
}

func (formatter CommandMessageFormatter) describeGitCheckoutMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)

	if containsArgument(arguments, gitCreateBranchFlagConstant) {
		branchName := formatter.ensureValue(formatter.extractFirstNonFlagArgument(arguments[1:]))
		return formatter.renderStage(stageTemplates{gitCheckoutCreateStartTemplateConstant, gitCheckoutCreateSuccessTemplateConstant, gitCheckoutCreateFailureTemplateConstant, gitCheckoutCreateExecutionFailureTemplateConstant}, []any{branchName, workingDirectory}, result, failure, stage)
	}

	branchName := formatter.ensureValue(formatter.argumentAtIndex(arguments, 1))
	return formatter.renderStage(stageTemplates{gitCheckoutStartTemplateConstant, gitCheckoutSuccessTemplateConstant, gitCheckoutFailureTemplateConstant, gitCheckoutExecutionFailureTemplateConstant}, []any{workingDirectory, branchName}, result, failure, stage)
}

func (formatter CommandMessageFormatter) describeGitFetchMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	remoteName, references := formatter.extractRemoteAndReferences(command.Details.Arguments[1:])
	trimmedRemote := strings.TrimSpace(remoteName)
	if len(trimmedRemote) == 0 {
		trimmedRemote = gitFetchAllRemotesLabelConstant
	}
	joinedReferences := formatter.joinReferences(references)

	if len(joinedReferences) > 0 {
		return formatter.renderStage(stageTemplates{gitFetchStartTemplateConstant, gitFetchSuccessTemplateConstant, gitFetchFailureTemplateConstant, gitFetchExecutionFailureTemplateConstant}, []any{joinedReferences, trimmedRemote, workingDirectory}, result, failure, stage)
	}
	return formatter.renderStage(stageTemplates{gitFetchWithoutRefsStartTemplateConstant, gitFetchWithoutRefsSuccessTemplateConstant, gitFetchWithoutRefsFailureTemplateConstant, gitFetchWithoutRefsExecutionFailureTemplateConstant}, []any{trimmedRemote, workingDirectory}, result, failure, stage)
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	workingDirectorySuffix := formatter.formatWorkingDirectorySuffix(command)
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, workingDirectorySuffix)
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}

func (formatter CommandMessageFormatter) resolveRevisionReference(arguments []string) string {
	if len(arguments) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	lastArgument := strings.TrimSpace(arguments[len(arguments)-1])
	if len(lastArgument) == 0 || strings.HasPrefix(lastArgument, flagPrefixConstant) {
		return gitHeadReferenceConstant
	}
	return lastArgument
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index >= 0 && index < len(arguments) {
		return arguments[index]
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

func (formatter CommandMessageFormatter) extractRemoteAndReferences(arguments []string) (string, []string) {
	remoteName := emptyStringConstant
	references := []string{}
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 {
			continue
		}
		if strings.HasPrefix(trimmed, flagPrefixConstant) {
			continue
		}
		if len(remoteName) == 0 {
			remoteName = trimmed
			continue
		}
		references = append(references, trimmed)
	}
	return remoteName, references
}

func (formatter CommandMessageFormatter) joinReferences(references []string) string {
	cleaned := make([]string, 0, len(references))
	for _, reference := range references {
		trimmed := strings.TrimSpace(reference)
		if len(trimmed) == 0 {
			continue
		}
		cleaned = append(cleaned, trimmed)
	}
	return strings.Join(cleaned, ", ")
}

func (formatter CommandMessageFormatter) extractFirstNonFlagArgument(arguments []string) string {
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 {
			continue
		}
		if strings.HasPrefix(trimmed, flagPrefixConstant) {
			continue
		}
		return trimmed
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) extractCommitMessage(arguments []string) string {
	for index := 0; index < len(arguments); index++ {
		if strings.TrimSpace(arguments[index]) == gitMessageFlagConstant && index+1 < len(arguments) {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return fallbackUnknownValueLabelConstant
}
