package browser

import (
	"context"
	"errors"
	"runtime"
	"strings"

	"github.com/temirov/ghpr/internal/execshell"
)

const (
	darwinOperatingSystemConstant  = "darwin"
	windowsOperatingSystemConstant = "windows"
	darwinOpenCommandConstant      = "open"
	windowsOpenCommandConstant     = "rundll32"
	windowsProtocolHandlerConstant = "url.dll,FileProtocolHandler"
	defaultOpenCommandConstant     = "xdg-open"
	executorMissingMessageConstant = "browser opener requires a command executor"
	emptyURLMessageConstant        = "url to open must be provided"
)

var (
	// ErrExecutorNotConfigured indicates a missing command executor.
	ErrExecutorNotConfigured = errors.New(executorMissingMessageConstant)
	// ErrEmptyURL indicates an attempt to open a blank address.
	ErrEmptyURL = errors.New(emptyURLMessageConstant)
)

// CommandExecutor runs the platform open command.
type CommandExecutor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// Opener launches URLs in the default browser.
type Opener struct {
	executor        CommandExecutor
	operatingSystem string
}

// NewOpener constructs an Opener for the running platform.
func NewOpener(executor CommandExecutor) (*Opener, error) {
	return NewOpenerForPlatform(executor, runtime.GOOS)
}

// NewOpenerForPlatform constructs an Opener that uses the launcher of the named operating system.
func NewOpenerForPlatform(executor CommandExecutor, operatingSystem string) (*Opener, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Opener{executor: executor, operatingSystem: operatingSystem}, nil
}

// OpenURL opens the address with the platform launcher.
func (opener *Opener) OpenURL(executionContext context.Context, address string) error {
	trimmedAddress := strings.TrimSpace(address)
	if len(trimmedAddress) == 0 {
		return ErrEmptyURL
	}
	_, executionError := opener.executor.Execute(executionContext, opener.buildCommand(trimmedAddress))
	return executionError
}

func (opener *Opener) buildCommand(address string) execshell.ShellCommand {
	switch opener.operatingSystem {
	case darwinOperatingSystemConstant:
		return execshell.ShellCommand{
			Name:    execshell.CommandName(darwinOpenCommandConstant),
			Details: execshell.CommandDetails{Arguments: []string{address}},
		}
	case windowsOperatingSystemConstant:
		return execshell.ShellCommand{
			Name:    execshell.CommandName(windowsOpenCommandConstant),
			Details: execshell.CommandDetails{Arguments: []string{windowsProtocolHandlerConstant, address}},
		}
	default:
		return execshell.ShellCommand{
			Name:    execshell.CommandName(defaultOpenCommandConstant),
			Details: execshell.CommandDetails{Arguments: []string{address}},
		}
	}
}
