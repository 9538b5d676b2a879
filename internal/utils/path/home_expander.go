package pathutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	homeShortcutConstant               = "~"
	absolutePathErrorTemplateConstant  = "unable to resolve %s: %w"
	homeDirectoryErrorTemplateConstant = "unable to determine the home directory: %w"
)

// ErrHomeDirectoryUnavailable indicates the provider returned an empty home directory.
var ErrHomeDirectoryUnavailable = errors.New("home directory is not set")

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// HomeExpander rewrites a leading ~ to the user's home directory.
type HomeExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	lookupOnce            sync.Once
	homeDirectory         string
	lookupError           error
}

// NewHomeExpander constructs a HomeExpander backed by os.UserHomeDir.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(nil)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom provider.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{homeDirectoryProvider: provider}
}

// Expand resolves "~" and "~/..." and leaves every other path untouched.
// Paths such as "~someone/dir" are returned as given.
func (expander *HomeExpander) Expand(candidatePath string) string {
	expandedPath, _ := expander.expand(candidatePath)
	return expandedPath
}

// Absolute expands candidatePath and converts it to a cleaned absolute path.
func (expander *HomeExpander) Absolute(candidatePath string) (string, error) {
	expandedPath, expansionError := expander.expand(strings.TrimSpace(candidatePath))
	if expansionError != nil {
		return "", expansionError
	}
	absolutePath, absoluteError := filepath.Abs(expandedPath)
	if absoluteError != nil {
		return "", fmt.Errorf(absolutePathErrorTemplateConstant, candidatePath, absoluteError)
	}
	return absolutePath, nil
}

func (expander *HomeExpander) expand(candidatePath string) (string, error) {
	if expander == nil || !strings.HasPrefix(candidatePath, homeShortcutConstant) {
		return candidatePath, nil
	}

	remainder := strings.TrimPrefix(candidatePath, homeShortcutConstant)
	if len(remainder) > 0 && remainder[0] != '/' && remainder[0] != os.PathSeparator {
		return candidatePath, nil
	}

	expander.lookupOnce.Do(func() {
		expander.homeDirectory, expander.lookupError = expander.homeDirectoryProvider()
	})
	if expander.lookupError != nil {
		return candidatePath, fmt.Errorf(homeDirectoryErrorTemplateConstant, expander.lookupError)
	}
	if len(expander.homeDirectory) == 0 {
		return candidatePath, fmt.Errorf(homeDirectoryErrorTemplateConstant, ErrHomeDirectoryUnavailable)
	}

	return filepath.Join(expander.homeDirectory, remainder), nil
}
