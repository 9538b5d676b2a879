package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ConfigurationScopeLocal writes the configuration into the working directory.
	ConfigurationScopeLocal = "local"
	// ConfigurationScopeUser writes the configuration into the user configuration directory.
	ConfigurationScopeUser = "user"

	configurationDirectoryPermissionsConstant = 0o755
	configurationFilePermissionsConstant      = 0o600

	unsupportedScopeTemplateConstant          = "unsupported configuration scope %q (expected local or user)"
	configurationExistsTemplateConstant       = "configuration file %s already exists (use --force to overwrite)"
	directoryCreationErrorTemplateConstant    = "unable to create configuration directory %s: %w"
	configurationWriteErrorTemplateConstant   = "unable to write configuration file %s: %w"
	configurationInspectErrorTemplateConstant = "unable to inspect configuration file %s: %w"
)

// ConfigurationInitializer writes the embedded default configuration to disk.
type ConfigurationInitializer struct {
	FileName                   string
	Content                    []byte
	WorkingDirectory           string
	UserConfigurationDirectory string
}

// Initialize writes the configuration for scope and returns the written path.
// An existing file is preserved unless force is set.
func (initializer ConfigurationInitializer) Initialize(scope string, force bool) (string, error) {
	var targetDirectory string
	switch strings.ToLower(strings.TrimSpace(scope)) {
	case ConfigurationScopeLocal:
		targetDirectory = initializer.WorkingDirectory
	case ConfigurationScopeUser:
		targetDirectory = initializer.UserConfigurationDirectory
	default:
		return "", fmt.Errorf(unsupportedScopeTemplateConstant, scope)
	}

	targetPath := filepath.Join(targetDirectory, initializer.FileName)
	if !force {
		_, statError := os.Stat(targetPath)
		if statError == nil {
			return "", fmt.Errorf(configurationExistsTemplateConstant, targetPath)
		}
		if !errors.Is(statError, fs.ErrNotExist) {
			return "", fmt.Errorf(configurationInspectErrorTemplateConstant, targetPath, statError)
		}
	}

	if mkdirError := os.MkdirAll(targetDirectory, configurationDirectoryPermissionsConstant); mkdirError != nil {
		return "", fmt.Errorf(directoryCreationErrorTemplateConstant, targetDirectory, mkdirError)
	}
	if writeError := os.WriteFile(targetPath, initializer.Content, configurationFilePermissionsConstant); writeError != nil {
		return "", fmt.Errorf(configurationWriteErrorTemplateConstant, targetPath, writeError)
	}
	return targetPath, nil
}
