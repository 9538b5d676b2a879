package utils

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	environmentKeySeparatorOldConstant              = "."
	environmentKeySeparatorNewConstant              = "_"
	sliceSeparatorConstant                          = ","
	configurationReadErrorTemplateConstant          = "failed to read configuration %s: %w"
	configurationSearchErrorTemplateConstant        = "failed to read configuration: %w"
	configurationUnmarshalErrorTemplateConstant     = "failed to parse configuration: %w"
	embeddedConfigurationMergeErrorTemplateConstant = "failed to merge embedded configuration: %w"
)

// ConfigurationLoader layers embedded defaults, a configuration file, and environment overrides.
type ConfigurationLoader struct {
	configurationName     string
	configurationType     string
	environmentPrefix     string
	searchPaths           []string
	embeddedConfiguration []byte
	decodeHooks           []mapstructure.DecodeHookFunc
}

// LoadedConfiguration surfaces metadata about the resolved configuration.
type LoadedConfiguration struct {
	ConfigFileUsed string
	EmbeddedOnly   bool
}

// NewConfigurationLoader creates a loader that searches known paths and respects an environment prefix.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       append([]string(nil), searchPaths...),
		decodeHooks: []mapstructure.DecodeHookFunc{
			StringToTextUnmarshalerSliceHookFunc(sliceSeparatorConstant),
			mapstructure.StringToSliceHookFunc(sliceSeparatorConstant),
			mapstructure.TextUnmarshallerHookFunc(),
		},
	}
}

// SetEmbeddedConfiguration stores the configuration merged beneath any file found on disk.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte) {
	if loader == nil {
		return
	}
	loader.embeddedConfiguration = append([]byte(nil), configurationData...)
}

// AddDecodeHook registers an additional hook applied while decoding into the target structure.
func (loader *ConfigurationLoader) AddDecodeHook(hook mapstructure.DecodeHookFunc) {
	if loader == nil || hook == nil {
		return
	}
	loader.decodeHooks = append(loader.decodeHooks, hook)
}

// LoadConfiguration populates targetConfiguration. An explicit configurationFilePath must exist;
// otherwise the search paths are consulted and a missing file falls back to embedded data.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, targetConfiguration any) (LoadedConfiguration, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigType(loader.configurationType)

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	if len(loader.embeddedConfiguration) > 0 {
		if mergeError := viperInstance.MergeConfig(bytes.NewReader(loader.embeddedConfiguration)); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationMergeErrorTemplateConstant, mergeError)
		}
	}

	fileFound, readError := loader.mergeConfigurationFile(viperInstance, strings.TrimSpace(configurationFilePath))
	if readError != nil {
		return LoadedConfiguration{}, readError
	}

	viperInstance.SetEnvPrefix(loader.environmentPrefix)
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(environmentKeySeparatorOldConstant, environmentKeySeparatorNewConstant))
	viperInstance.AutomaticEnv()

	decodeOption := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(loader.decodeHooks...))
	if unmarshalError := viperInstance.Unmarshal(targetConfiguration, decodeOption); unmarshalError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationUnmarshalErrorTemplateConstant, unmarshalError)
	}

	loadedConfiguration := LoadedConfiguration{EmbeddedOnly: !fileFound}
	if fileFound {
		loadedConfiguration.ConfigFileUsed = viperInstance.ConfigFileUsed()
	}
	return loadedConfiguration, nil
}

// StringToTextUnmarshalerSliceHookFunc splits a string into elements when the target is a slice whose
// elements decode themselves from text, so each element reaches mapstructure.TextUnmarshallerHookFunc.
func StringToTextUnmarshalerSliceHookFunc(separator string) mapstructure.DecodeHookFuncType {
	textUnmarshalerType := reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	return func(sourceType reflect.Type, targetType reflect.Type, data any) (any, error) {
		if sourceType.Kind() != reflect.String || targetType.Kind() != reflect.Slice {
			return data, nil
		}
		elementType := targetType.Elem()
		if !elementType.Implements(textUnmarshalerType) && !reflect.PointerTo(elementType).Implements(textUnmarshalerType) {
			return data, nil
		}
		rawValue := strings.TrimSpace(reflect.ValueOf(data).String())
		if len(rawValue) == 0 {
			return []string{}, nil
		}
		return strings.Split(rawValue, separator), nil
	}
}

func (loader *ConfigurationLoader) mergeConfigurationFile(viperInstance *viper.Viper, configurationFilePath string) (bool, error) {
	if len(configurationFilePath) > 0 {
		viperInstance.SetConfigFile(configurationFilePath)
		if readError := viperInstance.MergeInConfig(); readError != nil {
			return false, fmt.Errorf(configurationReadErrorTemplateConstant, configurationFilePath, readError)
		}
		return true, nil
	}

	viperInstance.SetConfigName(loader.configurationName)
	for _, searchPath := range loader.searchPaths {
		viperInstance.AddConfigPath(searchPath)
	}

	readError := viperInstance.MergeInConfig()
	if readError == nil {
		return true, nil
	}
	var notFoundError viper.ConfigFileNotFoundError
	if errors.As(readError, &notFoundError) {
		return false, nil
	}
	return false, fmt.Errorf(configurationSearchErrorTemplateConstant, readError)
}
