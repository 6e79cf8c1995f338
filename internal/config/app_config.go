package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/allcode/internal/merge"
	"github.com/temirov/allcode/internal/tokenizer"
	"github.com/temirov/allcode/internal/tree"
	"github.com/temirov/allcode/internal/utils"
)

const (
	// DefaultDebounce is the quiet period before a token recount runs.
	DefaultDebounce = 300 * time.Millisecond

	loadConfigurationErrorFormat   = "read configuration from %s: %w"
	decodeConfigurationErrorFormat = "decode configuration from %s: %w"
	parseDebounceErrorFormat       = "parse tokens.debounce %q: %w"
)

var errNegativeDuration = errors.New("duration must not be negative")

// DefaultExtensions lists the source file extensions shown when no
// configuration overrides them.
var DefaultExtensions = []string{
	".c", ".cc", ".cpp", ".cs", ".css", ".go", ".h", ".hpp", ".html", ".java",
	".js", ".json", ".jsx", ".kt", ".lua", ".md", ".php", ".py", ".rb", ".rs",
	".scss", ".sh", ".sql", ".swift", ".toml", ".ts", ".tsx", ".txt", ".xml",
	".yaml", ".yml",
}

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds the user configurable defaults.
type ApplicationConfiguration struct {
	Extensions []string            `mapstructure:"extensions"`
	Ignore     IgnoreConfiguration `mapstructure:"ignore"`
	Tokens     TokenConfiguration  `mapstructure:"tokens"`
	Merge      MergeConfiguration  `mapstructure:"merge"`
}

// IgnoreConfiguration controls which paths are hidden from the tree.
type IgnoreConfiguration struct {
	UseGitignore *bool    `mapstructure:"use_gitignore"`
	Exclude      []string `mapstructure:"exclude"`
}

// TokenConfiguration controls token counting.
type TokenConfiguration struct {
	Model    string `mapstructure:"model"`
	Debounce string `mapstructure:"debounce"`
}

// MergeConfiguration controls merge output defaults.
type MergeConfiguration struct {
	Mode      string `mapstructure:"mode"`
	Clipboard *bool  `mapstructure:"clipboard"`
}

// LoadApplicationConfiguration loads configuration from the global file and
// then the local one, the local file overriding the global one field by field.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalConfig, loadErr := loadConfigurationFromPath(GlobalConfigurationPath(homeDirectory))
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Overlay(globalConfig)
	}

	localConfig, loadErr := loadConfigurationFromPath(resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath))
	if loadErr != nil {
		return ApplicationConfiguration{}, loadErr
	}
	merged = merged.Overlay(localConfig)
	merged.Ignore.Exclude = utils.DeduplicatePatterns(merged.Ignore.Exclude)

	return merged, nil
}

// GlobalConfigurationPath returns the global configuration file under homeDirectory.
func GlobalConfigurationPath(homeDirectory string) string {
	return filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName)
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) string {
	if explicitPath == "" {
		return filepath.Join(workingDirectory, utils.ConfigFileName)
	}
	if filepath.IsAbs(explicitPath) {
		return explicitPath
	}
	return filepath.Join(workingDirectory, explicitPath)
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf(loadConfigurationErrorFormat, path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf(decodeConfigurationErrorFormat, path, decodeErr)
	}
	return config, nil
}

// Overlay applies override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Overlay(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	if len(override.Extensions) > 0 {
		result.Extensions = append([]string{}, override.Extensions...)
	}
	result.Ignore = result.Ignore.merge(override.Ignore)
	result.Tokens = result.Tokens.merge(override.Tokens)
	result.Merge = result.Merge.merge(override.Merge)
	return result
}

func (config IgnoreConfiguration) merge(override IgnoreConfiguration) IgnoreConfiguration {
	result := config
	if len(override.Exclude) > 0 {
		result.Exclude = append([]string{}, utils.DeduplicatePatterns(override.Exclude)...)
	}
	if override.UseGitignore != nil {
		result.UseGitignore = cloneBool(override.UseGitignore)
	}
	return result
}

func (config TokenConfiguration) merge(override TokenConfiguration) TokenConfiguration {
	result := config
	if override.Model != "" {
		result.Model = override.Model
	}
	if override.Debounce != "" {
		result.Debounce = override.Debounce
	}
	return result
}

func (config MergeConfiguration) merge(override MergeConfiguration) MergeConfiguration {
	result := config
	if override.Mode != "" {
		result.Mode = override.Mode
	}
	if override.Clipboard != nil {
		result.Clipboard = cloneBool(override.Clipboard)
	}
	return result
}

// AllowedExtensions returns the normalized configured extensions or DefaultExtensions.
func (config ApplicationConfiguration) AllowedExtensions() []string {
	if normalized := tree.NormalizeExtensions(config.Extensions); len(normalized) > 0 {
		return normalized
	}
	return tree.NormalizeExtensions(DefaultExtensions)
}

// GitignoreEnabled reports whether .gitignore patterns apply; defaults to true.
func (config ApplicationConfiguration) GitignoreEnabled() bool {
	return boolOrDefault(config.Ignore.UseGitignore, true)
}

// TokenModel returns the configured token model or the offline heuristic.
func (config ApplicationConfiguration) TokenModel() string {
	if config.Tokens.Model == "" {
		return tokenizer.HeuristicModel
	}
	return config.Tokens.Model
}

// DebounceDelay parses tokens.debounce, falling back to DefaultDebounce.
func (config ApplicationConfiguration) DebounceDelay() (time.Duration, error) {
	if config.Tokens.Debounce == "" {
		return DefaultDebounce, nil
	}
	delay, parseErr := time.ParseDuration(config.Tokens.Debounce)
	if parseErr != nil {
		return 0, fmt.Errorf(parseDebounceErrorFormat, config.Tokens.Debounce, parseErr)
	}
	if delay < 0 {
		return 0, fmt.Errorf(parseDebounceErrorFormat, config.Tokens.Debounce, errNegativeDuration)
	}
	return delay, nil
}

// MergeMode returns the configured merge mode, merged by default.
func (config ApplicationConfiguration) MergeMode() (merge.Mode, error) {
	if config.Merge.Mode == "" {
		return merge.ModeMerged, nil
	}
	return merge.ParseMode(config.Merge.Mode)
}

// ClipboardEnabled reports whether merges are copied to the clipboard by default.
func (config ApplicationConfiguration) ClipboardEnabled() bool {
	return boolOrDefault(config.Merge.Clipboard, false)
}

func boolOrDefault(value *bool, defaultValue bool) bool {
	if value == nil {
		return defaultValue
	}
	return *value
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
