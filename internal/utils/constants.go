package utils

// EmptyString represents a reusable empty string constant.
const EmptyString = ""

// Project file names shared across packages.
const (
	// ManifestFileName is the per-project manifest storing selection state.
	ManifestFileName = ".allcode"
	// MarkerFileName is the default merge artifact written into the project.
	MarkerFileName = "allcode.txt"
	// GitIgnoreFileName is the name of the Git ignore file.
	GitIgnoreFileName = ".gitignore"
	// GitDirectoryName is the name of the Git repository directory.
	GitDirectoryName = ".git"
	// ConfigFileName is the local configuration file looked up in the project directory.
	ConfigFileName = "allcode.yaml"
	// GlobalConfigDirectoryName is the directory under the user's home holding global configuration.
	GlobalConfigDirectoryName = ".allcode"
	// GlobalConfigFileName is the configuration file inside GlobalConfigDirectoryName.
	GlobalConfigFileName = "config.yaml"
)

const (
	// LoggerInitializationFailedMessageFormat reports a logger construction failure.
	LoggerInitializationFailedMessageFormat = "initialize logger: %w"
	// ApplicationExecutionFailedMessage prefixes the fatal error reported by the entry point.
	ApplicationExecutionFailedMessage = "allcode failed"
)
