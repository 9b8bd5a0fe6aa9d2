package config

// Namespace is the configuration namespace prefix for all lintstorm
// settings. Option keys in the store are "<Namespace>.<option>".
const Namespace = "lintstorm"

// LegacyExtraPathsKey is the deprecated extra-search-paths option. It is
// consumed read-only for back compatibility; its value feeds
// Settings.ExtraPaths but the key itself is never written.
const LegacyExtraPathsKey = "python.analysis.extraPaths"

// ImportStrategy selects where the lint tool's libraries come from.
type ImportStrategy string

const (
	// ImportBundled prefers the libraries shipped with the bridge.
	ImportBundled ImportStrategy = "useBundled"

	// ImportFromEnvironment prefers libraries from the active interpreter's
	// environment, falling back to the bundled copies.
	ImportFromEnvironment ImportStrategy = "fromEnvironment"
)

// NotificationPolicy controls when user-facing notifications are raised
// in addition to log output.
type NotificationPolicy string

const (
	NotifyOff       NotificationPolicy = "off"
	NotifyOnError   NotificationPolicy = "onError"
	NotifyOnWarning NotificationPolicy = "onWarning"
	NotifyAlways    NotificationPolicy = "always"
)

// Severity is the diagnostic severity reported to the host editor.
type Severity string

const (
	SeverityError       Severity = "Error"
	SeverityWarning     Severity = "Warning"
	SeverityInformation Severity = "Information"
	SeverityHint        Severity = "Hint"
)

// Settings is the fully resolved configuration for one workspace scope
// (or the global scope, with WorkspaceKey empty). A Settings value is
// constructed fresh on every trigger and never mutated in place.
type Settings struct {
	// WorkspaceKey identifies the scope, typically the workspace URI.
	WorkspaceKey string

	// Cwd is the working directory for tool invocations.
	Cwd string

	// Enabled reports whether linting is active for this scope.
	Enabled bool

	// Args are extra positional arguments passed to the tool. Order is
	// preserved end to end; the tool is positional-argument sensitive.
	Args []string

	// Path overrides the tool executable. Each element may be a single
	// token or a full command. Empty means run the bundled server via
	// the interpreter.
	Path []string

	// Severity maps a diagnostic category or tool-specific code to the
	// severity shown in the editor. Unknown keys are kept so individual
	// diagnostics can be overridden by code.
	Severity map[string]Severity

	// IgnorePatterns are glob patterns for files the tool should skip.
	IgnorePatterns []string

	// Interpreter is the command used to run the bundled server when
	// Path is not set.
	Interpreter []string

	// ImportStrategy selects bundled vs environment libraries.
	ImportStrategy ImportStrategy

	// ShowNotifications is the user notification policy.
	ShowNotifications NotificationPolicy

	// LintOnChange runs the tool on unsaved changes instead of save only.
	LintOnChange bool

	// ExtraPaths are additional module search paths, read from the
	// legacy option for back compatibility.
	ExtraPaths []string
}

// DefaultSeverity returns the fixed default category-to-severity mapping.
func DefaultSeverity() map[string]Severity {
	return map[string]Severity{
		"convention": SeverityInformation,
		"error":      SeverityError,
		"fatal":      SeverityError,
		"refactor":   SeverityHint,
		"warning":    SeverityWarning,
		"info":       SeverityInformation,
	}
}

// SeverityFor returns the severity for a single diagnostic, trying the
// tool's symbol first, then the message code, then the category type.
// Unmapped diagnostics default to Error so they are never silently hidden.
func SeverityFor(severity map[string]Severity, symbol, code, category string) Severity {
	if s, ok := severity[symbol]; ok {
		return s
	}
	if s, ok := severity[code]; ok {
		return s
	}
	if s, ok := severity[category]; ok {
		return s
	}
	return SeverityError
}

// restartKeys are the setting names whose change requires a client
// restart. Changes to any other key are ignored by the lifecycle manager.
var restartKeys = []string{
	Namespace + ".args",
	Namespace + ".cwd",
	Namespace + ".enabled",
	Namespace + ".severity",
	Namespace + ".path",
	Namespace + ".interpreter",
	Namespace + ".importStrategy",
	Namespace + ".showNotifications",
	Namespace + ".ignorePatterns",
	Namespace + ".lintOnChange",
	LegacyExtraPathsKey,
}

// RequiresRestart reports whether a change to the given setting key
// must restart the lint server client.
func RequiresRestart(key string) bool {
	for _, k := range restartKeys {
		if k == key {
			return true
		}
	}
	return false
}

// RestartKeys returns a copy of the restart watch list.
func RestartKeys() []string {
	keys := make([]string, len(restartKeys))
	copy(keys, restartKeys)
	return keys
}
