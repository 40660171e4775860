package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"medialink/internal/scanner"
)

// ValidationSeverity represents the severity of a validation issue.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ConfigValidationError represents a single validation issue.
type ConfigValidationError struct {
	Field    string             // Config field with issue (e.g., "libraries[0].source")
	Message  string             // Human-readable description
	Severity ValidationSeverity // "error" or "warning"
}

func (e ConfigValidationError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult contains all validation findings.
type ValidationResult struct {
	Errors   []ConfigValidationError
	Warnings []ConfigValidationError
	Valid    bool // True if no errors (warnings OK)
}

// Err returns a ConfigError summarizing the errors, or nil if the result is valid.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		messages = append(messages, e.String())
	}
	return &ConfigError{
		Type:    ValidationError,
		Message: strings.Join(messages, "; "),
	}
}

// ValidateConfig checks the configuration, including the filesystem state of
// every library, and returns all findings.
func ValidateConfig(cfg *Configuration) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ConfigValidationError{},
		Warnings: []ConfigValidationError{},
	}

	var all []ConfigValidationError
	all = append(all, ValidateLibraries(cfg)...)
	all = append(all, ValidatePaths(cfg)...)
	all = append(all, ValidatePolicies(cfg)...)

	for _, err := range all {
		if err.Severity == SeverityError {
			result.Errors = append(result.Errors, err)
		} else {
			result.Warnings = append(result.Warnings, err)
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// ValidateLibraries checks names and tracking files for conflicts.
func ValidateLibraries(cfg *Configuration) []ConfigValidationError {
	var errors []ConfigValidationError

	if len(cfg.Libraries) == 0 {
		errors = append(errors, ConfigValidationError{
			Field:    "libraries",
			Message:  "at least one library is required",
			Severity: SeverityError,
		})
	}

	names := make(map[string]int)
	trackingFiles := make(map[string]int)
	for i, lib := range cfg.Libraries {
		field := formatField("libraries", i)

		if strings.TrimSpace(lib.Name) == "" {
			errors = append(errors, ConfigValidationError{
				Field:    field + ".name",
				Message:  "library name cannot be empty",
				Severity: SeverityError,
			})
		} else if first, exists := names[lib.Name]; exists {
			errors = append(errors, ConfigValidationError{
				Field:    field + ".name",
				Message:  fmt.Sprintf("duplicate library name %q conflicts with library at index %d", lib.Name, first),
				Severity: SeverityError,
			})
		} else {
			names[lib.Name] = i
		}

		if lib.Source == "" {
			errors = append(errors, ConfigValidationError{
				Field:    field + ".source",
				Message:  "source cannot be empty",
				Severity: SeverityError,
			})
		}
		if lib.Target == "" {
			errors = append(errors, ConfigValidationError{
				Field:    field + ".target",
				Message:  "target cannot be empty",
				Severity: SeverityError,
			})
		}

		tracking := filepath.Clean(cfg.TrackingFileFor(lib))
		if first, exists := trackingFiles[tracking]; exists {
			errors = append(errors, ConfigValidationError{
				Field:    field + ".trackingFile",
				Message:  fmt.Sprintf("tracking file %q is shared with library at index %d", tracking, first),
				Severity: SeverityWarning,
			})
		} else {
			trackingFiles[tracking] = i
		}
	}

	return errors
}

// ValidatePaths checks that every source exists and that targets can be used.
func ValidatePaths(cfg *Configuration) []ConfigValidationError {
	var errors []ConfigValidationError

	for i, lib := range cfg.Libraries {
		field := formatField("libraries", i)
		if lib.Source == "" || lib.Target == "" {
			continue
		}

		info, err := os.Stat(lib.Source)
		switch {
		case os.IsNotExist(err):
			errors = append(errors, ConfigValidationError{
				Field:    field + ".source",
				Message:  "directory does not exist: " + lib.Source,
				Severity: SeverityError,
			})
		case os.IsPermission(err):
			errors = append(errors, ConfigValidationError{
				Field:    field + ".source",
				Message:  "directory is not accessible: " + lib.Source,
				Severity: SeverityError,
			})
		case err != nil:
			errors = append(errors, ConfigValidationError{
				Field:    field + ".source",
				Message:  "error accessing directory: " + err.Error(),
				Severity: SeverityError,
			})
		case !info.IsDir():
			errors = append(errors, ConfigValidationError{
				Field:    field + ".source",
				Message:  "path is not a directory: " + lib.Source,
				Severity: SeverityError,
			})
		}

		if isWithin(lib.Source, lib.Target) {
			errors = append(errors, ConfigValidationError{
				Field:    field + ".target",
				Message:  fmt.Sprintf("target %q is inside source %q", lib.Target, lib.Source),
				Severity: SeverityError,
			})
			continue
		}

		info, err = os.Stat(lib.Target)
		if err == nil {
			if !info.IsDir() {
				errors = append(errors, ConfigValidationError{
					Field:    field + ".target",
					Message:  "path exists but is not a directory: " + lib.Target,
					Severity: SeverityError,
				})
			}
			continue
		}
		if !os.IsNotExist(err) {
			errors = append(errors, ConfigValidationError{
				Field:    field + ".target",
				Message:  "error accessing directory: " + err.Error(),
				Severity: SeverityError,
			})
			continue
		}
		errors = append(errors, ConfigValidationError{
			Field:    field + ".target",
			Message:  "directory does not exist and will be created: " + lib.Target,
			Severity: SeverityWarning,
		})
	}

	return errors
}

// ValidatePolicies checks that policy values are valid.
func ValidatePolicies(cfg *Configuration) []ConfigValidationError {
	var errors []ConfigValidationError

	if !scanner.ValidSymlinkPolicy(cfg.SymlinkPolicy) {
		errors = append(errors, ConfigValidationError{
			Field:    "symlinkPolicy",
			Message:  "invalid symlink policy: \"" + cfg.SymlinkPolicy + "\". Must be \"follow\", \"skip\", or \"error\"",
			Severity: SeverityError,
		})
	}

	for i, dir := range cfg.PassthroughDirectories {
		if strings.TrimSpace(dir) == "" || strings.ContainsAny(dir, `/\`) {
			errors = append(errors, ConfigValidationError{
				Field:    formatField("passthroughDirectories", i),
				Message:  "passthrough entries must be plain directory names",
				Severity: SeverityError,
			})
		}
	}

	if cfg.Watch != nil && cfg.Watch.DebounceSeconds < 0 {
		errors = append(errors, ConfigValidationError{
			Field:    "watch.debounceSeconds",
			Message:  "debounceSeconds must be a non-negative integer",
			Severity: SeverityError,
		})
	}

	return errors
}

// formatField creates a field reference string for validation errors.
func formatField(name string, index int) string {
	return fmt.Sprintf("%s[%d]", name, index)
}

// isWithin reports whether path equals root or lies below it, after making
// both absolute.
func isWithin(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if absRoot == absPath {
		return true
	}
	return strings.HasPrefix(absPath, absRoot+string(filepath.Separator))
}
