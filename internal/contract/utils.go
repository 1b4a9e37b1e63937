package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/strata/schema"
)

// Status label constants.
const (
	ErrorValue   = "Error"
	GapsValue    = "Gaps"
	FlaggedValue = "Flagged"
	CleanValue   = "Clean"
)

// Color variables for console output.
var (
	ErrorColor   = color.New(color.FgRed, color.Bold)     // ErrorColor represents a failed variable.
	GapsColor    = color.New(color.FgMagenta, color.Bold) // GapsColor represents values still missing after the chain.
	FlaggedColor = color.New(color.FgYellow)              // FlaggedColor represents values touched by a rule.
	CleanColor   = color.New(color.FgCyan)                // CleanColor represents an untouched variable.
)

// GetPlainLabel returns a plain text label for a variable status.
// This is the core logic used for CSV, JSON, and table printing.
func GetPlainLabel(status schema.VariableStatus) string {
	switch status {
	case schema.ErrorStatus:
		return ErrorValue
	case schema.GapsStatus:
		return GapsValue
	case schema.FlaggedStatus:
		return FlaggedValue
	default:
		return CleanValue
	}
}

// GetColorLabel returns a colored text label for console output (table).
func GetColorLabel(status schema.VariableStatus) string {
	text := GetPlainLabel(status)

	switch text {
	case ErrorValue:
		return ErrorColor.Sprint(text)
	case GapsValue:
		return GapsColor.Sprint(text)
	case FlaggedValue:
		return FlaggedColor.Sprint(text)
	default:
		return CleanColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path selects os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for level cache storage.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".strata_cache.db"
	}
	return filepath.Join(homeDir, ".strata_cache.db")
}

// GetRunDBFilePath returns the path to the SQLite DB file for run history.
func GetRunDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".strata_runs.db"
	}
	return filepath.Join(homeDir, ".strata_runs.db")
}

// TruncateName truncates a name to a maximum width with an ellipsis suffix.
// Requires maxWidth > 3 to leave space for the "..." and at least one character.
func TruncateName(name string, maxWidth int) string {
	runes := []rune(name)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return name
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
