package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrRuleDefinition  = errors.New("rule definition error")
	ErrUnknownFunction = errors.New("unknown function")
	ErrMissingVariable = errors.New("missing variable")
	ErrLevelCycle      = errors.New("level cycle")
)

// RuleDefinitionError reports a malformed or conflicting rule row.
type RuleDefinitionError struct {
	Family string // "quality" or "gapfill"
	Key    RuleKey
	Reason string
	Err    error
}

func (e *RuleDefinitionError) Error() string {
	msg := fmt.Sprintf("%s rule (logger=%s, flagnum=%d, varname=%s): %s", e.Family, e.Key.Logger, e.Key.Flagnum, e.Key.Varname, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *RuleDefinitionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRuleDefinition}
	}
	return []error{ErrRuleDefinition, e.Err}
}

// UnknownFunctionError reports a function name missing from the registry.
type UnknownFunctionError struct {
	Kind FunctionKind
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown %s function %q", e.Kind, e.Name)
}

// Unwrap returns ErrUnknownFunction.
func (e *UnknownFunctionError) Unwrap() error {
	return ErrUnknownFunction
}

// MissingVariableError reports a rule targeting a variable absent at a level.
type MissingVariableError struct {
	Logger  string
	Level   string
	Varname string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("variable %q not found in %s/%s", e.Varname, e.Logger, e.Level)
}

// Unwrap returns ErrMissingVariable.
func (e *MissingVariableError) Unwrap() error {
	return ErrMissingVariable
}

// LevelCycleError reports a level chain whose dependencies cannot be ordered.
type LevelCycleError struct {
	Logger string
	Levels []string
	Reason string
}

func (e *LevelCycleError) Error() string {
	if len(e.Levels) == 0 {
		return fmt.Sprintf("level dependency error for logger %s: %s", e.Logger, e.Reason)
	}
	return fmt.Sprintf("level dependency error for logger %s: %s (%s)", e.Logger, e.Reason, strings.Join(e.Levels, " -> "))
}

// Unwrap returns ErrLevelCycle.
func (e *LevelCycleError) Unwrap() error {
	return ErrLevelCycle
}

// ContextError annotates a failure with the logger, level and variable it occurred in.
type ContextError struct {
	Logger  string
	Level   string
	Varname string
	Err     error
}

func (e *ContextError) Error() string {
	parts := make([]string, 0, 3)
	if e.Logger != "" {
		parts = append(parts, "logger="+e.Logger)
	}
	if e.Level != "" {
		parts = append(parts, "level="+e.Level)
	}
	if e.Varname != "" {
		parts = append(parts, "varname="+e.Varname)
	}
	return fmt.Sprintf("[%s] %v", strings.Join(parts, " "), e.Err)
}

// Unwrap returns the annotated error.
func (e *ContextError) Unwrap() error {
	return e.Err
}

// WithContext wraps err with logger/level/variable context. A nil err stays nil.
func WithContext(err error, logger, level, varname string) error {
	if err == nil {
		return nil
	}
	return &ContextError{Logger: logger, Level: level, Varname: varname, Err: err}
}
