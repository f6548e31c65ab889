package loom

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("loom: model not found")

	// ErrConfiguration is returned for invalid or missing configuration.
	ErrConfiguration = errors.New("loom: invalid configuration")

	// ErrMassAssignment is returned when a guarded column is assigned
	// under strict mass-assignment.
	ErrMassAssignment = errors.New("loom: mass assignment denied")

	// ErrNotLoaded is returned when a relation is accessed before it
	// was loaded and strict relation access is enabled.
	ErrNotLoaded = errors.New("loom: relation not loaded")
)

// ConfigurationError reports an invalid toolkit configuration, such as a
// missing connection entry, mutually exclusive hidden and visible sets, or
// an unresolved relationship target.
type ConfigurationError struct {
	msg string
}

// Error returns the error string.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("loom: configuration: %s", e.msg)
}

// Is reports whether the target error matches ConfigurationError.
func (e *ConfigurationError) Is(err error) bool {
	return err == ErrConfiguration
}

// NewConfigurationError returns a new ConfigurationError with the given message.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{msg: fmt.Sprintf(format, args...)}
}

// IsConfigurationError returns true if the error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigurationError
	return errors.As(err, &e) || errors.Is(err, ErrConfiguration)
}

// QueryError wraps any driver-level error raised while compiling or
// executing a statement. It carries the compiled SQL and its bindings so
// callers can log or replay the failing statement. Queries are never
// retried by the core.
type QueryError struct {
	SQL      string
	Bindings []any
	Err      error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	return fmt.Sprintf("loom: query %q bindings %v: %v", e.SQL, e.Bindings, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *QueryError) Unwrap() error { return e.Err }

// NewQueryError returns a new QueryError wrapping err.
func NewQueryError(sql string, bindings []any, err error) *QueryError {
	return &QueryError{SQL: sql, Bindings: bindings, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// NotFoundError is returned by FindOrFail, FirstOrFail and Fresh when no
// row matches.
type NotFoundError struct {
	Model string
	Key   any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("loom: %s not found (key=%v)", e.Model, e.Key)
	}
	return fmt.Sprintf("loom: %s not found", e.Model)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// NewNotFoundError returns a new NotFoundError for the given model and key.
func NewNotFoundError(model string, key any) *NotFoundError {
	return &NotFoundError{Model: model, Key: key}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotLoadedError is returned when serializing an unloaded relation under
// strict relation access. The default mode is lenient: unloaded relations
// are omitted from serialization.
type NotLoadedError struct {
	Relation string
}

// Error returns the error string.
func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("loom: relation %q was not loaded", e.Relation)
}

// Is reports whether the target error matches NotLoadedError.
func (e *NotLoadedError) Is(err error) bool {
	return err == ErrNotLoaded
}

// NewNotLoadedError returns a new NotLoadedError for the given relation name.
func NewNotLoadedError(relation string) *NotLoadedError {
	return &NotLoadedError{Relation: relation}
}

// IsNotLoaded returns true if the error is a NotLoadedError.
func IsNotLoaded(err error) bool {
	if err == nil {
		return false
	}
	var e *NotLoadedError
	return errors.As(err, &e) || errors.Is(err, ErrNotLoaded)
}

// MassAssignmentError is returned when Create or Update receives a guarded
// column and strict mass-assignment is requested.
type MassAssignmentError struct {
	Model  string
	Column string
}

// Error returns the error string.
func (e *MassAssignmentError) Error() string {
	return fmt.Sprintf("loom: %s: column %q is guarded against mass assignment", e.Model, e.Column)
}

// Is reports whether the target error matches MassAssignmentError.
func (e *MassAssignmentError) Is(err error) bool {
	return err == ErrMassAssignment
}

// NewMassAssignmentError returns a new MassAssignmentError.
func NewMassAssignmentError(model, column string) *MassAssignmentError {
	return &MassAssignmentError{Model: model, Column: column}
}

// IsMassAssignmentError returns true if the error is a MassAssignmentError.
func IsMassAssignmentError(err error) bool {
	if err == nil {
		return false
	}
	var e *MassAssignmentError
	return errors.As(err, &e) || errors.Is(err, ErrMassAssignment)
}

// MigrationError reports a failed migration file. The failing file is
// rolled back in its own transaction; prior files in the batch stay
// applied unless the driver supports transactional DDL.
type MigrationError struct {
	File string
	Err  error
}

// Error returns the error string.
func (e *MigrationError) Error() string {
	return fmt.Sprintf("loom: migration %s: %v", e.File, e.Err)
}

// Unwrap returns the underlying error.
func (e *MigrationError) Unwrap() error { return e.Err }

// NewMigrationError returns a new MigrationError for the given file.
func NewMigrationError(file string, err error) *MigrationError {
	return &MigrationError{File: file, Err: err}
}

// IsMigrationError returns true if the error is a MigrationError.
func IsMigrationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MigrationError
	return errors.As(err, &e)
}
