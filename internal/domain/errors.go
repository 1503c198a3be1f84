package domain

import (
	"errors"
	"fmt"
)

// Build-time errors raised while defining ports, blueprints and chains.
var (
	// ErrDuplicatePort indicates a port name was registered twice in one
	// configuration builder.
	ErrDuplicatePort = errors.New("duplicate port")

	// ErrInvalidPort indicates a port with an empty name, unknown direction
	// or unknown value type.
	ErrInvalidPort = errors.New("invalid port")

	// ErrEmptyConfiguration indicates a configuration without ports for a
	// blueprint that requires at least one.
	ErrEmptyConfiguration = errors.New("empty configuration")

	// ErrInvalidConfiguration indicates a configuration that does not belong
	// to the blueprint it was handed to.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidParameter indicates a node parameter that is missing or has
	// the wrong shape for its blueprint.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnknownPort indicates a reference to a port the configuration does
	// not declare.
	ErrUnknownPort = errors.New("unknown port")

	// ErrPortDirection indicates an input used as an output or vice versa.
	ErrPortDirection = errors.New("wrong port direction")

	// ErrTypeMismatch indicates a value or link incompatible with a port type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnknownBlueprint indicates a blueprint id missing from the registry.
	ErrUnknownBlueprint = errors.New("unknown blueprint")

	// ErrDuplicateBlueprint indicates a blueprint id registered twice.
	ErrDuplicateBlueprint = errors.New("duplicate blueprint")

	// ErrUnknownNode indicates a reference to a node id absent from a chain.
	ErrUnknownNode = errors.New("unknown node")

	// ErrDuplicateNode indicates a node id used twice in one chain.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrInputConnected indicates a second link or literal for an input
	// port that is already fed.
	ErrInputConnected = errors.New("input already connected")

	// ErrCycle indicates a link that would make the chain cyclic.
	ErrCycle = errors.New("cycle detected")

	// ErrUnconnectedInput indicates a required input with neither a link nor
	// a bound literal.
	ErrUnconnectedInput = errors.New("unconnected input")
)

// Run-time errors. Node failures are signals, not errors; these describe
// contract violations and aggregate run outcomes.
var (
	// ErrContractViolation indicates a node that broke the run contract,
	// for example by signalling neither success nor failure.
	ErrContractViolation = errors.New("node contract violation")

	// ErrFuelExhausted indicates the run's fuel budget cannot cover a charge.
	ErrFuelExhausted = errors.New("fuel exhausted")

	// ErrChainConsumed indicates a chain instance handed to a second run.
	ErrChainConsumed = errors.New("chain instance already executed")

	// ErrRunFailed indicates a run in which a required node did not succeed.
	ErrRunFailed = errors.New("run failed")

	// ErrRunCancelled indicates a run stopped before completion.
	ErrRunCancelled = errors.New("run cancelled")

	// ErrRunExhausted indicates a run that hit its pass limit with work left.
	ErrRunExhausted = errors.New("run exhausted pass limit")
)

// PortError describes a problem with one port of a configuration.
type PortError struct {
	// Port is the name of the offending port.
	Port string

	// Operation is what was being done with the port.
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for PortError.
func (e *PortError) Error() string {
	return fmt.Sprintf("port error: operation=%s, port=%q, err=%v", e.Operation, e.Port, e.Err)
}

// Unwrap returns the underlying error.
func (e *PortError) Unwrap() error { return e.Err }

// NewPortError creates a new PortError with the given details.
func NewPortError(port, operation string, err error) *PortError {
	return &PortError{
		Port:      port,
		Operation: operation,
		Err:       err,
	}
}

// ConfigurationError describes a configuration or parameter rejected by a
// blueprint.
type ConfigurationError struct {
	// Blueprint is the id of the blueprint that rejected the configuration.
	Blueprint string

	// Configuration is the rendered signature involved, if any.
	Configuration string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	if e.Configuration == "" {
		return fmt.Sprintf("configuration error: blueprint=%s, err=%v", e.Blueprint, e.Err)
	}
	return fmt.Sprintf("configuration error: blueprint=%s, configuration=%s, err=%v",
		e.Blueprint, e.Configuration, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(blueprint string, cfg NodeConfiguration, err error) *ConfigurationError {
	e := &ConfigurationError{Blueprint: blueprint, Err: err}
	if cfg != nil {
		e.Configuration = cfg.String()
	}
	return e
}

// LinkError describes a rejected link between two node ports.
type LinkError struct {
	// From is the producing endpoint as node.port.
	From string

	// To is the consuming endpoint as node.port.
	To string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for LinkError.
func (e *LinkError) Error() string {
	return fmt.Sprintf("link error: %s -> %s: %v", e.From, e.To, e.Err)
}

// Unwrap returns the underlying error.
func (e *LinkError) Unwrap() error { return e.Err }

// NewLinkError creates a LinkError for link l.
func NewLinkError(l Link, err error) *LinkError {
	return &LinkError{From: l.Source(), To: l.Target(), Err: err}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}
