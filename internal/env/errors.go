package env

import "errors"

// Environment errors.
var (
	// ErrActionNotFound is returned when no handler is registered for an
	// action's name and arity.
	ErrActionNotFound = errors.New("action not found")

	// ErrActionNameEmpty is returned when an action has no name.
	ErrActionNameEmpty = errors.New("action name cannot be empty")

	// ErrHandlerNil is returned when an action has no handler.
	ErrHandlerNil = errors.New("action handler cannot be nil")

	// ErrActionAlreadyRegistered is returned when registering a duplicate.
	ErrActionAlreadyRegistered = errors.New("action already registered")

	// ErrEnvironmentNotFound is returned when an environment name is unknown.
	ErrEnvironmentNotFound = errors.New("environment not found")
)
