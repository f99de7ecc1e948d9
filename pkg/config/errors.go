package config

import "errors"

// ErrConfigValidation indicates the configuration (pipeline config or plugin
// manifest) is syntactically readable but semantically invalid: unknown enum
// values, missing required keys, duplicate plugins, schema violations.
// Errors returned by this package wrap it with fmt.Errorf("%w: ...").
var ErrConfigValidation = errors.New("configuration validation failed")

// ErrConfigRead indicates a configuration file could not be opened or parsed.
var ErrConfigRead = errors.New("configuration read failed")
