package model

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the sentinel behind every ConfigurationError.
var ErrConfiguration = errors.New("invalid fabric configuration")

// ConfigurationError reports an invalid density, tier count or parameter.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}
