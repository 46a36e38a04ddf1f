package config

import "errors"

var (
	// ErrLoadConfig wraps failures reading defaults, the YAML file or SENSOR_* variables.
	ErrLoadConfig = errors.New("config: load")
	// ErrInvalidConfig marks a loaded configuration that fails validation.
	ErrInvalidConfig = errors.New("config: invalid")
)
