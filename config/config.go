// Package config loads runner configuration from a config file, environment
// variables, and flags, in that order of increasing precedence.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/spindleci/spindle/errors"
)

// Config holds runner settings that live outside the pipeline definition.
type Config struct {
	// Registry is the registry host images are pushed to, e.g. "ghcr.io".
	Registry string `mapstructure:"registry"`

	// ImageRepository is the default repository for publish blocks that do
	// not name one, e.g. "team/service". Combined with Registry it forms
	// the fully qualified image name.
	ImageRepository string `mapstructure:"image_repository"`

	// SecretEnvPrefix selects which process environment variables are
	// visible to the env secret provider.
	SecretEnvPrefix string `mapstructure:"secret_env_prefix"`

	// MaxParallel bounds concurrent stage execution.
	MaxParallel int `mapstructure:"max_parallel"`

	// StepTimeout bounds each step. Zero disables the limit.
	StepTimeout time.Duration `mapstructure:"step_timeout"`

	// PlainHTTP talks to the registry over HTTP when verifying pushed tags.
	PlainHTTP bool `mapstructure:"plain_http"`

	// VerifyPush resolves pushed tags against the registry after a publish.
	VerifyPush bool `mapstructure:"verify_push"`
}

// ImageName returns the fully qualified default image repository, or empty
// when no default is configured.
func (c *Config) ImageName() string {
	if c.ImageRepository == "" {
		return ""
	}
	if c.Registry == "" {
		return c.ImageRepository
	}
	return c.Registry + "/" + c.ImageRepository
}

// Validate rejects settings the runner cannot work with.
func (c *Config) Validate() error {
	if c.MaxParallel < 0 {
		return errors.New(errors.CodeInvalidConfig, "max_parallel cannot be negative")
	}
	if c.StepTimeout < 0 {
		return errors.New(errors.CodeInvalidConfig, "step_timeout cannot be negative")
	}
	if c.VerifyPush && c.ImageName() == "" {
		return errors.New(errors.CodeInvalidConfig,
			"verify_push requires registry and image_repository")
	}
	return nil
}

// SetDefaults registers defaults on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("secret_env_prefix", "SPINDLE_SECRET_")
	v.SetDefault("max_parallel", 4)
	v.SetDefault("step_timeout", time.Duration(0))
	v.SetDefault("plain_http", false)
	v.SetDefault("verify_push", false)
}

// FromViper decodes and validates configuration from a viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.CodeInvalidConfig, err, "decoding configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
