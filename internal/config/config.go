// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides Commodore's own process configuration: the
// layered loader (defaults -> config file -> environment) that the CLI
// uses to build everything else (Lieutenant client, git cache,
// logging). It is unrelated to the reclass-style cluster inventory
// hierarchy, which lives in package inventory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	validator "github.com/go-playground/validator/v10"
)

// Config holds every process-wide setting recognized by Commodore,
// sourced from the documented environment variables plus an optional
// config file and CLI flags.
type Config struct {
	APIURL   string `koanf:"api_url" validate:"omitempty,url"`
	APIToken string `koanf:"api_token"`
	Username string `koanf:"username"`
	Usermail string `koanf:"usermail" validate:"omitempty,email"`

	WorkingDir string `koanf:"working_dir" validate:"required"`
	CacheDir   string `koanf:"cache_dir" validate:"required"`

	GitParallelism    int `koanf:"git_parallelism" validate:"required,min=1"`
	LieutenantTimeout int `koanf:"lieutenant_timeout_seconds" validate:"required,min=1"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// EngineBinary is the Kapitan-compatible templating engine invoked by
	// the renderer driver; JsonnetBinary is the same family of
	// binary used for "jsonnet"-type post-processing filters.
	EngineBinary  string `koanf:"engine_binary" validate:"required"`
	JsonnetBinary string `koanf:"jsonnet_binary" validate:"required"`

	// KustomizeWrapperPath is injected into every target as
	// parameters._kustomize_wrapper.
	KustomizeWrapperPath string `koanf:"kustomize_wrapper_path"`

	// CatalogBranch is the branch of the per-cluster catalog repository
	// Commodore commits and pushes to.
	CatalogBranch string `koanf:"catalog_branch" validate:"required"`

	// GlobalRepoRevisionOverride and TenantRepoRevisionOverride are not
	// filled by any configuration layer (koanf:"-"); the compile command
	// passes its "-*-revision-override" flag values in compile.Options.
	GlobalRepoRevisionOverride string `koanf:"-"`
	TenantRepoRevisionOverride string `koanf:"-"`
}

// Default returns the built-in defaults, the lowest-priority layer.
func Default() Config {
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, _ := os.UserHomeDir()
		cacheHome = filepath.Join(home, ".cache")
	}
	return Config{
		WorkingDir:        ".",
		CacheDir:          filepath.Join(cacheHome, "commodore"),
		GitParallelism:    4,
		LieutenantTimeout: 5,
		LogLevel:          "info",
		LogFormat:         "text",
		EngineBinary:      "kapitan",
		JsonnetBinary:     "kapitan",
		CatalogBranch:     "master",
	}
}

// Loader layers defaults, an optional YAML file, and environment
// variables (COMMODORE__* prefix, double underscore nesting) over each
// other, highest layer winning.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
}

// NewLoader creates a configuration loader. envPrefix is applied with a
// trailing double underscore, e.g. "COMMODORE" -> "COMMODORE__".
func NewLoader(envPrefix string) *Loader {
	return &Loader{
		k:         koanf.New("."),
		envPrefix: envPrefix + "__",
	}
}

// Load merges defaults, configPath (if non-empty) and environment
// variables into a Config, validates it, and returns it.
func (l *Loader) Load(defaults Config, configPath string) (Config, error) {
	if err := l.k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return Config{}, fmt.Errorf("config file not found: %s", configPath)
		}
		if err := l.k.Load(file.Provider(configPath), koanfyaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	envProvider := env.Provider(l.envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		return key
	})
	if err := l.k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Legacy single-variable env overrides, applied with
	// highest priority since they're the documented contract.
	for envVar, key := range map[string]string{
		"COMMODORE_API_URL":    "api_url",
		"COMMODORE_API_TOKEN":  "api_token",
		"COMMODORE_USERNAME":   "username",
		"COMMODORE_USERMAIL":   "usermail",
	} {
		if v, ok := os.LookupEnv(envVar); ok {
			if err := l.k.Set(key, v); err != nil {
				return Config{}, fmt.Errorf("failed to set %s: %w", key, err)
			}
		}
	}

	var out Config
	if err := l.k.Unmarshal("", &out); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(out); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return out, nil
}
