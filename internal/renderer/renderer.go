// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package renderer implements the renderer driver: a single
// invocation of the external Kapitan-compatible templating engine over
// every target, collecting its stderr on failure without ever parsing
// its stdout. The engine is a black box fed a target manifest on stdin;
// its output tree is the only result the driver consumes.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"

	"github.com/projectsyn/commodore/internal/cerrors"
	"github.com/projectsyn/commodore/internal/target"
)

// Manifest is the JSON document written to the engine's stdin: every
// target plus the shared search paths the engine needs to resolve
// Jsonnet imports.
type Manifest struct {
	WorkingDir     string           `json:"working_dir"`
	LibPath        string           `json:"lib_path"`
	ClassSearch    []string         `json:"class_search_paths"`
	CompiledOutput string           `json:"compiled_output"`
	Targets        []target.Target `json:"targets"`
}

// Driver invokes the configured engine binary.
type Driver struct {
	// EngineBinary is the path to the Kapitan-compatible engine
	// executable.
	EngineBinary string
}

// Render invokes the engine once against every target in manifest. The
// engine is expected to bind the external variables "component" and
// "target" per target internally and to write output under
// compiled/<instance>/<output_path>/*; the driver does not parse its
// stdout, only its exit status and stderr.
func (d Driver) Render(ctx context.Context, manifest Manifest) error {
	payload, err := json.Marshal(manifest)
	if err != nil {
		return cerrors.Render(cerrors.Context{}, "cannot marshal render manifest: %v", err)
	}

	cmd := exec.CommandContext(ctx, d.EngineBinary)
	cmd.Dir = manifest.WorkingDir
	cmd.Stdin = bytes.NewReader(payload)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return cerrors.Engine(cerrors.Context{}, stderr.String(), "templating engine invocation failed: %v", err)
	}
	return nil
}
