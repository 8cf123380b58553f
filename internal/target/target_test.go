// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package target

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/projectsyn/commodore/internal/model"
)

func instance(name string, base *model.Component) model.ComponentInstance {
	return model.ComponentInstance{InstanceName: name, Base: base, CheckoutPath: base.CheckoutPath}
}

func TestBuild_IdentityInstance(t *testing.T) {
	t.Parallel()

	nfs := &model.Component{Name: "nfs", CheckoutPath: "/work/dependencies/nfs"}
	params := map[string]any{
		"nfs": map[string]any{
			"server": "x",
			"kapitan": map[string]any{
				"compile": []any{
					map[string]any{
						"input_type":  "jsonnet",
						"input_paths": []any{"component/main.jsonnet"},
						"output_path": "nfs",
					},
				},
			},
		},
	}

	b := Builder{KustomizeWrapper: "/opt/run-kustomize"}
	targets, err := b.Build([]model.ComponentInstance{instance("nfs", nfs)}, nil, params)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}

	tgt := targets[0]
	if tgt.Name != "nfs" {
		t.Errorf("target name = %q, want nfs", tgt.Name)
	}
	if got := tgt.Parameters["_instance"]; got != "nfs" {
		t.Errorf("_instance = %v, want nfs", got)
	}
	if got := tgt.Parameters["_base_directory"]; got != "/work/dependencies/nfs" {
		t.Errorf("_base_directory = %v, want /work/dependencies/nfs", got)
	}
	if got := tgt.Parameters["_kustomize_wrapper"]; got != "/opt/run-kustomize" {
		t.Errorf("_kustomize_wrapper = %v", got)
	}

	wantClasses := []string{"defaults.nfs", "components.nfs"}
	if diff := cmp.Diff(wantClasses, tgt.Classes); diff != "" {
		t.Errorf("classes mismatch (-want +got):\n%s", diff)
	}

	wantSpec := []RenderStep{{
		InputType:  "jsonnet",
		InputPaths: []string{"component/main.jsonnet"},
		OutputPath: "nfs/nfs",
	}}
	if diff := cmp.Diff(wantSpec, tgt.RenderSpec); diff != "" {
		t.Errorf("render spec mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_AliasOverlay(t *testing.T) {
	t.Parallel()

	nfs := &model.Component{
		Name:         "nfs",
		CheckoutPath: "/work/dependencies/nfs",
		Metadata:     model.ComponentMetadata{MultiInstance: true},
	}
	params := map[string]any{
		"nfs":   map[string]any{"server": "x", "port": 2049},
		"nfs_b": map[string]any{"server": "y"},
	}

	targets, err := Builder{}.Build([]model.ComponentInstance{
		instance("nfs-a", nfs),
		instance("nfs-b", nfs),
	}, nil, params)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}

	byName := map[string]Target{}
	for _, tgt := range targets {
		byName[tgt.Name] = tgt
	}

	if got := byName["nfs-a"].Parameters["server"]; got != "x" {
		t.Errorf("nfs-a server = %v, want x", got)
	}
	if got := byName["nfs-b"].Parameters["server"]; got != "y" {
		t.Errorf("nfs-b server = %v, want y (alias overlay)", got)
	}
	if got := byName["nfs-b"].Parameters["port"]; got != 2049 {
		t.Errorf("nfs-b port = %v, want 2049 (inherited from base)", got)
	}
	if got := byName["nfs-b"].Parameters["_base_directory"]; got != "/work/dependencies/nfs" {
		t.Errorf("nfs-b _base_directory = %v, want the base checkout", got)
	}
}

func TestBuild_MultiVersionKeepsBaseDirectory(t *testing.T) {
	t.Parallel()

	nfs := &model.Component{
		Name:         "nfs",
		CheckoutPath: "/work/dependencies/nfs",
		Metadata:     model.ComponentMetadata{MultiInstance: true, MultiVersion: true},
	}
	override := model.RepositoryHandle{RemoteURL: "https://example.com/nfs.git", Revision: "v1.1.0"}
	inst := model.ComponentInstance{
		InstanceName: "nfs-b",
		Base:         nfs,
		RepoOverride: &override,
		CheckoutPath: "/work/dependencies/nfs-b",
	}

	targets, err := Builder{}.Build([]model.ComponentInstance{inst}, nil, map[string]any{})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if got := targets[0].Parameters["_base_directory"]; got != "/work/dependencies/nfs" {
		t.Errorf("_base_directory = %v, want the base component checkout even for multi-version instances", got)
	}
}

func TestBuild_DuplicateInstanceName(t *testing.T) {
	t.Parallel()

	nfs := &model.Component{Name: "nfs", CheckoutPath: "/work/dependencies/nfs"}
	_, err := Builder{}.Build([]model.ComponentInstance{
		instance("nfs", nfs),
		instance("nfs", nfs),
	}, nil, map[string]any{})
	if err == nil {
		t.Fatal("expected DuplicateTargetError, got nil")
	}
	if _, ok := err.(*DuplicateTargetError); !ok {
		t.Fatalf("expected *DuplicateTargetError, got %T: %v", err, err)
	}
}

func TestBuild_PackageClassesOrdered(t *testing.T) {
	t.Parallel()

	nfs := &model.Component{Name: "nfs", CheckoutPath: "/work/dependencies/nfs"}
	pkgs := []model.Package{{Name: "p1"}, {Name: "p2"}}

	targets, err := Builder{}.Build([]model.ComponentInstance{instance("nfs", nfs)}, pkgs, map[string]any{})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	want := []string{"defaults.nfs", "p1", "p2", "components.nfs"}
	if diff := cmp.Diff(want, targets[0].Classes); diff != "" {
		t.Errorf("classes mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_FilterDeclarationsCarriedOntoTarget(t *testing.T) {
	t.Parallel()

	nfs := &model.Component{Name: "nfs", CheckoutPath: "/work/dependencies/nfs"}
	params := map[string]any{
		"nfs": map[string]any{},
		"commodore": map[string]any{
			"postprocess": map[string]any{
				"filters": []any{
					map[string]any{"type": "builtin", "filter": "helm_namespace", "path": "nfs"},
				},
			},
		},
	}

	targets, err := Builder{}.Build([]model.ComponentInstance{instance("nfs", nfs)}, nil, params)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	commodore, ok := targets[0].Parameters["commodore"].(map[string]any)
	if !ok {
		t.Fatal("expected commodore subtree on target parameters")
	}
	if _, ok := commodore["postprocess"]; !ok {
		t.Error("expected postprocess declarations carried onto the target")
	}
}
