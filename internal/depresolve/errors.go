// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package depresolve

import "fmt"

// UnknownDependencyError is returned when an "applications" entry has no
// matching "packages"/"components" configuration entry.
type UnknownDependencyError struct {
	Name string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("dependency %q is listed in applications but has no packages/components entry", e.Name)
}

// AmbiguousVersionOverrideError is returned when a packages/components
// entry declares a version but no url, which is almost always a typo for
// an override against an already-known dependency.
type AmbiguousVersionOverrideError struct {
	Name string
}

func (e *AmbiguousVersionOverrideError) Error() string {
	return fmt.Sprintf("dependency %q declares a version but no url", e.Name)
}

// DuplicateInstanceError is returned when two applications entries
// produce the same instance name.
type DuplicateInstanceError struct {
	Instance string
}

func (e *DuplicateInstanceError) Error() string {
	return fmt.Sprintf("duplicate component instance %q", e.Instance)
}

// InstancingNotSupportedError is returned when an alias is requested for a
// component whose metadata does not declare multi_instance support.
type InstancingNotSupportedError struct {
	Component string
	Instance  string
}

func (e *InstancingNotSupportedError) Error() string {
	return fmt.Sprintf("component %q does not support instancing, cannot alias as %q", e.Component, e.Instance)
}

// MultiVersionNotSupportedError is returned when a component/instance
// version override is requested for a component without multi_version
// metadata support.
type MultiVersionNotSupportedError struct {
	Component string
	Instance  string
}

func (e *MultiVersionNotSupportedError) Error() string {
	return fmt.Sprintf("component %q does not support version overrides, cannot override for instance %q", e.Component, e.Instance)
}

// LibraryPrefixConflictError is returned when two deployed components
// claim the same library alias without a valid replaces/replaced_by
// relationship.
type LibraryPrefixConflictError struct {
	File       string
	Claimant   string
	Holder     string
}

func (e *LibraryPrefixConflictError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("component %q is replaced by deployed component %q, which does not declare replaces=%q", e.Holder, e.Claimant, e.Holder)
	}
	return fmt.Sprintf("library file %q claimed by both %q and %q without a valid replaces/deprecation relationship", e.File, e.Claimant, e.Holder)
}
