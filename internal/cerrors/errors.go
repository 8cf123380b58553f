// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package cerrors defines the typed error kinds produced by the catalog
// compiler. Each
// kind wraps an underlying cause and carries the instance/component/file
// context needed to pinpoint the failure.
package cerrors

import "fmt"

// Kind identifies one of the fixed error categories from the design.
type Kind string

const (
	KindConfigError      Kind = "ConfigError"
	KindGitError         Kind = "GitError"
	KindDirtyWorktree    Kind = "DirtyWorktree"
	KindRenderError      Kind = "RenderError"
	KindEngineError      Kind = "EngineError"
	KindFilterError      Kind = "FilterError"
	KindCatalogPushError Kind = "CatalogPushError"
)

// Context pinpoints where in the compile an error occurred. Any field
// may be empty if not applicable.
type Context struct {
	Instance  string
	Component string
	File      string
}

func (c Context) String() string {
	s := ""
	if c.Component != "" {
		s += fmt.Sprintf(" component=%s", c.Component)
	}
	if c.Instance != "" {
		s += fmt.Sprintf(" instance=%s", c.Instance)
	}
	if c.File != "" {
		s += fmt.Sprintf(" file=%s", c.File)
	}
	return s
}

// Error is the typed error value propagated out of every core component.
type Error struct {
	K       Kind
	Ctx     Context
	Message string
	Cause   error
}

func (e *Error) Error() string {
	ctx := e.Ctx.String()
	if e.Cause != nil {
		return fmt.Sprintf("%s:%s %s: %v", e.K, ctx, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s:%s %s", e.K, ctx, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Kind reports the error category.
func (e *Error) Kind() Kind { return e.K }

func newErr(k Kind, ctx Context, format string, args ...any) *Error {
	return &Error{K: k, Ctx: ctx, Message: fmt.Sprintf(format, args...)}
}

// Config builds a ConfigError.
func Config(ctx Context, format string, args ...any) *Error {
	return newErr(KindConfigError, ctx, format, args...)
}

// Git builds a GitError wrapping cause.
func Git(ctx Context, cause error, format string, args ...any) *Error {
	e := newErr(KindGitError, ctx, format, args...)
	e.Cause = cause
	return e
}

// DirtyWorktree builds a DirtyWorktree error.
func DirtyWorktree(ctx Context, format string, args ...any) *Error {
	return newErr(KindDirtyWorktree, ctx, format, args...)
}

// Render builds a RenderError.
func Render(ctx Context, format string, args ...any) *Error {
	return newErr(KindRenderError, ctx, format, args...)
}

// Engine builds an EngineError carrying the external engine's stderr.
func Engine(ctx Context, stderr string, format string, args ...any) *Error {
	e := newErr(KindEngineError, ctx, format, args...)
	e.Message = fmt.Sprintf("%s\n--- engine stderr ---\n%s", e.Message, stderr)
	return e
}

// Filter builds a FilterError wrapping cause.
func Filter(ctx Context, cause error, format string, args ...any) *Error {
	e := newErr(KindFilterError, ctx, format, args...)
	e.Cause = cause
	return e
}

// CatalogPush builds a CatalogPushError wrapping cause.
func CatalogPush(ctx Context, cause error, format string, args ...any) *Error {
	e := newErr(KindCatalogPushError, ctx, format, args...)
	e.Cause = cause
	return e
}

// DeprecationWarning is non-fatal: the driver collects these and prints
// them after a successful compile rather than aborting.
type DeprecationWarning struct {
	Component string
	Notice    string
}

func (w DeprecationWarning) String() string {
	return fmt.Sprintf("component %s is deprecated: %s", w.Component, w.Notice)
}
