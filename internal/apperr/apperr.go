// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package apperr defines the typed error kinds shared by the optimization
// pipeline and the HTTP boundary. Every stage returns an *Error carrying a
// Kind so callers can branch on the failure without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure. Kinds are comparable sentinels: a Kind is
// itself an error, so errors.Is(err, apperr.NotFound) works through any
// amount of wrapping.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	NotFound            Kind = "not_found"
	Validation          Kind = "validation_error"
	TemplateSyntax      Kind = "template_syntax_error"
	TemplateRender      Kind = "template_render_error"
	ProviderUnavailable Kind = "provider_unavailable"
	Provider            Kind = "provider_error"
	NotOptimized        Kind = "not_optimized"
	NotAuthenticated    Kind = "not_authenticated"
	Storefront          Kind = "storefront_error"
	Conflict            Kind = "conflict"
	Unauthorized        Kind = "unauthorized"
)

// Error is a classified failure. Op names the operation that failed
// (e.g. "prompt.Render"); Err is the underlying cause and may be nil.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return string(e.Kind)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// E builds an *Error wrapping err.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error whose cause is a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or ""
// when err carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return ""
}

// HTTPStatus maps a Kind to the status code returned by the API layer.
// Unclassified errors are internal server errors.
func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case Validation, TemplateSyntax, NotOptimized:
		return http.StatusBadRequest
	case TemplateRender:
		return http.StatusUnprocessableEntity
	case ProviderUnavailable:
		return http.StatusServiceUnavailable
	case Provider, Storefront:
		return http.StatusBadGateway
	case NotAuthenticated, Unauthorized:
		return http.StatusUnauthorized
	case Conflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
