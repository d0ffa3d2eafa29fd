// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"

	"copyforge/internal/apperr"
)

// StatusError is a non-success response from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// classify maps a provider error onto the error taxonomy. Failures to
// reach the provider (transport errors, timeouts, truncated reads) are
// ProviderUnavailable and may be retried; anything the provider itself
// answered with is Provider.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if unavailable(err) {
		return apperr.E(apperr.ProviderUnavailable, op, err)
	}
	return apperr.E(apperr.Provider, op, err)
}

func unavailable(err error) bool {
	var status *StatusError
	if errors.As(err, &status) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
