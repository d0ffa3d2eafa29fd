// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"copyforge/internal/apperr"
	"copyforge/internal/middleware"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	const op = "handlers.decodeJSON"
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &tooLarge):
		return apperr.Errorf(apperr.Validation, op, "request body exceeds %d bytes", tooLarge.Limit)
	}
	return apperr.E(apperr.Validation, op, err)
}

// pathID parses a uuid URL parameter.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Errorf(apperr.Validation, "handlers.pathID", "invalid %s %q", name, raw)
	}
	return id, nil
}

// owner returns the authenticated merchant. Routes that call it sit
// behind middleware.Authenticate.
func owner(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.OwnerFromCtx(r.Context())
	if !ok {
		return uuid.Nil, apperr.Errorf(apperr.Unauthorized, "handlers.owner", "request is not authenticated")
	}
	return id, nil
}
