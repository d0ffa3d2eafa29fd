// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"copyforge/internal/models"
	"copyforge/internal/prompt"
	"copyforge/internal/templates"
)

type previewRequest struct {
	Body    string         `json:"body"`
	Context prompt.Context `json:"context"`
}

type previewResponse struct {
	Prompt string `json:"prompt"`
}

// templateScope resolves the merchant's shop and, when withID is set, the
// {templateID} parameter. The shop lookup enforces ownership.
func (a *API) templateScope(r *http.Request, withID bool) (shopID, templateID uuid.UUID, err error) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if _, err = a.svc.Shop(r.Context(), ownerID, shopID); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if withID {
		templateID, err = pathID(r, "templateID")
	}
	return shopID, templateID, err
}

// ListTemplates returns the shop's templates. A shop with none gets the
// built-in default created first.
func (a *API) ListTemplates(w http.ResponseWriter, r *http.Request) {
	shopID, _, err := a.templateScope(r, false)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if _, err := a.templates.Active(r.Context(), shopID); err != nil {
		a.fail(w, r, err)
		return
	}
	list, err := a.templates.List(r.Context(), shopID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if list == nil {
		list = []models.PromptTemplate{}
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateTemplate stores a new template.
func (a *API) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	shopID, _, err := a.templateScope(r, false)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in templates.Input
	if err := decodeJSON(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validateTemplate(in.Name, in.Description, in.Body); err != nil {
		a.fail(w, r, err)
		return
	}

	t, err := a.templates.Create(r.Context(), shopID, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GetTemplate returns one template.
func (a *API) GetTemplate(w http.ResponseWriter, r *http.Request) {
	shopID, id, err := a.templateScope(r, true)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	t, err := a.templates.Get(r.Context(), shopID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTemplate applies a partial update.
func (a *API) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	shopID, id, err := a.templateScope(r, true)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var p templates.Patch
	if err := decodeJSON(w, r, &p); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validateTemplatePatch(p); err != nil {
		a.fail(w, r, err)
		return
	}

	t, err := a.templates.Update(r.Context(), shopID, id, p)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTemplate removes a template that is neither active nor default.
func (a *API) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	shopID, id, err := a.templateScope(r, true)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.templates.Delete(r.Context(), shopID, id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivateTemplate makes a template the shop's active one.
func (a *API) ActivateTemplate(w http.ResponseWriter, r *http.Request) {
	shopID, id, err := a.templateScope(r, true)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	t, err := a.templates.SetActive(r.Context(), shopID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// PreviewTemplate renders a body against sample data without calling a
// provider.
func (a *API) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	if _, _, err := a.templateScope(r, false); err != nil {
		a.fail(w, r, err)
		return
	}
	var req previewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validateTemplate("preview", "", req.Body); err != nil {
		a.fail(w, r, err)
		return
	}

	out, err := prompt.Preview(req.Body, req.Context)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Prompt: out})
}
