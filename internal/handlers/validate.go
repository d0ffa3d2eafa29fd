// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"copyforge/internal/apperr"
	"copyforge/internal/models"
	"copyforge/internal/templates"
)

// Request limits.
const (
	maxDomainLen       = 255
	maxShopNameLen     = 200
	maxTemplateNameLen = 200
	maxTemplateDescLen = 1_000
	maxTemplateBodyLen = 50_000
	maxBatchProductIDs = 500
	maxProductTitleLen = 255
	maxProductDescLen  = 100_000
	maxSearchLen       = 200
)

func invalid(format string, args ...any) error {
	return apperr.Errorf(apperr.Validation, "handlers.validate", format, args...)
}

// validateConnect checks the connect-shop request.
func validateConnect(domain, name string) error {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return invalid("missing required field: domain")
	}
	if len(domain) > maxDomainLen {
		return invalid("domain is too long (max %d characters)", maxDomainLen)
	}
	if utf8.RuneCountInString(name) > maxShopNameLen {
		return invalid("name is too long (max %d characters)", maxShopNameLen)
	}
	return nil
}

// validateTemplate checks the fields of a new template.
func validateTemplate(name, description, body string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("missing required field: name")
	}
	if utf8.RuneCountInString(name) > maxTemplateNameLen {
		return invalid("name is too long (max %d characters)", maxTemplateNameLen)
	}
	if utf8.RuneCountInString(description) > maxTemplateDescLen {
		return invalid("description is too long (max %d characters)", maxTemplateDescLen)
	}
	if strings.TrimSpace(body) == "" {
		return invalid("missing required field: body")
	}
	if utf8.RuneCountInString(body) > maxTemplateBodyLen {
		return invalid("body is too long (max %d characters)", maxTemplateBodyLen)
	}
	return nil
}

// validateTemplatePatch checks the fields present in a template update.
func validateTemplatePatch(p templates.Patch) error {
	name, desc, body := "unchanged", "", "unchanged"
	if p.Name != nil {
		name = *p.Name
	}
	if p.Description != nil {
		desc = *p.Description
	}
	if p.Body != nil {
		body = *p.Body
	}
	return validateTemplate(name, desc, body)
}

// validateProductIDs bounds a batch selection.
func validateProductIDs(ids []uuid.UUID) error {
	if len(ids) > maxBatchProductIDs {
		return invalid("too many product_ids (max %d)", maxBatchProductIDs)
	}
	for _, id := range ids {
		if id == uuid.Nil {
			return invalid("product_ids must not contain the nil uuid")
		}
	}
	return nil
}

// validateShopName checks the rename-shop request.
func validateShopName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("missing required field: name")
	}
	if utf8.RuneCountInString(name) > maxShopNameLen {
		return invalid("name is too long (max %d characters)", maxShopNameLen)
	}
	return nil
}

// validateProductPatch checks the fields present in a product update.
func validateProductPatch(p models.ProductPatch) error {
	if p.Title == nil && p.Description == nil {
		return invalid("nothing to update: set title or description")
	}
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return invalid("title must not be empty")
		}
		if utf8.RuneCountInString(*p.Title) > maxProductTitleLen {
			return invalid("title is too long (max %d characters)", maxProductTitleLen)
		}
	}
	if p.Description != nil && utf8.RuneCountInString(*p.Description) > maxProductDescLen {
		return invalid("description is too long (max %d characters)", maxProductDescLen)
	}
	return nil
}

// productFilter reads the listing query: state (or its alias status),
// search, page and per_page. Paging defaults are applied by the service.
func productFilter(q url.Values) (models.ProductFilter, error) {
	f := models.ProductFilter{
		State:  models.ProductState(q.Get("state")),
		Search: q.Get("search"),
	}
	if f.State == "" {
		f.State = models.ProductState(q.Get("status"))
	}
	if utf8.RuneCountInString(f.Search) > maxSearchLen {
		return f, invalid("search is too long (max %d characters)", maxSearchLen)
	}
	for name, dst := range map[string]*int{"page": &f.Page, "per_page": &f.PerPage} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return f, invalid("%s must be a positive integer", name)
		}
		*dst = n
	}
	return f, nil
}
