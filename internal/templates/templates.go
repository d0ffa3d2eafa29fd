// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package templates manages each shop's prompt templates and guarantees
// that a shop always has exactly one active template when asked for it.
package templates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"copyforge/internal/apperr"
	"copyforge/internal/models"
	"copyforge/internal/prompt"
)

// DefaultName is the name given to the template created on demand.
const DefaultName = "Default SEO Optimization"

// Repository persists prompt templates. Finders return (nil, nil) when
// nothing matches.
type Repository interface {
	FindActive(ctx context.Context, shopID uuid.UUID) (*models.PromptTemplate, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PromptTemplate, error)
	ListByShop(ctx context.Context, shopID uuid.UUID) ([]models.PromptTemplate, error)
	Create(ctx context.Context, t *models.PromptTemplate) (*models.PromptTemplate, error)
	// CreateActive inserts t as the shop's active template unless the shop
	// already has one, and returns whichever template is active afterwards.
	CreateActive(ctx context.Context, t *models.PromptTemplate) (*models.PromptTemplate, error)
	Update(ctx context.Context, t *models.PromptTemplate) error
	// Activate marks id active and every other template of the shop
	// inactive in one transaction.
	Activate(ctx context.Context, shopID, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementUsage(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Input holds the fields of a new template.
type Input struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Body        string `json:"body"`
	Activate    bool   `json:"activate"`
}

// Patch holds the fields of a template update. Nil fields are unchanged.
type Patch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Body        *string `json:"body,omitempty"`
}

// Service implements template lookup, lazy default creation and CRUD.
type Service struct {
	repo  Repository
	log   *zap.Logger
	group singleflight.Group
	now   func() time.Time
}

// NewService creates a template Service backed by repo.
func NewService(repo Repository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, log: log, now: time.Now}
}

// Active returns the shop's active template, creating and persisting the
// built-in default first if the shop has none. Concurrent first calls for
// one shop share a single creation.
func (s *Service) Active(ctx context.Context, shopID uuid.UUID) (*models.PromptTemplate, error) {
	v, err, _ := s.group.Do(shopID.String(), func() (any, error) {
		t, err := s.repo.FindActive(ctx, shopID)
		if err != nil {
			return nil, fmt.Errorf("find active template: %w", err)
		}
		if t != nil {
			return t, nil
		}

		t, err = s.repo.CreateActive(ctx, &models.PromptTemplate{
			ShopID:      shopID,
			Name:        DefaultName,
			Description: "Built-in template for SEO-optimized product descriptions",
			Body:        prompt.DefaultBody,
			IsActive:    true,
			IsDefault:   true,
		})
		if err != nil {
			return nil, fmt.Errorf("create default template: %w", err)
		}
		s.log.Info("default template created",
			zap.Stringer("shop_id", shopID), zap.Stringer("template_id", t.ID))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	t := *v.(*models.PromptTemplate)
	return &t, nil
}

// SetActive makes id the shop's only active template.
func (s *Service) SetActive(ctx context.Context, shopID, id uuid.UUID) (*models.PromptTemplate, error) {
	t, err := s.Get(ctx, shopID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Activate(ctx, shopID, id); err != nil {
		return nil, fmt.Errorf("activate template: %w", err)
	}
	t.IsActive = true
	return t, nil
}

// Get returns a template owned by the shop.
func (s *Service) Get(ctx context.Context, shopID, id uuid.UUID) (*models.PromptTemplate, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find template: %w", err)
	}
	if t == nil || t.ShopID != shopID {
		return nil, apperr.Errorf(apperr.NotFound, "templates.Get", "template %s not found", id)
	}
	return t, nil
}

// List returns the shop's templates.
func (s *Service) List(ctx context.Context, shopID uuid.UUID) ([]models.PromptTemplate, error) {
	ts, err := s.repo.ListByShop(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return ts, nil
}

// Create validates and stores a new template for the shop.
func (s *Service) Create(ctx context.Context, shopID uuid.UUID, in Input) (*models.PromptTemplate, error) {
	const op = "templates.Create"
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.Errorf(apperr.Validation, op, "missing required field: name")
	}
	if strings.TrimSpace(in.Body) == "" {
		return nil, apperr.Errorf(apperr.Validation, op, "missing required field: body")
	}
	if err := prompt.Validate(in.Body); err != nil {
		return nil, err
	}

	t, err := s.repo.Create(ctx, &models.PromptTemplate{
		ShopID:      shopID,
		Name:        in.Name,
		Description: in.Description,
		Body:        in.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	if in.Activate {
		return s.SetActive(ctx, shopID, t.ID)
	}
	return t, nil
}

// Update applies p to a template owned by the shop.
func (s *Service) Update(ctx context.Context, shopID, id uuid.UUID, p Patch) (*models.PromptTemplate, error) {
	const op = "templates.Update"
	t, err := s.Get(ctx, shopID, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, apperr.Errorf(apperr.Validation, op, "name cannot be empty")
		}
		t.Name = name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Body != nil {
		if strings.TrimSpace(*p.Body) == "" {
			return nil, apperr.Errorf(apperr.Validation, op, "body cannot be empty")
		}
		if err := prompt.Validate(*p.Body); err != nil {
			return nil, err
		}
		t.Body = *p.Body
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return t, nil
}

// Delete removes a template. The active template and the built-in
// default cannot be deleted.
func (s *Service) Delete(ctx context.Context, shopID, id uuid.UUID) error {
	const op = "templates.Delete"
	t, err := s.Get(ctx, shopID, id)
	if err != nil {
		return err
	}
	if t.IsActive {
		return apperr.Errorf(apperr.Validation, op, "cannot delete the active template")
	}
	if t.IsDefault {
		return apperr.Errorf(apperr.Validation, op, "cannot delete the default template")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// RecordUse increments the usage counter and stamps the last-used time.
func (s *Service) RecordUse(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.IncrementUsage(ctx, id, s.now()); err != nil {
		return fmt.Errorf("record template use: %w", err)
	}
	return nil
}
