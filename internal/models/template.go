// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// PromptTemplate is a named prompt body owned by a shop. At most one
// template per shop is active; the active one builds every prompt.
type PromptTemplate struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ShopID      uuid.UUID  `json:"shop_id" db:"shop_id"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description,omitempty" db:"description"`
	Body        string     `json:"body" db:"body"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	IsDefault   bool       `json:"is_default" db:"is_default"`
	UsageCount  int        `json:"usage_count" db:"usage_count"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}
