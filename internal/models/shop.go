// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package models defines the domain types shared by the optimization
// pipeline, the persistence layer and the HTTP handlers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultAPIVersion is the storefront admin API version used when a shop
// does not pin one.
const DefaultAPIVersion = "2024-01"

// DefaultScopes are requested during the OAuth install flow.
const DefaultScopes = "read_products,write_products"

// Shop is a merchant storefront connected to the service. AccessToken is
// held decrypted in memory; the store layer encrypts it at rest.
type Shop struct {
	ID                   uuid.UUID        `json:"id" db:"id"`
	OwnerID              uuid.UUID        `json:"owner_id" db:"owner_id"`
	Domain               string           `json:"domain" db:"domain"`
	Name                 string           `json:"name" db:"name"`
	AccessToken          string           `json:"-" db:"access_token"`
	APIVersion           string           `json:"api_version" db:"api_version"`
	Scopes               string           `json:"scopes" db:"scopes"`
	WebhookSecret        string           `json:"-" db:"webhook_secret"`
	InstallationComplete bool             `json:"installation_complete" db:"installation_complete"`
	Preferences          PreferencesPatch `json:"preferences" db:"preferences"`
	LastSyncedAt         *time.Time       `json:"last_synced_at,omitempty" db:"last_synced_at"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" db:"updated_at"`
}

// Authenticated reports whether the shop holds storefront credentials.
func (s *Shop) Authenticated() bool {
	return s.AccessToken != ""
}

// Version returns the pinned admin API version or the default.
func (s *Shop) Version() string {
	if s.APIVersion == "" {
		return DefaultAPIVersion
	}
	return s.APIVersion
}
