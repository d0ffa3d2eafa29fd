// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductState tracks where a product description is in the
// optimize/deploy lifecycle.
type ProductState string

const (
	StatePending    ProductState = "pending"
	StateOptimizing ProductState = "optimizing"
	StateOptimized  ProductState = "optimized"
	StateDeployed   ProductState = "deployed"
	StateFailed     ProductState = "failed"
)

// Valid reports whether s is one of the known states.
func (s ProductState) Valid() bool {
	switch s {
	case StatePending, StateOptimizing, StateOptimized, StateDeployed, StateFailed:
		return true
	}
	return false
}

// transitions lists the allowed next states for each state. A new
// optimization cycle may start from any settled state; optimizing only
// ever resolves to optimized or failed, and only optimized deploys.
var transitions = map[ProductState][]ProductState{
	StatePending:    {StateOptimizing},
	StateOptimizing: {StateOptimized, StateFailed},
	StateOptimized:  {StateOptimizing, StateDeployed, StateFailed},
	StateDeployed:   {StateOptimizing},
	StateFailed:     {StateOptimizing},
}

// CanTransition reports whether a product may move from one state to another.
func CanTransition(from, to ProductState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Product is a storefront product whose description is subject to
// optimization. Description is the canonical text currently live on the
// storefront; OriginalDescription is the text the product was imported
// with and is what prompts are built from.
type Product struct {
	ID                   uuid.UUID    `json:"id" db:"id"`
	ShopID               uuid.UUID    `json:"shop_id" db:"shop_id"`
	ExternalID           string       `json:"external_id" db:"external_id"`
	Title                string       `json:"title" db:"title"`
	Description          string       `json:"description" db:"description"`
	OriginalDescription  string       `json:"original_description" db:"original_description"`
	OptimizedDescription *string      `json:"optimized_description,omitempty" db:"optimized_description"`
	State                ProductState `json:"state" db:"state"`
	Vendor               string       `json:"vendor,omitempty" db:"vendor"`
	ProductType          string       `json:"product_type,omitempty" db:"product_type"`
	Handle               string       `json:"handle,omitempty" db:"handle"`
	LastOptimizedAt      *time.Time   `json:"last_optimized_at,omitempty" db:"last_optimized_at"`
	LastDeployedAt       *time.Time   `json:"last_deployed_at,omitempty" db:"last_deployed_at"`
	CreatedAt            time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at" db:"updated_at"`
}

// SourceText returns the text prompts are built from: the original
// import text, or the live description for products imported before the
// original was captured.
func (p *Product) SourceText() string {
	if p.OriginalDescription != "" {
		return p.OriginalDescription
	}
	return p.Description
}

// Clone returns a deep copy so callers can mutate it without touching
// the receiver.
func (p *Product) Clone() *Product {
	c := *p
	if p.OptimizedDescription != nil {
		s := *p.OptimizedDescription
		c.OptimizedDescription = &s
	}
	if p.LastOptimizedAt != nil {
		t := *p.LastOptimizedAt
		c.LastOptimizedAt = &t
	}
	if p.LastDeployedAt != nil {
		t := *p.LastDeployedAt
		c.LastDeployedAt = &t
	}
	return &c
}

// Listing page sizes.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// ProductFilter narrows and pages a product listing. An empty State or
// Search matches every product. Search is matched case-insensitively
// against title and vendor.
type ProductFilter struct {
	State   ProductState
	Search  string
	Page    int
	PerPage int
}

// Offset returns the number of rows skipped before the page starts.
func (f ProductFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// ProductPage is one page of a product listing, most recently updated
// first.
type ProductPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Pages    int       `json:"pages"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
}

// NewProductPage wraps one page of products matched by f out of total.
func NewProductPage(products []Product, total int, f ProductFilter) *ProductPage {
	if products == nil {
		products = []Product{}
	}
	pages := 0
	if f.PerPage > 0 {
		pages = (total + f.PerPage - 1) / f.PerPage
	}
	return &ProductPage{Products: products, Total: total, Pages: pages, Page: f.Page, PerPage: f.PerPage}
}

// ProductPatch holds the locally editable product fields. Nil fields
// are left unchanged.
type ProductPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}
