// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "github.com/google/uuid"

// BatchKind names the per-item operation a batch ran.
type BatchKind string

const (
	BatchOptimize BatchKind = "optimize"
	BatchDeploy   BatchKind = "deploy"
)

// OutcomeKind is the result of one item within a batch.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
)

// BatchStatus is the composite signal for a whole batch.
type BatchStatus string

const (
	// BatchSucceeded means every attempted item succeeded (or none were attempted).
	BatchSucceeded BatchStatus = "success"
	// BatchPartial means at least one success and at least one failure.
	BatchPartial BatchStatus = "partial"
	// BatchFailed means items were attempted and none succeeded.
	BatchFailed BatchStatus = "failed"
)

// Outcome records what happened to a single product in a batch. Product
// is set on success, Error (the failure message) on failure.
type Outcome struct {
	ProductID uuid.UUID   `json:"product_id"`
	Outcome   OutcomeKind `json:"outcome"`
	Product   *Product    `json:"product,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
}

// BatchResult aggregates the outcomes of a batch in input order.
type BatchResult struct {
	BatchID   uuid.UUID   `json:"batch_id"`
	ShopID    uuid.UUID   `json:"shop_id"`
	Kind      BatchKind   `json:"kind"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Status    BatchStatus `json:"status"`
	Results   []Outcome   `json:"results"`
	// Report is the object key of the archived copy, when one was stored.
	Report string `json:"report,omitempty"`
}

// CompositeStatus derives the batch signal from the success/failure counts.
func CompositeStatus(succeeded, failed int) BatchStatus {
	switch {
	case failed == 0:
		return BatchSucceeded
	case succeeded == 0:
		return BatchFailed
	}
	return BatchPartial
}
