package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"copyforge/internal/apperr"
)

// reportLinkTTL is how long a batch report link stays valid.
const reportLinkTTL = 15 * time.Minute

// ReportLinker hands out temporary download links for archived batch
// reports.
type ReportLinker interface {
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

type reportResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WithReports enables the batch report endpoint.
func (a *API) WithReports(reports ReportLinker, key func(shopID, batchID uuid.UUID) string) *API {
	a.reports = reports
	a.reportKey = key
	return a
}

// BatchReport returns a short-lived link to an archived batch report.
func (a *API) BatchReport(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	batchID, err := pathID(r, "batchID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if _, err := a.svc.Shop(r.Context(), ownerID, shopID); err != nil {
		a.fail(w, r, err)
		return
	}
	if a.reports == nil {
		a.fail(w, r, apperr.Errorf(apperr.NotFound, "handlers.BatchReport", "report storage is not configured"))
		return
	}

	url, err := a.reports.PresignedURL(r.Context(), a.reportKey(shopID, batchID), reportLinkTTL)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{URL: url, ExpiresAt: time.Now().Add(reportLinkTTL).UTC()})
}
