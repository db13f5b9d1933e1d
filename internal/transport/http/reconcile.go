package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/podhaven/adinventory/internal/app"
	"github.com/podhaven/adinventory/internal/domain"
	"github.com/podhaven/adinventory/internal/tenant"
)

// Reconciler is the synchronizer surface the reconcile handler needs.
type Reconciler interface {
	Reconcile(ctx context.Context, tnt tenant.Handle, sel domain.EpisodeSelector) (app.ReconcileSummary, error)
}

// HandleReconcile returns the handler for POST /reconcile.
func HandleReconcile(svc Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req reconcileRequest
		if err := decodeOptionalBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		summary, err := svc.Reconcile(r.Context(), tenantFrom(r.Context()), domain.EpisodeSelector{
			ShowID:     req.ShowID,
			EpisodeIDs: req.EpisodeIDs,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := reconcileResponse{
			Created: summary.Created,
			Updated: summary.Updated,
			Skipped: summary.Skipped,
			Errors:  summary.Errors,
		}
		for _, f := range summary.Failures {
			resp.Failures = append(resp.Failures, reconcileFailure{EpisodeID: f.EpisodeID, Reason: f.Reason})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type reconcileRequest struct {
	ShowID     string   `json:"show_id"`
	EpisodeIDs []string `json:"episode_ids"`
}

type reconcileFailure struct {
	EpisodeID string `json:"episode_id"`
	Reason    string `json:"reason"`
}

type reconcileResponse struct {
	Created  int                `json:"created"`
	Updated  int                `json:"updated"`
	Skipped  int                `json:"skipped"`
	Errors   int                `json:"errors"`
	Failures []reconcileFailure `json:"failures,omitempty"`
}
