package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/podhaven/adinventory/internal/app"
	"github.com/podhaven/adinventory/internal/domain"
	"github.com/podhaven/adinventory/internal/tenant"
)

// HoldService is the reservation surface the hold handlers need.
type HoldService interface {
	CreateHold(ctx context.Context, tnt tenant.Handle, in app.CreateHoldInput) (domain.Reservation, error)
	Get(ctx context.Context, tnt tenant.Handle, id string) (domain.Reservation, error)
	Approve(ctx context.Context, tnt tenant.Handle, id string) (domain.Reservation, error)
	Reject(ctx context.Context, tnt tenant.Handle, id, reason string) (domain.Reservation, error)
	Confirm(ctx context.Context, tnt tenant.Handle, id, orderID string) (domain.Reservation, error)
	Release(ctx context.Context, tnt tenant.Handle, id string) (domain.Reservation, error)
}

// HandleCreateHold returns the handler for POST /holds.
func HandleCreateHold(svc HoldService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createHoldRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.CreateHold(r.Context(), tenantFrom(r.Context()), app.CreateHoldInput{
			EpisodeID: req.EpisodeID,
			Counts: domain.SlotCounts{
				PreRoll:  req.Counts.PreRoll,
				MidRoll:  req.Counts.MidRoll,
				PostRoll: req.Counts.PostRoll,
			},
			HoldType:  domain.HoldType(req.HoldType),
			ExpiresAt: req.ExpiresAt,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeReservation(w, http.StatusCreated, res)
	}
}

// HandleReservation routes GET /holds/{id} and POST /holds/{id}/{action}
// for approve, reject, confirm and release.
func HandleReservation(svc HoldService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, action, ok := parseReservationPath(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		tnt := tenantFrom(r.Context())

		if action == "" {
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			res, err := svc.Get(r.Context(), tnt, id)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeReservation(w, http.StatusOK, res)
			return
		}

		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var (
			res domain.Reservation
			err error
		)
		switch action {
		case "approve":
			res, err = svc.Approve(r.Context(), tnt, id)
		case "reject":
			var req rejectRequest
			if decodeErr := decodeOptionalBody(r, &req); decodeErr != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			res, err = svc.Reject(r.Context(), tnt, id, req.Reason)
		case "confirm":
			var req confirmRequest
			if decodeErr := decodeOptionalBody(r, &req); decodeErr != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			res, err = svc.Confirm(r.Context(), tnt, id, req.OrderID)
		case "release":
			res, err = svc.Release(r.Context(), tnt, id)
		default:
			http.NotFound(w, r)
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeReservation(w, http.StatusOK, res)
	}
}

func parseReservationPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "holds" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		return parts[1], "", true
	}
	if parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func decodeOptionalBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

type createHoldRequest struct {
	EpisodeID string     `json:"episode_id"`
	Counts    slotCounts `json:"counts"`
	HoldType  string     `json:"hold_type"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type confirmRequest struct {
	OrderID string `json:"order_id"`
}

type slotCounts struct {
	PreRoll  int `json:"pre_roll"`
	MidRoll  int `json:"mid_roll"`
	PostRoll int `json:"post_roll"`
}

type reservationResponse struct {
	ID           string     `json:"id"`
	EpisodeID    string     `json:"episode_id"`
	Counts       slotCounts `json:"counts"`
	HoldType     string     `json:"hold_type"`
	Status       string     `json:"status"`
	Approval     string     `json:"approval_status"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	OrderID      string     `json:"order_id,omitempty"`
	RejectReason string     `json:"reject_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func writeReservation(w http.ResponseWriter, status int, res domain.Reservation) {
	resp := reservationResponse{
		ID:        res.ID,
		EpisodeID: res.EpisodeID,
		Counts: slotCounts{
			PreRoll:  res.Counts.PreRoll,
			MidRoll:  res.Counts.MidRoll,
			PostRoll: res.Counts.PostRoll,
		},
		HoldType:     string(res.HoldType),
		Status:       string(res.Status),
		Approval:     string(res.Approval),
		ExpiresAt:    res.ExpiresAt,
		OrderID:      res.OrderID,
		RejectReason: res.RejectReason,
		CreatedAt:    res.CreatedAt,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
