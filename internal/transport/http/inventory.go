package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/podhaven/adinventory/internal/domain"
	"github.com/podhaven/adinventory/internal/tenant"
)

// InventoryReader is the query surface for inventory lookups.
type InventoryReader interface {
	GetInventory(ctx context.Context, tnt tenant.Handle, episodeID string) (domain.EpisodeInventory, error)
}

// HandleGetInventory returns the handler for GET /inventory/{episodeID}.
// The read lazily expires stale holds on the episode before reporting.
func HandleGetInventory(svc InventoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		episodeID, ok := parseInventoryPath(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		inv, err := svc.GetInventory(r.Context(), tenantFrom(r.Context()), episodeID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := inventoryResponse{
			EpisodeID:            inv.EpisodeID,
			ShowID:               inv.ShowID,
			Placements:           make(map[string]placementCounts, len(domain.PlacementTypes)),
			CalculatedFromLength: inv.CalculatedFromLength,
			UpdatedAt:            inv.UpdatedAt,
		}
		for _, p := range domain.PlacementTypes {
			resp.Placements[string(p)] = placementCounts{
				Slots:     inv.Slots.Get(p),
				Available: inv.Available.Get(p),
				Reserved:  inv.Reserved.Get(p),
				Booked:    inv.Booked.Get(p),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func parseInventoryPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] != "inventory" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type placementCounts struct {
	Slots     int `json:"slots"`
	Available int `json:"available"`
	Reserved  int `json:"reserved"`
	Booked    int `json:"booked"`
}

type inventoryResponse struct {
	EpisodeID            string                     `json:"episode_id"`
	ShowID               string                     `json:"show_id"`
	Placements           map[string]placementCounts `json:"placements"`
	CalculatedFromLength bool                       `json:"calculated_from_length"`
	UpdatedAt            time.Time                  `json:"updated_at"`
}
