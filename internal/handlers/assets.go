package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hostel-inventory/apiserver/internal/services"
	"github.com/hostel-inventory/apiserver/internal/store"
	"github.com/hostel-inventory/apiserver/types"
)

// AssetHandler provides HTTP handlers for assets.
type AssetHandler struct {
	assets *services.AssetService
}

func NewAssetHandler(assets *services.AssetService) *AssetHandler {
	return &AssetHandler{assets: assets}
}

// AssetRouter registers asset routes on the given router.
func AssetRouter(r chi.Router, assets *services.AssetService) {
	h := NewAssetHandler(assets)

	r.Get("/", h.ListAssets)
	r.Post("/", h.CreateAsset)
	r.Route("/{assetID}", func(r chi.Router) {
		r.Get("/", h.GetAsset)
		r.Put("/", h.UpdateAsset(false))
		r.Patch("/", h.UpdateAsset(true))
		r.Delete("/", h.DeleteAsset)
		r.Post("/mark-damaged", h.MarkDamaged)
	})
}

type AssetMessageResponse struct {
	Asset   types.Asset `json:"asset"`
	Message string      `json:"message"`
}

func parseAssetFilter(r *http.Request) (store.AssetFilter, error) {
	var filter store.AssetFilter
	roomID, err := parseQueryInt(r, "room")
	if err != nil {
		return filter, err
	}
	filter.RoomID = roomID

	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("condition")); raw != "" {
		condition, err := types.ParseCondition(raw)
		if err != nil {
			return filter, err
		}
		filter.Condition = condition
	}
	if raw := strings.TrimSpace(query.Get("asset_type")); raw != "" {
		assetType, err := types.ParseAssetType(raw)
		if err != nil {
			return filter, err
		}
		filter.AssetType = assetType
	}
	return filter, nil
}

func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAssetFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	assets, err := h.assets.List(r.Context(), filter)
	if err != nil {
		writeInternal(w, r, "failed to list assets", err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "assetID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := h.assets.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "asset not found", "failed to fetch asset")
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *AssetHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var in services.AssetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := h.assets.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err, "asset not found", "failed to create asset")
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

func (h *AssetHandler) UpdateAsset(partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "assetID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var in services.AssetInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		asset, err := h.assets.Update(r.Context(), id, in, partial)
		if err != nil {
			writeServiceError(w, r, err, "asset not found", "failed to update asset")
			return
		}
		writeJSON(w, http.StatusOK, asset)
	}
}

func (h *AssetHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "assetID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.assets.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "asset not found", "failed to delete asset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AssetHandler) MarkDamaged(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "assetID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	asset, err := h.assets.MarkDamaged(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrAllDamaged):
			writeError(w, http.StatusBadRequest, "All items are already damaged")
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "Asset was modified concurrently, please retry")
		default:
			writeServiceError(w, r, err, "asset not found", "failed to mark asset damaged")
		}
		return
	}
	writeJSON(w, http.StatusOK, AssetMessageResponse{Asset: asset, Message: "Asset marked as damaged"})
}
