package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hostel-inventory/apiserver/internal/services"
	"github.com/hostel-inventory/apiserver/internal/storage"
	"github.com/hostel-inventory/apiserver/internal/store"
	"github.com/hostel-inventory/apiserver/types"
)

const (
	maxMultipartMemory = 8 << 20
	maxPhotoBytes      = 10 << 20
	formFieldPhoto     = "photo"
)

// DamageReportHandler provides HTTP handlers for damage reports.
type DamageReportHandler struct {
	reports *services.DamageReportService
}

func NewDamageReportHandler(reports *services.DamageReportService) *DamageReportHandler {
	return &DamageReportHandler{reports: reports}
}

// DamageReportRouter registers damage report routes on the given router.
func DamageReportRouter(r chi.Router, reports *services.DamageReportService) {
	h := NewDamageReportHandler(reports)

	r.Get("/", h.ListReports)
	r.Post("/", h.CreateReport)
	r.Route("/{reportID}", func(r chi.Router) {
		r.Get("/", h.GetReport)
		r.Put("/", h.UpdateReport(false))
		r.Patch("/", h.UpdateReport(true))
		r.Delete("/", h.DeleteReport)
		r.Put("/photo", h.UploadPhoto)
		r.Get("/photo", h.GetPhoto)
	})
}

func (h *DamageReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	var filter store.DamageReportFilter
	roomID, err := parseQueryInt(r, "room")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.RoomID = roomID
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := types.ParseReportStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}

	reports, err := h.reports.List(r.Context(), filter)
	if err != nil {
		writeInternal(w, r, "failed to list damage reports", err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *DamageReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.reports.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "damage report not found", "failed to fetch damage report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *DamageReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var in services.DamageReportInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.reports.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err, "damage report not found", "failed to create damage report")
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (h *DamageReportHandler) UpdateReport(partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "reportID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var in services.DamageReportInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		report, err := h.reports.Update(r.Context(), id, in, partial)
		if err != nil {
			writeServiceError(w, r, err, "damage report not found", "failed to update damage report")
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func (h *DamageReportHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.reports.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "damage report not found", "failed to delete damage report")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadPhoto accepts a multipart form with a single image in the "photo" field.
func (h *DamageReportHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+(1<<20))
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile(formFieldPhoto)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing photo")
		return
	}
	data, err := readFileLimited(file, maxPhotoBytes)
	_ = file.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "photo must be an image")
		return
	}

	report, err := h.reports.AttachPhoto(r.Context(), id, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		if errors.Is(err, services.ErrPhotosDisabled) {
			writeError(w, http.StatusServiceUnavailable, "photo storage is not configured")
			return
		}
		writeServiceError(w, r, err, "damage report not found", "failed to store photo")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *DamageReportHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc, err := h.reports.Photo(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPhotosDisabled):
			writeError(w, http.StatusServiceUnavailable, "photo storage is not configured")
		case errors.Is(err, services.ErrNoPhoto), errors.Is(err, storage.ErrObjectNotFound):
			writeError(w, http.StatusNotFound, "photo not found")
		default:
			writeServiceError(w, r, err, "damage report not found", "failed to load photo")
		}
		return
	}
	data, err := readFileLimited(rc, maxPhotoBytes)
	_ = rc.Close()
	if err != nil {
		writeInternal(w, r, "failed to load photo", err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
