package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hostel-inventory/apiserver/internal/services"
)

// RoomHandler provides HTTP handlers for rooms.
type RoomHandler struct {
	rooms *services.RoomService
}

func NewRoomHandler(rooms *services.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// RoomRouter registers room routes on the given router.
func RoomRouter(r chi.Router, rooms *services.RoomService) {
	h := NewRoomHandler(rooms)

	r.Get("/", h.ListRooms)
	r.Post("/", h.CreateRoom)
	r.Route("/{roomID}", func(r chi.Router) {
		r.Get("/", h.GetRoom)
		r.Put("/", h.UpdateRoom(false))
		r.Patch("/", h.UpdateRoom(true))
		r.Delete("/", h.DeleteRoom)
	})
}

func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.List(r.Context())
	if err != nil {
		writeInternal(w, r, "failed to list rooms", err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roomID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	room, err := h.rooms.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "room not found", "failed to fetch room")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var in services.RoomInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	room, err := h.rooms.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err, "room not found", "failed to create room")
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomHandler) UpdateRoom(partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "roomID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var in services.RoomInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		room, err := h.rooms.Update(r.Context(), id, in, partial)
		if err != nil {
			writeServiceError(w, r, err, "room not found", "failed to update room")
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func (h *RoomHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roomID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.rooms.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "room not found", "failed to delete room")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
