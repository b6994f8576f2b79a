package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hostel-inventory/apiserver/internal/services"
	"github.com/hostel-inventory/apiserver/internal/session"
	"github.com/hostel-inventory/apiserver/internal/store"
	"github.com/hostel-inventory/apiserver/types"
)

const maxJSONBody = 1 << 20

// ErrorResponse is the error envelope every endpoint uses.
type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserMessageResponse struct {
	User    types.User `json:"user"`
	Message string     `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeInternal logs err with the request id and hides it from the client.
func writeInternal(w http.ResponseWriter, r *http.Request, message string, err error) {
	slog.ErrorContext(r.Context(), message,
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)
	writeError(w, http.StatusInternalServerError, message)
}

// writeServiceError maps errors shared by every resource. notFound is the
// message used for store.ErrNotFound.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound, fallback string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	default:
		writeInternal(w, r, fallback, err)
	}
}

// decodeJSON reads the request body into v. An empty body decodes as an
// empty object so required-field checks produce their own messages.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseID(r *http.Request, param string) (int, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s", param)
	}
	return id, nil
}

// parseQueryInt returns 0 when the parameter is absent.
func parseQueryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return value, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

type userLoader interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// currentUser resolves the session's user, writing a 401 when there is none.
func currentUser(w http.ResponseWriter, r *http.Request, sess *session.Session, users userLoader, missing string) (types.User, bool) {
	userID, ok := sess.UserID()
	if !ok {
		writeError(w, http.StatusUnauthorized, missing)
		return types.User{}, false
	}
	user, err := users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "User not found")
			return types.User{}, false
		}
		writeInternal(w, r, "failed to load user", err)
		return types.User{}, false
	}
	return user, true
}

// RequireActiveUser admits requests whose session belongs to an account that
// may log in. Everything else gets a 401.
func RequireActiveUser(sessions *session.Manager, users userLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return sessions.Handle(func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
			user, ok := currentUser(w, r, sess, users, "Not logged in")
			if !ok {
				return
			}
			if !user.Role.CanLogin() {
				writeError(w, http.StatusUnauthorized, "Account pending approval")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
