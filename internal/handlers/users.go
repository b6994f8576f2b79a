package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hostel-inventory/apiserver/internal/services"
	"github.com/hostel-inventory/apiserver/internal/session"
	"github.com/hostel-inventory/apiserver/internal/store"
	"github.com/hostel-inventory/apiserver/types"
)

// UserHandler serves account, administration and password reset endpoints.
// Every handler receives the caller's session explicitly.
type UserHandler struct {
	users    *services.UserService
	sessions *session.Manager
}

func NewUserHandler(users *services.UserService, sessions *session.Manager) *UserHandler {
	return &UserHandler{users: users, sessions: sessions}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, users *services.UserService, sessions *session.Manager) {
	h := NewUserHandler(users, sessions)
	s := sessions.Handle

	r.Post("/register", h.Register)
	r.Post("/login", s(h.Login))
	r.Post("/logout", s(h.Logout))
	r.Get("/me", s(h.Me))
	r.Put("/profile/update", s(h.UpdateProfile))

	r.Post("/create-user", s(h.CreateUser))
	r.Get("/list", s(h.ListUsers))
	r.Put("/update-user/{userID}", s(h.UpdateUser))
	r.Delete("/delete-user/{userID}", s(h.DeleteUser))
	r.Post("/reset-password/{userID}", s(h.ForceResetPassword))

	r.Post("/request-reset", h.RequestReset)
	r.Post("/verify-code", h.VerifyCode)
	r.Post("/reset-password-with-code", h.ResetPasswordWithCode)
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.Registration
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		h.writeAccountError(w, r, err, "failed to register user")
		return
	}
	writeJSON(w, http.StatusCreated, UserMessageResponse{
		User:    user,
		Message: fmt.Sprintf("User registered successfully as %s", user.Role),
	})
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			writeError(w, http.StatusUnauthorized, "User not found")
		case errors.Is(err, services.ErrInvalidPassword):
			writeError(w, http.StatusUnauthorized, "Invalid password")
		case errors.Is(err, services.ErrPendingApproval):
			writeError(w, http.StatusForbidden, "Your account is pending approval by the Warden. Please wait for role assignment.")
		default:
			writeServiceError(w, r, err, "User not found", "failed to authenticate")
		}
		return
	}

	if err := sess.Set(r.Context(), user.ID); err != nil {
		writeInternal(w, r, "failed to start session", err)
		return
	}
	writeJSON(w, http.StatusOK, UserMessageResponse{User: user, Message: "Login successful"})
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := sess.Clear(r.Context()); err != nil {
		// The cookie is already expired; a stale server-side entry ages out on its own.
		slog.WarnContext(r.Context(), "failed to delete session", "error", err)
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logout successful"})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	user, ok := currentUser(w, r, sess, h.users, "Not logged in")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type UpdateProfileRequest struct {
	PhoneNumber types.Optional[*string] `json:"phone_number"`
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	user, ok := currentUser(w, r, sess, h.users, "Not logged in")
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), user.ID, req.PhoneNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "User not found")
			return
		}
		writeServiceError(w, r, err, "User not found", "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, UserMessageResponse{User: updated, Message: "Profile updated successfully"})
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	actor, ok := currentUser(w, r, sess, h.users, "Not logged in")
	if !ok {
		return
	}
	var req services.NewUser
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Create(r.Context(), actor, req)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			writeError(w, http.StatusForbidden, "Only Warden can create users")
			return
		}
		h.writeAccountError(w, r, err, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, UserMessageResponse{User: user, Message: "User created successfully"})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	actor, ok := currentUser(w, r, sess, h.users, "Not logged in")
	if !ok {
		return
	}

	users, err := h.users.List(r.Context(), actor)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			writeError(w, http.StatusForbidden, "Only Warden can view all users")
			return
		}
		writeInternal(w, r, "failed to list users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	actor, ok := currentUser(w, r, sess, h.users, "Not logged in")
	if !ok {
		return
	}
	targetID, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch services.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.UpdateUser(r.Context(), actor, targetID, patch)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			writeError(w, http.StatusForbidden, "Only Warden can update other users")
			return
		}
		writeServiceError(w, r, err, "Target user not found", "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, UserMessageResponse{User: user, Message: "User updated successfully"})
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	actor, ok := currentUser(w, r, sess, h.users, "Not logged in")
	if !ok {
		return
	}
	targetID, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.users.Delete(r.Context(), actor, targetID); err != nil {
		switch {
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, "Only Warden can delete users")
		case errors.Is(err, services.ErrSelfDelete):
			writeError(w, http.StatusBadRequest, "Cannot delete your own account")
		default:
			writeServiceError(w, r, err, "User not found", "failed to delete user")
		}
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}

type ForceResetRequest struct {
	NewPassword string `json:"new_password"`
}

func (h *UserHandler) ForceResetPassword(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	actor, ok := currentUser(w, r, sess, h.users, "Not authenticated")
	if !ok {
		return
	}
	targetID, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req ForceResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.users.ForceResetPassword(r.Context(), actor, targetID, req.NewPassword); err != nil {
		if errors.Is(err, services.ErrForbidden) {
			writeError(w, http.StatusForbidden, "Only Warden can reset passwords")
			return
		}
		writeServiceError(w, r, err, "User not found", "failed to reset password")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password reset successfully"})
}

func (h *UserHandler) writeAccountError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if errors.Is(err, services.ErrUsernameTaken) {
		writeError(w, http.StatusBadRequest, "Username already exists")
		return
	}
	writeServiceError(w, r, err, "User not found", fallback)
}
