package handlers

import (
	"errors"
	"net/http"

	"github.com/hostel-inventory/apiserver/internal/services"
)

type RequestResetRequest struct {
	Email string `json:"email"`
}

type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ResetWithCodeRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// RequestReset always answers 200 once the email is present, so callers
// cannot discover which addresses have accounts.
func (h *UserHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req RequestResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	delivery, err := h.users.RequestReset(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, err, "User not found", "Failed to generate code")
		return
	}

	message := "If email exists, reset code has been sent"
	switch delivery {
	case services.ResetSent:
		message = "Reset code sent to your email"
	case services.ResetNotDelivered:
		message = "Reset code generated (check server logs)"
	case services.ResetUnknownEmail:
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

func (h *UserHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.users.VerifyResetCode(r.Context(), req.Email, req.Code); err != nil {
		writeResetError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Code verified successfully"})
}

func (h *UserHandler) ResetPasswordWithCode(w http.ResponseWriter, r *http.Request) {
	var req ResetWithCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.users.ResetPasswordWithCode(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		writeResetError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password reset successfully"})
}

func writeResetError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidResetCode):
		writeError(w, http.StatusBadRequest, "Invalid or expired code")
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	default:
		writeServiceError(w, r, err, "User not found", "failed to reset password")
	}
}
