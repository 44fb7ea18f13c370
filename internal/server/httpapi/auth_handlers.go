package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/aiwallpaper/internal/server/services"
)

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	_, err := h.auth.Register(r.Context(), services.Registration{
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{
		Message: "User registered successfully. Please check your email for the 6-digit code.",
	})
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.auth.Verify(r.Context(), req.Email, req.Code); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Email verified successfully"})
}

func (h *handler) resendCode(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.auth.ResendCode(r.Context(), req.Email); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "A new verification code has been sent to your email"})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	pair, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset code sent to your email"})
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Email, req.Code, req.Password); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset successful. You can now log in."})
}

func (h *handler) google(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	pair, err := h.auth.GoogleSignIn(r.Context(), req.IDToken, services.GoogleProfile{Name: req.Name, Picture: req.Picture})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

// logout answers 200 even for unknown tokens.
func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	_ = h.auth.Logout(r.Context(), req.RefreshToken)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Signed out successfully"})
}
