package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/aiwallpaper/internal/common"
	"github.com/dmitrijs2005/aiwallpaper/internal/logging"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	target error
	status int
	code   string
	// detail exposes the wrapped error text instead of the sentinel text.
	detail bool
}

var errorMappings = []errorMapping{
	{common.ErrorNotFound, http.StatusNotFound, "not_found", false},
	{common.ErrorConflict, http.StatusConflict, "conflict", true},
	{common.ErrorValidation, http.StatusUnprocessableEntity, "validation_error", true},
	{common.ErrInvalidCredential, http.StatusBadRequest, "invalid_credentials", false},
	{common.ErrInvalidOrExpiredCode, http.StatusBadRequest, "invalid_code", false},
	{common.ErrProviderMismatch, http.StatusBadRequest, "provider_mismatch", false},
	{common.ErrEmailNotVerified, http.StatusForbidden, "email_not_verified", false},
	{common.ErrTokenExpired, http.StatusUnauthorized, "token_expired", false},
	{common.ErrInvalidToken, http.StatusUnauthorized, "invalid_token", false},
	{common.ErrRefreshTokenExpired, http.StatusUnauthorized, "refresh_token_expired", false},
	{common.ErrorUnauthorized, http.StatusUnauthorized, "unauthorized", false},
	{common.ErrInvalidFederatedToken, http.StatusBadRequest, "invalid_federated_token", false},
	{common.ErrUpstreamFailure, http.StatusBadGateway, "upstream_failure", false},
	{common.ErrImageNotReady, http.StatusBadRequest, "image_not_ready", false},
}

// classify maps err to a status and a stable body. Unknown errors become a
// 500 whose message says nothing about the cause.
func classify(err error) (int, ErrorResponse) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.target.Error()
			if m.detail {
				msg = err.Error()
			}
			return m.status, ErrorResponse{Code: m.code, Message: msg}
		}
	}
	return http.StatusInternalServerError, ErrorResponse{Code: "internal_error", Message: common.ErrorInternal.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}
