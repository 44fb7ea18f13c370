// Package common defines shared constants and sentinel errors used across the
// server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Credential errors. They intentionally do not say which factor was wrong.
	ErrInvalidCredential    = errors.New("invalid email or password")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrEmailNotVerified     = errors.New("email not verified")
	ErrProviderMismatch     = errors.New("account uses a different sign-in provider")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken          = errors.New("invalid token")
	ErrInvalidFederatedToken = errors.New("invalid federated identity token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Upstream provider errors (identity or image generation).
	ErrUpstreamFailure = errors.New("upstream provider failure")

	// Wallpaper-specific errors.
	ErrImageNotReady = errors.New("wallpaper image not generated yet")
)
