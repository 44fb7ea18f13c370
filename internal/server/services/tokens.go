package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/aiwallpaper/internal/common"
	"github.com/dmitrijs2005/aiwallpaper/internal/dbx"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/auth"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/config"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/models"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/repositories/repomanager"
)

// GoogleIssuers are the accepted values of the iss claim of a Google ID token.
var GoogleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

const refreshTokenBytes = 32

// TokenService issues and validates bearer credentials: signed access tokens,
// opaque refresh tokens stored one per user, and Google ID tokens.
type TokenService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	googleClientID               string
	verifier                     IdentityVerifier
	now                          func() time.Time
}

// NewTokenService builds a TokenService. verifier may be nil, in which case
// every federated token is rejected.
func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, verifier IdentityVerifier) *TokenService {
	return &TokenService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		googleClientID:               cfg.GoogleClientID,
		verifier:                     verifier,
		now:                          time.Now,
	}
}

func (s *TokenService) CreateAccessToken(subject string) (string, error) {
	return auth.GenerateToken(subject, s.jwtSecret, s.accessTokenValidityDuration)
}

// ValidateAccessToken returns the subject of a valid token, or
// common.ErrTokenExpired / common.ErrInvalidToken.
func (s *TokenService) ValidateAccessToken(token string) (string, error) {
	return auth.GetSubjectFromToken(token, s.jwtSecret)
}

func (s *TokenService) CreateRefreshToken() (string, error) {
	return common.MakeRandHexString(refreshTokenBytes)
}

// IssuePair mints an access token for the user and replaces the user's
// refresh token. Run it inside the caller's transaction.
func (s *TokenService) IssuePair(ctx context.Context, tx dbx.DBTX, user *models.User) (*TokenPair, error) {
	access, err := s.CreateAccessToken(user.Email)
	if err != nil {
		return nil, fmt.Errorf("error generating access token: %w", err)
	}
	refresh, err := s.CreateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}

	expiresAt := s.now().Add(s.refreshTokenValidityDuration)
	if err := s.repomanager.RefreshTokens(tx).Upsert(ctx, user.ID, refresh, expiresAt); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh mints a new access token for the owner of refreshToken. The refresh
// token itself is returned unchanged.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.repomanager.RefreshTokens(s.db).Find(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if token.Expires.Before(s.now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}

	access, err := s.CreateAccessToken(user.Email)
	if err != nil {
		return nil, fmt.Errorf("error generating access token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refreshToken}, nil
}

// Revoke deletes a refresh token. Unknown tokens are ignored.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	return s.repomanager.RefreshTokens(s.db).Delete(ctx, refreshToken)
}

// ValidateFederatedIdentity verifies a Google ID token and checks its issuer
// and audience. Every failure yields common.ErrInvalidFederatedToken.
func (s *TokenService) ValidateFederatedIdentity(ctx context.Context, idToken string) (*auth.IdentityClaims, error) {
	if s.verifier == nil || s.googleClientID == "" {
		return nil, fmt.Errorf("%w: google sign-in is not configured", common.ErrInvalidFederatedToken)
	}

	claims, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidFederatedToken, err)
	}
	if !slices.Contains(GoogleIssuers, claims.Issuer) {
		return nil, fmt.Errorf("%w: issuer %q", common.ErrInvalidFederatedToken, claims.Issuer)
	}
	if !slices.Contains(claims.Audience, s.googleClientID) {
		return nil, fmt.Errorf("%w: audience mismatch", common.ErrInvalidFederatedToken)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: token has no email", common.ErrInvalidFederatedToken)
	}
	return claims, nil
}
