package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/aiwallpaper/internal/common"
	"github.com/dmitrijs2005/aiwallpaper/internal/dbx"
	"github.com/dmitrijs2005/aiwallpaper/internal/logging"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/auth"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/metrics"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/models"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/notify"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/repositories/repomanager"
	usersrepo "github.com/dmitrijs2005/aiwallpaper/internal/server/repositories/users"
)

// Username length limits, counted in runes after trimming.
const (
	minUserNameLen = 3
	maxUserNameLen = 50
)

// maxBaseUserNameLen leaves room for a numeric suffix within maxUserNameLen.
const maxBaseUserNameLen = 40

// Registration is the input of a local signup.
type Registration struct {
	UserName string
	Email    string
	Password string
}

// GoogleProfile carries optional display hints sent by the client alongside
// the ID token. Name wins over the token claim. Picture is used only when the
// token has none and the hint is an https URL.
type GoogleProfile struct {
	Name    string
	Picture string
}

// AuthService runs signup, verification, login, password reset, Google
// sign-in and logout.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *TokenService
	hasher      *auth.Hasher
	codes       *auth.CodeIssuer
	dispatcher  Dispatcher
	log         logging.Logger
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, tokens *TokenService, hasher *auth.Hasher,
	codes *auth.CodeIssuer, d Dispatcher, log logging.Logger) *AuthService {
	return &AuthService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		hasher:      hasher,
		codes:       codes,
		dispatcher:  d,
		log:         log.With("module", "auth"),
	}
}

// Register creates an unverified local account and sends it a verification
// code. The account stays created even when the code cannot be dispatched.
func (s *AuthService) Register(ctx context.Context, r Registration) (_ *models.User, err error) {
	defer observeAuth("register", &err)

	email := common.NormalizeEmail(r.Email)
	userName, err := checkUserName(r.UserName)
	if err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(r.Password)
	if err != nil {
		return nil, err
	}
	code, expiresAt, err := s.codes.Issue()
	if err != nil {
		return nil, fmt.Errorf("error issuing code: %w", err)
	}

	user, err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		users := s.repomanager.Users(tx)

		if err := ensureEmailFree(ctx, users, email); err != nil {
			return nil, err
		}
		exists, err := users.UserNameExists(ctx, userName)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("username %w", common.ErrorConflict)
		}

		return users.Create(ctx, &models.User{
			UserName:                  userName,
			Email:                     email,
			PasswordHash:              &hash,
			Provider:                  models.ProviderLocal,
			VerificationCode:          &code,
			VerificationCodeExpiresAt: &expiresAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	s.deliver(ctx, notify.KindVerification, user.Email, code)
	return user, nil
}

// Verify consumes a verification code. Verifying an already verified
// account succeeds without touching it.
func (s *AuthService) Verify(ctx context.Context, email string, code int) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)

		user, err := users.GetByEmail(ctx, common.NormalizeEmail(email))
		if err != nil {
			return err
		}
		if user.IsVerified {
			return nil
		}
		if err := s.codes.Validate(user.VerificationCode, user.VerificationCodeExpiresAt, code); err != nil {
			return err
		}
		return users.MarkVerified(ctx, user.ID)
	})
}

// ResendCode replaces the verification code of a pending account and sends
// the new one. It is a no-op for verified accounts.
func (s *AuthService) ResendCode(ctx context.Context, email string) error {
	var (
		sent bool
		to   string
		code int
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)

		user, err := users.GetByEmail(ctx, common.NormalizeEmail(email))
		if err != nil {
			return err
		}
		if user.IsVerified {
			return nil
		}

		c, expiresAt, err := s.codes.Issue()
		if err != nil {
			return fmt.Errorf("error issuing code: %w", err)
		}
		if err := users.SetVerificationCode(ctx, user.ID, c, expiresAt); err != nil {
			return err
		}
		sent, to, code = true, user.Email, c
		return nil
	})
	if err != nil {
		return err
	}

	if sent {
		s.deliver(ctx, notify.KindVerification, to, code)
	}
	return nil
}

// Login checks local credentials and issues a token pair, replacing the
// user's previous refresh token. Accounts of another provider fail with
// common.ErrProviderMismatch before any password comparison.
func (s *AuthService) Login(ctx context.Context, email, password string) (_ *TokenPair, err error) {
	defer observeAuth("login", &err)

	return dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*TokenPair, error) {
		user, err := s.repomanager.Users(tx).GetByEmail(ctx, common.NormalizeEmail(email))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, common.ErrInvalidCredential
			}
			return nil, err
		}
		if user.Provider != models.ProviderLocal {
			return nil, common.ErrProviderMismatch
		}
		if user.PasswordHash == nil || !s.hasher.Check(*user.PasswordHash, password) {
			return nil, common.ErrInvalidCredential
		}
		if !user.IsVerified {
			return nil, common.ErrEmailNotVerified
		}

		pair, err := s.tokens.IssuePair(ctx, tx, user)
		if err != nil {
			return nil, err
		}
		s.log.Info(ctx, "user logged in", "user_id", user.ID)
		return pair, nil
	})
}

// Refresh mints a new access token from a stored refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

// ForgotPassword issues a reset code to a local account. Verification state
// does not matter.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	var (
		to   string
		code int
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)

		user, err := users.GetByEmail(ctx, common.NormalizeEmail(email))
		if err != nil {
			return err
		}
		if user.Provider != models.ProviderLocal {
			return common.ErrProviderMismatch
		}

		c, expiresAt, err := s.codes.Issue()
		if err != nil {
			return fmt.Errorf("error issuing code: %w", err)
		}
		if err := users.SetResetCode(ctx, user.ID, c, expiresAt); err != nil {
			return err
		}
		to, code = user.Email, c
		return nil
	})
	if err != nil {
		return err
	}

	s.deliver(ctx, notify.KindPasswordReset, to, code)
	return nil
}

// ResetPassword consumes a reset code and replaces the password. The code is
// cleared so it cannot be used twice.
func (s *AuthService) ResetPassword(ctx context.Context, email string, code int, newPassword string) (err error) {
	defer observeAuth("reset_password", &err)

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)

		user, err := users.GetByEmail(ctx, common.NormalizeEmail(email))
		if err != nil {
			return err
		}
		if user.Provider != models.ProviderLocal {
			return common.ErrProviderMismatch
		}
		if err := s.codes.Validate(user.ResetCode, user.ResetCodeExpiresAt, code); err != nil {
			return err
		}

		hash, err := s.hashPassword(newPassword)
		if err != nil {
			return err
		}
		return users.UpdatePassword(ctx, user.ID, hash)
	})
}

// GoogleSignIn signs in with a Google ID token, provisioning a verified
// passwordless account on first use.
func (s *AuthService) GoogleSignIn(ctx context.Context, idToken string, hint GoogleProfile) (_ *TokenPair, err error) {
	defer observeAuth("google", &err)

	claims, err := s.tokens.ValidateFederatedIdentity(ctx, idToken)
	if err != nil {
		return nil, err
	}
	email := common.NormalizeEmail(claims.Email)

	return dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*TokenPair, error) {
		users := s.repomanager.Users(tx)

		user, err := users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if user.Provider != models.ProviderGoogle {
				return nil, common.ErrProviderMismatch
			}
		case errors.Is(err, common.ErrorNotFound):
			user, err = s.provisionGoogleUser(ctx, users, email, firstNonEmpty(hint.Name, claims.Name),
				googlePicture(claims.Picture, hint.Picture))
			if err != nil {
				return nil, err
			}
		default:
			return nil, err
		}

		return s.tokens.IssuePair(ctx, tx, user)
	})
}

func (s *AuthService) provisionGoogleUser(ctx context.Context, users usersrepo.Repository, email, name, picture string) (*models.User, error) {
	userName, err := uniqueUserName(ctx, users, baseUserName(name, email))
	if err != nil {
		return nil, err
	}

	u := &models.User{
		UserName:   userName,
		Email:      email,
		IsVerified: true,
		Provider:   models.ProviderGoogle,
	}
	if picture != "" {
		u.ProfileImage = &picture
	}

	created, err := users.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "google user provisioned", "user_id", created.ID)
	return created, nil
}

// Logout deletes the refresh token. It succeeds whether or not the token
// existed.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		s.log.Warn(ctx, "refresh token delete failed", "error", err)
	}
	return nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return hash, nil
}

// deliver dispatches a code email. Failures are logged and swallowed.
func (s *AuthService) deliver(ctx context.Context, kind notify.Kind, to string, code int) {
	m := notify.Message{Kind: kind, To: to, Code: code}
	if err := s.dispatcher.DispatchEmail(context.WithoutCancel(ctx), m); err != nil {
		s.log.Warn(ctx, "code delivery not dispatched", "kind", string(kind), "error", err)
	}
}

func ensureEmailFree(ctx context.Context, users usersrepo.Repository, email string) error {
	_, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return fmt.Errorf("email %w", common.ErrorConflict)
	case errors.Is(err, common.ErrorNotFound):
		return nil
	default:
		return err
	}
}

// checkUserName trims name and enforces the length limits on the result.
func checkUserName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < minUserNameLen || n > maxUserNameLen {
		return "", fmt.Errorf("%w: username must be %d to %d characters", common.ErrorValidation, minUserNameLen, maxUserNameLen)
	}
	return name, nil
}

// googlePicture prefers the verified claim over the client hint.
func googlePicture(claim, hint string) string {
	if claim = strings.TrimSpace(claim); claim != "" {
		return claim
	}
	if hint = strings.TrimSpace(hint); isHTTPSURL(hint) {
		return hint
	}
	return ""
}

func isHTTPSURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme == "https" && u.Host != ""
}

// baseUserName derives a username from a display name or the email local
// part.
func baseUserName(name, email string) string {
	base := strings.TrimSpace(name)
	if base == "" {
		base, _, _ = strings.Cut(email, "@")
		base = strings.TrimSpace(base)
	}
	if utf8.RuneCountInString(base) > maxBaseUserNameLen {
		base = strings.TrimSpace(string([]rune(base)[:maxBaseUserNameLen]))
	}
	if base == "" {
		base = "user"
	}
	return base
}

// uniqueUserName probes base, base_1, base_2, ... and returns the first free
// name.
func uniqueUserName(ctx context.Context, users usersrepo.Repository, base string) (string, error) {
	candidate := base
	for i := 1; ; i++ {
		exists, err := users.UserNameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
}

func observeAuth(flow string, err *error) {
	metrics.AuthAttemptsTotal.WithLabelValues(flow, metrics.Result(*err)).Inc()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
