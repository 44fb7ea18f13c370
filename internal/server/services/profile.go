package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/aiwallpaper/internal/common"
	"github.com/dmitrijs2005/aiwallpaper/internal/dbx"
	"github.com/dmitrijs2005/aiwallpaper/internal/logging"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/auth"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/models"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/storage"
)

const profilePicturePrefix = "profile_pics"

// ProfilePicture is either a stored blob or, for federated accounts, an
// external URL.
type ProfilePicture struct {
	Data        []byte
	ContentType string
	URL         string
}

type ProfileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.Hasher
	store       storage.ContentStore
	log         logging.Logger
}

func NewProfileService(db *sql.DB, m repomanager.RepositoryManager, hasher *auth.Hasher, store storage.ContentStore, log logging.Logger) *ProfileService {
	return &ProfileService{db: db, repomanager: m, hasher: hasher, store: store, log: log.With("module", "profile")}
}

// CurrentUser resolves the subject of an access token.
func (s *ProfileService) CurrentUser(ctx context.Context, email string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByEmail(ctx, common.NormalizeEmail(email))
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

// Update changes the profile columns set in upd. A username held by another
// user yields common.ErrorConflict.
func (s *ProfileService) Update(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error) {
	return dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		users := s.repomanager.Users(tx)

		if upd.UserName != nil {
			name, err := checkUserName(*upd.UserName)
			if err != nil {
				return nil, err
			}
			upd.UserName = &name

			other, err := users.GetByUserName(ctx, name)
			switch {
			case err == nil && other.ID != userID:
				return nil, fmt.Errorf("username %w", common.ErrorConflict)
			case err != nil && !isNotFound(err):
				return nil, err
			}
		}

		return users.UpdateProfile(ctx, userID, upd)
	})
}

// ChangePassword replaces the password of a local account after checking the
// current one.
func (s *ProfileService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)

		user, err := users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.Provider != models.ProviderLocal {
			return common.ErrProviderMismatch
		}
		if user.PasswordHash == nil || !s.hasher.Check(*user.PasswordHash, oldPassword) {
			return common.ErrInvalidCredential
		}

		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrorValidation, err)
		}
		return users.UpdatePassword(ctx, user.ID, hash)
	})
}

// UpdatePicture stores a new profile picture and removes the previous
// stored one.
func (s *ProfileService) UpdatePicture(ctx context.Context, userID string, data []byte, contentType string) (*models.User, error) {
	if !storage.SupportedImageType(contentType) {
		return nil, fmt.Errorf("%w: unsupported image type %q", common.ErrorValidation, contentType)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", common.ErrorValidation)
	}

	users := s.repomanager.Users(s.db)
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	ref, err := s.store.Save(ctx, profilePicturePrefix, data, contentType)
	if err != nil {
		return nil, err
	}
	if err := users.UpdateProfileImage(ctx, userID, &ref); err != nil {
		s.removeBlob(ctx, ref)
		return nil, err
	}

	if old := user.ProfileImage; old != nil && isStoredRef(*old) {
		s.removeBlob(ctx, *old)
	}
	user.ProfileImage = &ref
	return user, nil
}

func (s *ProfileService) Picture(ctx context.Context, userID string) (*ProfilePicture, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ProfileImage == nil || *user.ProfileImage == "" {
		return nil, common.ErrorNotFound
	}

	ref := *user.ProfileImage
	if !isStoredRef(ref) {
		if !isHTTPSURL(ref) {
			return nil, common.ErrorNotFound
		}
		return &ProfilePicture{URL: ref}, nil
	}
	data, err := s.store.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &ProfilePicture{Data: data, ContentType: storage.ContentTypeFor(ref)}, nil
}

func (s *ProfileService) removeBlob(ctx context.Context, ref string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.log.Warn(ctx, "blob delete failed", "ref", ref, "error", err)
	}
}

// isStoredRef tells content store references from external picture URLs.
func isStoredRef(ref string) bool {
	return !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://")
}
