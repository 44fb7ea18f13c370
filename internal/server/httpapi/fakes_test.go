package httpapi

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/aiwallpaper/internal/common"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/models"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/services"
)

// ---- fakes ----

type fakeAuth struct {
	mu sync.Mutex

	registered []services.Registration
	regErr     error

	verifyErr error
	resendErr error

	loginResp *services.TokenPair
	loginErr  error

	refreshResp *services.TokenPair
	refreshErr  error

	forgotErr error
	resetErr  error

	googleResp *services.TokenPair
	googleErr  error
	googleHint services.GoogleProfile

	logoutErr    error
	loggedOut    []string
	verifiedCode int
}

func (f *fakeAuth) Register(ctx context.Context, r services.Registration) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.regErr != nil {
		return nil, f.regErr
	}
	f.registered = append(f.registered, r)
	return &models.User{ID: "u-1", UserName: r.UserName, Email: r.Email}, nil
}
func (f *fakeAuth) Verify(ctx context.Context, email string, code int) error {
	f.verifiedCode = code
	return f.verifyErr
}
func (f *fakeAuth) ResendCode(ctx context.Context, email string) error { return f.resendErr }
func (f *fakeAuth) Login(ctx context.Context, email, password string) (*services.TokenPair, error) {
	return f.loginResp, f.loginErr
}
func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	return f.refreshResp, f.refreshErr
}
func (f *fakeAuth) ForgotPassword(ctx context.Context, email string) error { return f.forgotErr }
func (f *fakeAuth) ResetPassword(ctx context.Context, email string, code int, newPassword string) error {
	return f.resetErr
}
func (f *fakeAuth) GoogleSignIn(ctx context.Context, idToken string, hint services.GoogleProfile) (*services.TokenPair, error) {
	f.googleHint = hint
	return f.googleResp, f.googleErr
}
func (f *fakeAuth) Logout(ctx context.Context, refreshToken string) error {
	f.loggedOut = append(f.loggedOut, refreshToken)
	return f.logoutErr
}

type fakeProfile struct {
	users map[string]*models.User // by email

	updateErr   error
	lastUpdate  models.ProfileUpdate
	passwordErr error

	pictureData []byte
	pictureType string
	uploadErr   error

	pic    *services.ProfilePicture
	picErr error
}

func (f *fakeProfile) CurrentUser(ctx context.Context, email string) (*models.User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}
func (f *fakeProfile) Get(ctx context.Context, userID string) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}
func (f *fakeProfile) Update(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error) {
	f.lastUpdate = upd
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	u, _ := f.Get(ctx, userID)
	cp := *u
	if upd.UserName != nil {
		cp.UserName = *upd.UserName
	}
	if upd.FirstName != nil {
		cp.FirstName = upd.FirstName
	}
	return &cp, nil
}
func (f *fakeProfile) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	return f.passwordErr
}
func (f *fakeProfile) UpdatePicture(ctx context.Context, userID string, data []byte, contentType string) (*models.User, error) {
	f.pictureData = data
	f.pictureType = contentType
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	u, _ := f.Get(ctx, userID)
	ref := "profile_pics/new.png"
	cp := *u
	cp.ProfileImage = &ref
	return &cp, nil
}
func (f *fakeProfile) Picture(ctx context.Context, userID string) (*services.ProfilePicture, error) {
	return f.pic, f.picErr
}

type fakeWallpapers struct {
	items map[string]*models.Wallpaper

	submitted []services.JobRequest
	submitErr error

	deleted []string

	data    []byte
	dlErr   error
	suggest string
	sugErr  error
}

func (f *fakeWallpapers) Submit(ctx context.Context, userID string, req services.JobRequest) (*models.Wallpaper, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return &models.Wallpaper{ID: "w-new", UserID: userID, Prompt: req.Prompt, Size: req.Size, Style: req.Style, Status: models.WallpaperPending}, nil
}
func (f *fakeWallpapers) Recreate(ctx context.Context, userID, id string) (*models.Wallpaper, error) {
	old, err := f.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return &models.Wallpaper{ID: "w-again", UserID: userID, Prompt: old.Prompt, Size: old.Size, Style: old.Style, Status: models.WallpaperPending}, nil
}
func (f *fakeWallpapers) List(ctx context.Context, userID string) ([]*models.Wallpaper, error) {
	var out []*models.Wallpaper
	for _, w := range f.items {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}
func (f *fakeWallpapers) Get(ctx context.Context, userID, id string) (*models.Wallpaper, error) {
	w, ok := f.items[id]
	if !ok || w.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return w, nil
}
func (f *fakeWallpapers) Delete(ctx context.Context, userID, id string) error {
	if _, err := f.Get(ctx, userID, id); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	delete(f.items, id)
	return nil
}
func (f *fakeWallpapers) Download(ctx context.Context, userID, id string) ([]byte, string, error) {
	if _, err := f.Get(ctx, userID, id); err != nil {
		return nil, "", err
	}
	if f.dlErr != nil {
		return nil, "", f.dlErr
	}
	return f.data, "image/webp", nil
}
func (f *fakeWallpapers) Suggest(ctx context.Context, prompt string) (string, error) {
	return f.suggest, f.sugErr
}

// fakeTokens maps access tokens to subjects or errors.
type fakeTokens struct {
	subjects map[string]string
	errs     map[string]error
}

func (f *fakeTokens) ValidateAccessToken(token string) (string, error) {
	if err, ok := f.errs[token]; ok {
		return "", err
	}
	if s, ok := f.subjects[token]; ok {
		return s, nil
	}
	return "", common.ErrInvalidToken
}
