package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/aiwallpaper/internal/common"
	"github.com/dmitrijs2005/aiwallpaper/internal/dbx"
	"github.com/dmitrijs2005/aiwallpaper/internal/logging"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/auth"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/config"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/models"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/notify"
	refreshtokensrepo "github.com/dmitrijs2005/aiwallpaper/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/aiwallpaper/internal/server/repositories/users"
	wallpapersrepo "github.com/dmitrijs2005/aiwallpaper/internal/server/repositories/wallpapers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// --- database handle ---

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		CodeValidityDuration:         15 * time.Minute,
		GoogleClientID:               "client-1",
		GenerationTimeout:            time.Second,
	}
}

// --- users ---

type fakeUsersRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{users: map[string]*models.User{}}
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func (f *fakeUsersRepo) find(match func(*models.User) bool) *models.User {
	for _, u := range f.users {
		if match(u) {
			return u
		}
	}
	return nil
}

func (f *fakeUsersRepo) put(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Provider == "" {
		u.Provider = models.ProviderLocal
	}
	f.users[u.ID] = copyUser(u)
	return u
}

func (f *fakeUsersRepo) get(id string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return copyUser(u)
	}
	return nil
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dup := f.find(func(x *models.User) bool {
		return strings.EqualFold(x.Email, u.Email) || x.UserName == u.UserName
	})
	if dup != nil {
		return nil, common.ErrorConflict
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID] = copyUser(u)
	return copyUser(u), nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u := f.get(id); u != nil {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u := f.find(func(x *models.User) bool { return strings.EqualFold(x.Email, email) }); u != nil {
		return copyUser(u), nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u := f.find(func(x *models.User) bool { return x.UserName == userName }); u != nil {
		return copyUser(u), nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) UserNameExists(ctx context.Context, userName string) (bool, error) {
	_, err := f.GetByUserName(ctx, userName)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeUsersRepo) update(id string, fn func(u *models.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUsersRepo) SetVerificationCode(ctx context.Context, id string, code int, expiresAt time.Time) error {
	return f.update(id, func(u *models.User) {
		u.VerificationCode, u.VerificationCodeExpiresAt = &code, &expiresAt
	})
}

func (f *fakeUsersRepo) MarkVerified(ctx context.Context, id string) error {
	return f.update(id, func(u *models.User) {
		u.IsVerified = true
		u.VerificationCode, u.VerificationCodeExpiresAt = nil, nil
	})
}

func (f *fakeUsersRepo) SetResetCode(ctx context.Context, id string, code int, expiresAt time.Time) error {
	return f.update(id, func(u *models.User) {
		u.ResetCode, u.ResetCodeExpiresAt = &code, &expiresAt
	})
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return f.update(id, func(u *models.User) {
		u.PasswordHash = &passwordHash
		u.ResetCode, u.ResetCodeExpiresAt = nil, nil
	})
}

func (f *fakeUsersRepo) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	err := f.update(id, func(u *models.User) {
		if upd.UserName != nil {
			u.UserName = *upd.UserName
		}
		if upd.FirstName != nil {
			u.FirstName = upd.FirstName
		}
		if upd.LastName != nil {
			u.LastName = upd.LastName
		}
		if upd.PhoneNumber != nil {
			u.PhoneNumber = upd.PhoneNumber
		}
	})
	if err != nil {
		return nil, err
	}
	return f.get(id), nil
}

func (f *fakeUsersRepo) UpdateProfileImage(ctx context.Context, id string, ref *string) error {
	return f.update(id, func(u *models.User) { u.ProfileImage = ref })
}

// --- refresh tokens ---

type fakeRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken // by user id
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[string]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Upsert(ctx context.Context, userID string, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[userID] = &models.RefreshToken{ID: uuid.NewString(), UserID: userID, Token: token, Expires: expiresAt, CreatedAt: time.Now()}
	return nil
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rt := range f.tokens {
		if rt.Token == token {
			c := *rt
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for uid, rt := range f.tokens {
		if rt.Token == token {
			delete(f.tokens, uid)
		}
	}
	return nil
}

func (f *fakeRefreshRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

// --- wallpapers ---

type fakeWallpapersRepo struct {
	mu         sync.Mutex
	wallpapers map[string]*models.Wallpaper
	seq        int
}

func newFakeWallpapersRepo() *fakeWallpapersRepo {
	return &fakeWallpapersRepo{wallpapers: map[string]*models.Wallpaper{}}
}

func (f *fakeWallpapersRepo) Create(ctx context.Context, w *models.Wallpaper) (*models.Wallpaper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	w.ID = uuid.NewString()
	if w.Status == "" {
		w.Status = models.WallpaperPending
	}
	w.CreatedAt = time.Unix(int64(f.seq), 0)
	w.UpdatedAt = w.CreatedAt
	c := *w
	f.wallpapers[w.ID] = &c
	return w, nil
}

func (f *fakeWallpapersRepo) get(id string) *models.Wallpaper {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.wallpapers[id]; ok {
		c := *w
		return &c
	}
	return nil
}

func (f *fakeWallpapersRepo) GetByID(ctx context.Context, id string) (*models.Wallpaper, error) {
	if w := f.get(id); w != nil {
		return w, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeWallpapersRepo) GetForUser(ctx context.Context, id, userID string) (*models.Wallpaper, error) {
	if w := f.get(id); w != nil && w.UserID == userID {
		return w, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeWallpapersRepo) ListByUser(ctx context.Context, userID string) ([]*models.Wallpaper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Wallpaper{}
	for _, w := range f.wallpapers {
		if w.UserID == userID {
			c := *w
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeWallpapersRepo) Delete(ctx context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallpapers[id]
	if !ok || w.UserID != userID {
		return common.ErrorNotFound
	}
	delete(f.wallpapers, id)
	return nil
}

func (f *fakeWallpapersRepo) settle(id string, status models.WallpaperStatus, ref *string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallpapers[id]
	if !ok || w.Status != models.WallpaperPending {
		return false
	}
	w.Status, w.ImageRef = status, ref
	return true
}

func (f *fakeWallpapersRepo) MarkCompleted(ctx context.Context, id, imageRef string) (bool, error) {
	return f.settle(id, models.WallpaperCompleted, &imageRef), nil
}

func (f *fakeWallpapersRepo) MarkFailed(ctx context.Context, id string) (bool, error) {
	return f.settle(id, models.WallpaperFailed, nil), nil
}

// --- manager ---

type fakeRepoManager struct {
	users      *fakeUsersRepo
	refresh    *fakeRefreshRepo
	wallpapers *fakeWallpapersRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{users: newFakeUsersRepo(), refresh: newFakeRefreshRepo(), wallpapers: newFakeWallpapersRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return m.users }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository {
	return m.refresh
}
func (m *fakeRepoManager) Wallpapers(dbx.DBTX) wallpapersrepo.Repository { return m.wallpapers }

// --- collaborators ---

type fakeDispatcher struct {
	mu          sync.Mutex
	generations []string
	emails      []notify.Message
	genErr      error
	emailErr    error
}

func (d *fakeDispatcher) DispatchGeneration(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.genErr != nil {
		return d.genErr
	}
	d.generations = append(d.generations, id)
	return nil
}

func (d *fakeDispatcher) DispatchEmail(ctx context.Context, m notify.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.emailErr != nil {
		return d.emailErr
	}
	d.emails = append(d.emails, m)
	return nil
}

func (d *fakeDispatcher) lastEmail(t *testing.T) notify.Message {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.emails)
	return d.emails[len(d.emails)-1]
}

func (d *fakeDispatcher) emailCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.emails)
}

type fakeVerifier struct {
	claims *auth.IdentityClaims
	err    error
}

func (v *fakeVerifier) Verify(ctx context.Context, idToken string) (*auth.IdentityClaims, error) {
	if v.err != nil {
		return nil, v.err
	}
	c := *v.claims
	return &c, nil
}

type fakeGenerator struct {
	mu         sync.Mutex
	data       []byte
	err        error
	block      bool
	suggestion string
	prompts    []string
	sizes      [][2]int
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.sizes = append(g.sizes, [2]int{width, height})
	block, data, err := g.block, g.data, g.err
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return data, err
}

func (g *fakeGenerator) Suggest(ctx context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.suggestion, nil
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// --- fixtures ---

var testHasher = &auth.Hasher{Cost: bcrypt.MinCost}

func hashOf(t *testing.T, password string) *string {
	t.Helper()
	h, err := testHasher.Hash(password)
	require.NoError(t, err)
	return &h
}

type authFixture struct {
	db         *sql.DB
	rm         *fakeRepoManager
	dispatcher *fakeDispatcher
	verifier   *fakeVerifier
	tokens     *TokenService
	codes      *auth.CodeIssuer
	svc        *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		db:         newTestDB(t),
		rm:         newFakeRepoManager(),
		dispatcher: &fakeDispatcher{},
		verifier: &fakeVerifier{claims: &auth.IdentityClaims{
			Issuer:   "https://accounts.google.com",
			Audience: []string{"client-1"},
			Email:    "Alice@Gmail.com",
			Name:     "alice",
			Picture:  "https://lh3.googleusercontent.com/a/pic",
		}},
	}
	cfg := testConfig()
	f.tokens = NewTokenService(f.db, f.rm, cfg, f.verifier)
	f.codes = auth.NewCodeIssuer(cfg.CodeValidityDuration)
	f.svc = NewAuthService(f.db, f.rm, f.tokens, testHasher, f.codes, f.dispatcher, logging.Nop())
	return f
}

// verifiedUser stores a verified local user with the given password.
func (f *authFixture) verifiedUser(t *testing.T, userName, email, password string) *models.User {
	t.Helper()
	return f.rm.users.put(&models.User{
		UserName:     userName,
		Email:        email,
		PasswordHash: hashOf(t, password),
		IsVerified:   true,
		Provider:     models.ProviderLocal,
	})
}
