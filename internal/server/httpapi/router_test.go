package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/dmitrijs2005/aiwallpaper/internal/common"
	"github.com/dmitrijs2005/aiwallpaper/internal/logging"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/models"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	auth       *fakeAuth
	profile    *fakeProfile
	wallpapers *fakeWallpapers
	h          http.Handler
}

func newFixture(t *testing.T, opts Options) *apiFixture {
	t.Helper()
	ref := "wallpapers/w-1.webp"
	f := &apiFixture{
		auth: &fakeAuth{},
		profile: &fakeProfile{users: map[string]*models.User{
			"alice@example.com": {ID: "u-1", UserName: "alice", Email: "alice@example.com", IsVerified: true, Provider: models.ProviderLocal},
		}},
		wallpapers: &fakeWallpapers{items: map[string]*models.Wallpaper{
			"w-1": {ID: "w-1", UserID: "u-1", Prompt: "sunset", Size: "1:1", Status: models.WallpaperCompleted, ImageRef: &ref},
			"w-2": {ID: "w-2", UserID: "u-2", Prompt: "forest", Size: "1:1", Status: models.WallpaperPending},
		}},
	}
	tokens := &fakeTokens{
		subjects: map[string]string{"good": "alice@example.com", "gone": "ghost@example.com"},
		errs:     map[string]error{"old": common.ErrTokenExpired},
	}
	f.h = NewRouter(Deps{
		Auth:       f.auth,
		Profile:    f.profile,
		Wallpapers: f.wallpapers,
		Tokens:     tokens,
		Logger:     logging.Nop(),
	}, opts)
	return f
}

func (f *apiFixture) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, Options{})
	rec := f.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRegister(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(http.MethodPost, "/auth/register",
		`{"username":"alice","email":"alice@example.com","password":"Secret123","confirm_password":"Secret123"}`, "")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, f.auth.registered, 1)
	assert.Equal(t, services.Registration{UserName: "alice", Email: "alice@example.com", Password: "Secret123"}, f.auth.registered[0])
	assert.Contains(t, decodeBody[messageResponse](t, rec).Message, "6-digit code")
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"weak password", `{"username":"alice","email":"a@b.io","password":"onlyletters","confirm_password":"onlyletters"}`, "password must be"},
		{"short password", `{"username":"alice","email":"a@b.io","password":"ab1","confirm_password":"ab1"}`, "password must be"},
		{"mismatch", `{"username":"alice","email":"a@b.io","password":"Secret123","confirm_password":"Secret124"}`, "passwords do not match"},
		{"short username", `{"username":"al","email":"a@b.io","password":"Secret123","confirm_password":"Secret123"}`, "username"},
		{"blank username", `{"username":"   ","email":"a@b.io","password":"Secret123","confirm_password":"Secret123"}`, "username"},
		{"padded short username", `{"username":"  a ","email":"a@b.io","password":"Secret123","confirm_password":"Secret123"}`, "username"},
		{"bad email", `{"username":"alice","email":"nope","password":"Secret123","confirm_password":"Secret123"}`, "email"},
		{"malformed", `{"username":`, "malformed"},
		{"unknown field", `{"username":"alice","admin":true}`, "malformed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			rec := f.do(http.MethodPost, "/auth/register", tt.body, "")

			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			body := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, "validation_error", body.Code)
			assert.Contains(t, body.Message, tt.message)
			assert.Empty(t, f.auth.registered)
		})
	}
}

func TestRegister_TrimsUserName(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(http.MethodPost, "/auth/register",
		`{"username":"  alice ","email":"alice@example.com","password":"Secret123","confirm_password":"Secret123"}`, "")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, f.auth.registered, 1)
	assert.Equal(t, "alice", f.auth.registered[0].UserName)
}

func TestVerify_PassesCode(t *testing.T) {
	f := newFixture(t, Options{})
	rec := f.do(http.MethodPost, "/auth/verify", `{"email":"alice@example.com","code":123456}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 123456, f.auth.verifiedCode)

	rec = f.do(http.MethodPost, "/auth/verify", `{"email":"alice@example.com","code":12}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAuthErrors_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"bad credentials", common.ErrInvalidCredential, http.StatusBadRequest, "invalid_credentials"},
		{"not verified", common.ErrEmailNotVerified, http.StatusForbidden, "email_not_verified"},
		{"provider", common.ErrProviderMismatch, http.StatusBadRequest, "provider_mismatch"},
		{"unexpected", errors.New("connection reset by peer"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.auth.loginErr = tt.err

			rec := f.do(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"Secret123"}`, "")

			require.Equal(t, tt.status, rec.Code)
			body := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, body.Code)
			assert.NotContains(t, body.Message, "connection reset")
		})
	}
}

func TestLoginAndRefresh_ReturnTokens(t *testing.T) {
	f := newFixture(t, Options{})
	f.auth.loginResp = &services.TokenPair{AccessToken: "a1", RefreshToken: "r1"}
	f.auth.refreshResp = &services.TokenPair{AccessToken: "a2", RefreshToken: "r1"}

	rec := f.do(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"Secret123"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tokenResponse{AccessToken: "a1", RefreshToken: "r1", TokenType: "bearer"}, decodeBody[tokenResponse](t, rec))

	rec = f.do(http.MethodPost, "/auth/refresh", `{"refresh_token":"r1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a2", decodeBody[tokenResponse](t, rec).AccessToken)

	f.auth.refreshErr = common.ErrRefreshTokenExpired
	rec = f.do(http.MethodPost, "/auth/refresh", `{"refresh_token":"r1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "refresh_token_expired", decodeBody[ErrorResponse](t, rec).Code)
}

func TestGoogle_ForwardsHint(t *testing.T) {
	f := newFixture(t, Options{})
	f.auth.googleResp = &services.TokenPair{AccessToken: "a", RefreshToken: "r"}

	rec := f.do(http.MethodPost, "/auth/google", `{"id_token":"tok","name":"Alice","picture":"https://img.example/p.png"}`, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.GoogleProfile{Name: "Alice", Picture: "https://img.example/p.png"}, f.auth.googleHint)

	f.auth.googleErr = common.ErrInvalidFederatedToken
	rec = f.do(http.MethodPost, "/auth/google", `{"id_token":"tok"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_federated_token", decodeBody[ErrorResponse](t, rec).Code)
}

func TestGoogle_PictureMustBeHTTPS(t *testing.T) {
	for _, picture := range []string{"http://img.example/p.png", "javascript:alert(1)", "ftp://img.example/p.png"} {
		t.Run(picture, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.auth.googleResp = &services.TokenPair{AccessToken: "a", RefreshToken: "r"}

			rec := f.do(http.MethodPost, "/auth/google", `{"id_token":"tok","picture":"`+picture+`"}`, "")

			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, decodeBody[ErrorResponse](t, rec).Message, "picture")
			assert.Equal(t, services.GoogleProfile{}, f.auth.googleHint)
		})
	}
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	f := newFixture(t, Options{})
	f.auth.logoutErr = errors.New("db down")

	rec := f.do(http.MethodPost, "/auth/logout", `{"refresh_token":"r1"}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"r1"}, f.auth.loggedOut)
}

func TestRequireUser(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing", "", http.StatusUnauthorized, "unauthorized"},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, "unauthorized"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "unauthorized"},
		{"garbage", "Bearer nope", http.StatusUnauthorized, "invalid_token"},
		{"expired", "Bearer old", http.StatusUnauthorized, "token_expired"},
		{"deleted user", "Bearer gone", http.StatusUnauthorized, "unauthorized"},
		{"lowercase scheme", "bearer good", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			f.h.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeBody[ErrorResponse](t, rec).Code)
			}
		})
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t, Options{})
	rec := f.do(http.MethodGet, "/users/me", "", "good")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[userResponse](t, rec)
	assert.Equal(t, "u-1", body.ID)
	assert.Equal(t, "alice", body.UserName)
	assert.Equal(t, "local", body.Provider)
	assert.True(t, body.IsVerified)
}

func TestUpdateMe(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(http.MethodPatch, "/users/me", `{"first_name":"Al"}`, "good")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.profile.lastUpdate.FirstName)
	assert.Equal(t, "Al", *f.profile.lastUpdate.FirstName)
	assert.Nil(t, f.profile.lastUpdate.UserName)

	f.profile.updateErr = common.ErrorConflict
	rec = f.do(http.MethodPatch, "/users/me", `{"username":"bobby"}`, "good")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateMe_UserNameTrimmedBeforeValidation(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(http.MethodPatch, "/users/me", `{"username":"  a "}`, "good")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Nil(t, f.profile.lastUpdate.UserName)

	rec = f.do(http.MethodPatch, "/users/me", `{"username":"  bobby "}`, "good")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.profile.lastUpdate.UserName)
	assert.Equal(t, "bobby", *f.profile.lastUpdate.UserName)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(http.MethodPut, "/users/me/password", `{"old_password":"x","password":"Secret123","confirm_password":"Secret123"}`, "good")
	assert.Equal(t, http.StatusOK, rec.Code)

	f.profile.passwordErr = common.ErrInvalidCredential
	rec = f.do(http.MethodPut, "/users/me/password", `{"old_password":"x","password":"Secret123","confirm_password":"Secret123"}`, "good")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartPicture(t *testing.T, field, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="me.png"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadPicture(t *testing.T) {
	f := newFixture(t, Options{})
	body, ct := multipartPicture(t, "profile_image", "image/png", []byte("png-bytes"))

	req := httptest.NewRequest(http.MethodPut, "/users/me/profile-pic", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []byte("png-bytes"), f.profile.pictureData)
	assert.Equal(t, "image/png", f.profile.pictureType)
	resp := decodeBody[userResponse](t, rec)
	require.NotNil(t, resp.ProfileImage)
	assert.Equal(t, "profile_pics/new.png", *resp.ProfileImage)
}

func TestUploadPicture_MissingField(t *testing.T) {
	f := newFixture(t, Options{})
	body, ct := multipartPicture(t, "avatar", "image/png", []byte("png-bytes"))

	req := httptest.NewRequest(http.MethodPut, "/users/me/profile-pic", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Nil(t, f.profile.pictureData)
}

func TestPicture(t *testing.T) {
	f := newFixture(t, Options{})

	f.profile.pic = &services.ProfilePicture{Data: []byte("img"), ContentType: "image/jpeg"}
	rec := f.do(http.MethodGet, "/users/me/profile-pic", "", "good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "img", rec.Body.String())

	f.profile.pic = &services.ProfilePicture{URL: "https://lh3.example/p.png"}
	rec = f.do(http.MethodGet, "/users/me/profile-pic", "", "good")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://lh3.example/p.png", rec.Header().Get("Location"))

	f.profile.picErr = common.ErrorNotFound
	rec = f.do(http.MethodGet, "/users/me/profile-pic", "", "good")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitWallpaper(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(http.MethodPost, "/wallpapers", `{"prompt":"neon city","size":"2:3 Portrait","style":"Cyberpunk"}`, "good")

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decodeBody[wallpaperResponse](t, rec)
	assert.Equal(t, "pending", body.Status)
	assert.Nil(t, body.ImageRef)
	assert.Equal(t, []services.JobRequest{{Prompt: "neon city", Size: "2:3 Portrait", Style: "Cyberpunk"}}, f.wallpapers.submitted)

	rec = f.do(http.MethodPost, "/wallpapers", `{"prompt":"`+strings.Repeat("x", 256)+`","size":"1:1"}`, "good")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	f.wallpapers.submitErr = common.ErrorValidation
	rec = f.do(http.MethodPost, "/wallpapers", `{"prompt":"x","size":"3:4"}`, "good")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListWallpapers_OwnerScoped(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(http.MethodGet, "/wallpapers", "", "good")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[wallpaperListResponse](t, rec)
	require.Len(t, body.Wallpapers, 1)
	assert.Equal(t, "w-1", body.Wallpapers[0].ID)
}

func TestListWallpapers_EmptyIsArray(t *testing.T) {
	f := newFixture(t, Options{})
	f.wallpapers.items = map[string]*models.Wallpaper{}

	rec := f.do(http.MethodGet, "/wallpapers", "", "good")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"wallpapers":[]}`, rec.Body.String())
}

func TestGetWallpaper(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(http.MethodGet, "/wallpapers/w-1", "", "good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decodeBody[wallpaperResponse](t, rec).Status)

	rec = f.do(http.MethodGet, "/wallpapers/w-2", "", "good")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteWallpaper(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(http.MethodDelete, "/wallpapers/w-1", "", "good")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[deleteWallpaperResponse](t, rec)
	assert.Equal(t, "w-1", body.DeletedWallpaper.ID)
	assert.Equal(t, []string{"w-1"}, f.wallpapers.deleted)

	rec = f.do(http.MethodDelete, "/wallpapers/w-2", "", "good")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecreateWallpaper(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(http.MethodPost, "/wallpapers/w-1/recreate", "", "good")

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody[wallpaperResponse](t, rec)
	assert.Equal(t, "w-again", body.ID)
	assert.Equal(t, "sunset", body.Prompt)
	assert.Equal(t, "pending", body.Status)
}

func TestDownloadWallpaper(t *testing.T) {
	f := newFixture(t, Options{})
	f.wallpapers.data = []byte("webp-bytes")

	rec := f.do(http.MethodGet, "/wallpapers/w-1/download", "", "good")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="w-1.webp"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "webp-bytes", rec.Body.String())

	f.wallpapers.dlErr = common.ErrImageNotReady
	rec = f.do(http.MethodGet, "/wallpapers/w-1/download", "", "good")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "image_not_ready", decodeBody[ErrorResponse](t, rec).Code)
}

func TestSuggestPrompt(t *testing.T) {
	f := newFixture(t, Options{})
	f.wallpapers.suggest = "a vivid neon skyline at dusk"

	rec := f.do(http.MethodPost, "/wallpapers/suggest", `{"prompt":"city"}`, "good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a vivid neon skyline at dusk", decodeBody[suggestResponse](t, rec).Prompt)

	f.wallpapers.sugErr = common.ErrUpstreamFailure
	rec = f.do(http.MethodPost, "/wallpapers/suggest", `{"prompt":"city"}`, "good")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAuthRateLimit(t *testing.T) {
	f := newFixture(t, Options{AuthRateLimitPerMinute: 2})
	f.auth.loginResp = &services.TokenPair{AccessToken: "a", RefreshToken: "r"}

	for i := 0; i < 2; i++ {
		rec := f.do(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"x"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := f.do(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"x"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// other routes are not limited by the auth limiter
	rec = f.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, Options{CORSOrigins: []string{"https://app.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
