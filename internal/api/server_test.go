package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shift-code-redeemer/internal/model"
	"shift-code-redeemer/internal/repository"
)

type fakeCodes struct {
	codes []*model.Code
}

func (f *fakeCodes) List(_ context.Context) ([]*model.Code, error) {
	return f.codes, nil
}

func (f *fakeCodes) GetByValue(_ context.Context, code string) ([]*model.Code, error) {
	var out []*model.Code
	for _, c := range f.codes {
		if c.Code == code {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCodes) Delete(_ context.Context, id int64) error {
	for i, c := range f.codes {
		if c.ID == id {
			f.codes = append(f.codes[:i], f.codes[i+1:]...)
			return nil
		}
	}
	return repository.ErrCodeNotFound
}

type fakeUsers struct {
	users  []*model.User
	nextID int64
}

func (f *fakeUsers) Create(_ context.Context, email string, encrypted []byte) (*model.User, error) {
	f.nextID++
	u := &model.User{
		ID:             f.nextID,
		PortalEmail:    email,
		PortalPassword: encrypted,
		CreatedAt:      time.Now(),
	}
	f.users = append(f.users, u)
	return u, nil
}

func (f *fakeUsers) List(_ context.Context) ([]*model.User, error) {
	return f.users, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUsers) Delete(_ context.Context, id int64) error {
	for i, u := range f.users {
		if u.ID == id {
			f.users = append(f.users[:i], f.users[i+1:]...)
			return nil
		}
	}
	return repository.ErrUserNotFound
}

func (f *fakeUsers) ClearNotifyMustLaunchGame(_ context.Context, id int64) error {
	for _, u := range f.users {
		if u.ID == id {
			u.NotifyMustLaunchGame = false
			return nil
		}
	}
	return repository.ErrUserNotFound
}

type fakePrefs struct {
	prefs []*model.GamePreference
}

func (f *fakePrefs) Upsert(_ context.Context, userID int64, game, platform string) (bool, error) {
	for _, p := range f.prefs {
		if p.UserID == userID && p.Game == game && p.Platform == platform {
			return false, nil
		}
	}
	f.prefs = append(f.prefs, &model.GamePreference{UserID: userID, Game: game, Platform: platform})
	return true, nil
}

func (f *fakePrefs) ListByUser(_ context.Context, userID int64) ([]*model.GamePreference, error) {
	var out []*model.GamePreference
	for _, p := range f.prefs {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePrefs) Delete(_ context.Context, userID int64, game, platform string) error {
	for i, p := range f.prefs {
		if p.UserID == userID && p.Game == game && p.Platform == platform {
			f.prefs = append(f.prefs[:i], f.prefs[i+1:]...)
			return nil
		}
	}
	return repository.ErrPreferenceNotFound
}

type fakeAttempts struct {
	attempts []*model.CodeAttempt
}

func (f *fakeAttempts) ListByUser(_ context.Context, userID int64) ([]*model.CodeAttempt, error) {
	var out []*model.CodeAttempt
	for _, a := range f.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type reverseEncrypter struct{}

func (reverseEncrypter) Encrypt(plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		out[len(out)-1-i] = b
	}
	return out, nil
}

type fixture struct {
	server   *Server
	codes    *fakeCodes
	users    *fakeUsers
	prefs    *fakePrefs
	attempts *fakeAttempts
}

func newFixture() *fixture {
	f := &fixture{
		codes:    &fakeCodes{},
		users:    &fakeUsers{},
		prefs:    &fakePrefs{},
		attempts: &fakeAttempts{},
	}
	f.server = NewServer(f.codes, f.users, f.prefs, f.attempts, reverseEncrypter{})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListAndGetCodes(t *testing.T) {
	f := newFixture()
	f.codes.codes = []*model.Code{
		{ID: 1, Game: "Borderlands 3", Code: "3BRTJ-5K659-K5355-BTB3T-633F3"},
		{ID: 2, Game: "Wonderlands", Code: "3BRTJ-5K659-K5355-BTB3T-633F3"},
		{ID: 3, Game: "Borderlands 2", Code: "C35TB-WS6ST-TXBRK-TTTJT-JJH6H"},
	}

	rec := f.do(t, http.MethodGet, "/api/codes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []model.Code
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 3)

	// The same code string can exist once per game.
	rec = f.do(t, http.MethodGet, "/api/codes/3BRTJ-5K659-K5355-BTB3T-633F3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var matched []model.Code
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matched))
	assert.Len(t, matched, 2)

	rec = f.do(t, http.MethodGet, "/api/codes/ZZZZZ-ZZZZZ-ZZZZZ-ZZZZZ-ZZZZZ", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteCode(t *testing.T) {
	f := newFixture()
	f.codes.codes = []*model.Code{{ID: 1, Code: "3BRTJ-5K659-K5355-BTB3T-633F3"}}

	rec := f.do(t, http.MethodDelete, "/api/codes/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/codes/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/codes/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUserEncryptsPassword(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/users", h{"email": "vault@hunter.test", "password": "p4ss"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "vault@hunter.test", resp.PortalEmail)

	// Stored form is the encrypter's output, and the response body never
	// carries password material.
	require.Len(t, f.users.users, 1)
	assert.Equal(t, []byte("ss4p"), f.users.users[0].PortalPassword)
	assert.NotContains(t, rec.Body.String(), "p4ss")
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/users", h{"email": "not-an-email", "password": "p4ss"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/users", h{"email": "vault@hunter.test"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserLifecycle(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/users", h{"email": "vault@hunter.test", "password": "p4ss"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/users/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/users/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/users/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResumeUserClearsFlag(t *testing.T) {
	f := newFixture()
	f.users.users = []*model.User{{ID: 1, PortalEmail: "vault@hunter.test", NotifyMustLaunchGame: true}}
	f.users.nextID = 1

	rec := f.do(t, http.MethodPost, "/api/users/1/resume", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, f.users.users[0].NotifyMustLaunchGame)
}

func TestPreferenceLifecycle(t *testing.T) {
	f := newFixture()
	pref := h{"game": "Borderlands 3", "platform": "Steam"}

	rec := f.do(t, http.MethodPost, "/api/users/1/preferences", pref)
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate triple is a no-op.
	rec = f.do(t, http.MethodPost, "/api/users/1/preferences", pref)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/users/1/preferences", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var prefs []model.GamePreference
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefs))
	assert.Len(t, prefs, 1)

	rec = f.do(t, http.MethodDelete, "/api/users/1/preferences", pref)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/users/1/preferences", pref)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAttempts(t *testing.T) {
	f := newFixture()
	f.attempts.attempts = []*model.CodeAttempt{
		{ID: 1, UserID: 1, CodeID: 10, Game: "Borderlands 3", Platform: "Steam", Success: true},
		{ID: 2, UserID: 2, CodeID: 10, Game: "Borderlands 3", Platform: "Xbox", Success: false},
	}

	rec := f.do(t, http.MethodGet, "/api/users/1/attempts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var attempts []model.CodeAttempt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &attempts))
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Success)
}

type h = map[string]any
