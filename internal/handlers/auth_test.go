package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelchat/kestrel/internal/database"
	"github.com/kestrelchat/kestrel/internal/handlers"
	"github.com/kestrelchat/kestrel/internal/token"
)

func setup(t *testing.T) (*handlers.AuthHandler, *token.Authority, *database.MemoryUserStore) {
	t.Helper()
	authority, err := token.New()
	require.NoError(t, err)
	store := database.NewMemoryUserStore()
	return handlers.NewAuthHandler(store, authority), authority, store
}

func post(t *testing.T, handler echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func TestCreateAccount(t *testing.T) {
	h, authority, _ := setup(t)

	rec := post(t, h.CreateAccount, `{"username":"alice","password":"correcthorse"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// The body is a token that verifies as the new user.
	username, ok := authority.Verify(rec.Body.String())
	assert.True(t, ok)
	assert.Equal(t, "alice", username)
}

func TestCreateAccount_DuplicateUsername(t *testing.T) {
	h, _, _ := setup(t)

	rec := post(t, h.CreateAccount, `{"username":"alice","password":"correcthorse"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = post(t, h.CreateAccount, `{"username":"alice","password":"otherpassword"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Username Taken", rec.Body.String())
}

func TestCreateAccount_Validation(t *testing.T) {
	h, _, _ := setup(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `this is not json`},
		{"missing password", `{"username":"alice"}`},
		{"short password", `{"username":"alice","password":"short"}`},
		{"short username", `{"username":"al","password":"correcthorse"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h.CreateAccount, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestLogin(t *testing.T) {
	h, authority, _ := setup(t)

	rec := post(t, h.CreateAccount, `{"username":"alice","password":"correcthorse"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = post(t, h.Login, `{"username":"alice","password":"correcthorse"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	username, ok := authority.Verify(rec.Body.String())
	assert.True(t, ok)
	assert.Equal(t, "alice", username)
}

func TestLogin_UnknownUsername(t *testing.T) {
	h, _, _ := setup(t)

	rec := post(t, h.Login, `{"username":"nobody","password":"whatever123"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Invalid Username", rec.Body.String())
}

func TestLogin_WrongPassword(t *testing.T) {
	h, _, _ := setup(t)

	rec := post(t, h.CreateAccount, `{"username":"alice","password":"correcthorse"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = post(t, h.Login, `{"username":"alice","password":"wrongpassword"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Incorrect Password", rec.Body.String())
}
