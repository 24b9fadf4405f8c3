package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

func TestLoginAndLogout(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.CreateUser(t, env.db, "chef")

	w := env.do(http.MethodPost, "/api/auth/token/login", types.LoginRequest{
		Email:    "CHEF@example.com",
		Password: testhelpers.TestPassword,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token := decode[types.TokenResponse](t, w).AuthToken
	require.NotEmpty(t, token)

	w = env.do(http.MethodGet, "/api/users/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "chef", decode[types.UserResponse](t, w).Username)

	w = env.do(http.MethodPost, "/api/auth/token/logout", nil, token)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/api/users/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.CreateUser(t, env.db, "chef")

	tests := []struct {
		name      string
		body      interface{}
		wantField string
	}{
		{"wrong password", types.LoginRequest{Email: "chef@example.com", Password: "nope-nope"}, "non_field_errors"},
		{"unknown email", types.LoginRequest{Email: "ghost@example.com", Password: testhelpers.TestPassword}, "non_field_errors"},
		{"missing password", map[string]string{"email": "chef@example.com"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/auth/token/login", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode[map[string]interface{}](t, w), tt.wantField)
		})
	}
}

func TestLogoutRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/token/logout", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/users/me", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
