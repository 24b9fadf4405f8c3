package api_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	req := types.RegisterRequest{
		Email:     "cook@example.com",
		Username:  "cook",
		FirstName: "Home",
		LastName:  "Cook",
		Password:  "s3cret-pass",
	}
	w := env.do(http.MethodPost, "/api/users", req, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "cook", body["username"])
	assert.NotEmpty(t, body["id"])
	assert.NotContains(t, body, "password")

	w = env.do(http.MethodPost, "/api/users", req, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errs := decode[map[string][]string](t, w)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "username")
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name      string
		body      map[string]string
		wantField string
	}{
		{
			name:      "missing first name",
			body:      map[string]string{"email": "a@example.com", "username": "a", "last_name": "A", "password": "s3cret-pass"},
			wantField: "first_name",
		},
		{
			name:      "invalid email",
			body:      map[string]string{"email": "nope", "username": "a", "first_name": "A", "last_name": "A", "password": "s3cret-pass"},
			wantField: "email",
		},
		{
			name:      "invalid username",
			body:      map[string]string{"email": "a@example.com", "username": "bad name!", "first_name": "A", "last_name": "A", "password": "s3cret-pass"},
			wantField: "username",
		},
		{
			name:      "numeric password",
			body:      map[string]string{"email": "a@example.com", "username": "a", "first_name": "A", "last_name": "A", "password": "12345678"},
			wantField: "password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/users", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode[map[string][]string](t, w), tt.wantField)
		})
	}
}

func TestUsersPagination(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 7; i++ {
		testhelpers.CreateUser(t, env.db, fmt.Sprintf("user%d", i))
	}

	w := env.do(http.MethodGet, "/api/users?limit=3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[types.Page[types.UserResponse]](t, w)
	assert.Equal(t, int64(7), page.Count)
	assert.Len(t, page.Results, 3)
	assert.Equal(t, "user0", page.Results[0].Username)
	require.NotNil(t, page.Next)
	assert.Equal(t, "http://example.com/api/users?limit=3&page=2", *page.Next)
	assert.Nil(t, page.Previous)

	w = env.do(http.MethodGet, "/api/users?limit=3&page=3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[types.Page[types.UserResponse]](t, w)
	assert.Len(t, page.Results, 1)
	assert.Nil(t, page.Next)
	require.NotNil(t, page.Previous)
	assert.Equal(t, "http://example.com/api/users?limit=3&page=2", *page.Previous)

	w = env.do(http.MethodGet, "/api/users", nil, "")
	page = decode[types.Page[types.UserResponse]](t, w)
	assert.Len(t, page.Results, 5)

	w = env.do(http.MethodGet, "/api/users?limit=3&page=4", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/users?page=abc", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserProfile(t *testing.T) {
	env := newTestEnv(t)
	alice := testhelpers.CreateUser(t, env.db, "alice")
	bob := testhelpers.CreateUser(t, env.db, "bob")

	w := env.do(http.MethodGet, "/api/users/"+bob.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[types.UserResponse](t, w).IsSubscribed)

	w = env.do(http.MethodPost, "/api/users/"+bob.ID.String()+"/subscribe", nil, env.token(alice))
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodGet, "/api/users/"+bob.ID.String(), nil, env.token(alice))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[types.UserResponse](t, w).IsSubscribed)

	w = env.do(http.MethodGet, "/api/users/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/users/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetPassword(t *testing.T) {
	env := newTestEnv(t)
	chef := testhelpers.CreateUser(t, env.db, "chef")
	token := env.token(chef)

	w := env.do(http.MethodPost, "/api/users/set_password", types.SetPasswordRequest{
		NewPassword:     "brand-new-pass",
		CurrentPassword: "wrong-password",
	}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string][]string](t, w), "current_password")

	w = env.do(http.MethodPost, "/api/users/set_password", types.SetPasswordRequest{
		NewPassword:     "brand-new-pass",
		CurrentPassword: testhelpers.TestPassword,
	}, token)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodPost, "/api/auth/token/login", types.LoginRequest{
		Email:    "chef@example.com",
		Password: "brand-new-pass",
	}, "")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSubscriptions(t *testing.T) {
	env := newTestEnv(t)
	alice := testhelpers.CreateUser(t, env.db, "alice")
	bob := testhelpers.CreateUser(t, env.db, "bob")
	testhelpers.CreateRecipe(t, env.db, bob, "Pie")
	testhelpers.CreateRecipe(t, env.db, bob, "Soup")
	token := env.token(alice)
	subscribe := "/api/users/" + bob.ID.String() + "/subscribe"

	w := env.do(http.MethodPost, subscribe+"?recipes_limit=1", nil, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	author := decode[types.SubscriptionResponse](t, w)
	assert.True(t, author.IsSubscribed)
	assert.Equal(t, int64(2), author.RecipesCount)
	assert.Len(t, author.Recipes, 1)

	w = env.do(http.MethodPost, subscribe, nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w), "errors")

	w = env.do(http.MethodPost, "/api/users/"+alice.ID.String()+"/subscribe", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/users/subscriptions", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[types.Page[types.SubscriptionResponse]](t, w)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "bob", page.Results[0].Username)
	assert.Len(t, page.Results[0].Recipes, 2)

	w = env.do(http.MethodGet, "/api/users/subscriptions?recipes_limit=abc", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodDelete, subscribe, nil, token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(http.MethodDelete, subscribe, nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/users/00000000-0000-0000-0000-000000000001/subscribe", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/users/subscriptions", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
