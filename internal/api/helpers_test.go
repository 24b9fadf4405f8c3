package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/api"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/storage"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
)

const mediaURL = "http://testserver/media/"

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	auth   *service.AuthService
	media  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testhelpers.SetupSQLite(t)
	media := t.TempDir()
	store := storage.NewLocalStore(media, mediaURL)
	auth := service.NewAuthService(db, "test-secret", time.Hour, nil)

	router := gin.New()
	api.RegisterRoutes(router, api.Dependencies{
		DB:         db,
		Auth:       auth,
		Users:      service.NewUserService(db, store),
		Recipes:    service.NewRecipeService(db, store, service.ImageLimits{MaxWidth: 1280}),
		Catalog:    service.NewCatalogService(db),
		Pagination: api.Pagination{DefaultSize: 5, MaxSize: 100},
	})

	return &testEnv{t: t, db: db, router: router, auth: auth, media: media}
}

func (e *testEnv) token(user *models.User) string {
	e.t.Helper()
	token, err := e.auth.GenerateToken(user)
	require.NoError(e.t, err)
	return token
}

// do sends body as JSON unless it is already an io.Reader.
func (e *testEnv) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	require.Equal(t, "healthy", body["status"])
}
