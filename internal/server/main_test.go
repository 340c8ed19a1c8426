package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"murmur/internal/config"
	"murmur/internal/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "server-test-secret-0123456789abcdef"

type testEnv struct {
	t   *testing.T
	srv *Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:             testSecret,
		JWTIssuer:             "murmur-api",
		JWTAudience:           "murmur-client",
		Env:                   "test",
		AccessTokenTTLMinutes: 5,
		RefreshTokenTTLHours:  24,
		PostsPageSize:         3,
		DBMaxOpenConns:        1,
	}
}

// newTestEnv builds the full app on a private in-memory SQLite database and a
// miniredis instance.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := testConfig()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:srv_%s?mode=memory&cache=shared&_foreign_keys=on", name)
	db, err := database.ConnectWithDialector(sqlite.Open(dsn), cfg)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = rdb.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &testEnv{t: t, srv: srv, app: srv.NewApp(), db: db, mr: mr}
}

// do sends a JSON request and decodes a JSON object response, if any.
func (e *testEnv) do(method, path string, body any, token string) (int, map[string]any) {
	e.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
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
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(e.t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

type account struct {
	ID      uint
	Access  string
	Refresh string
}

func (e *testEnv) register(email, username string) account {
	e.t.Helper()
	status, body := e.do(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    email,
		"username": username,
		"password": "pw123456",
	}, "")
	require.Equal(e.t, http.StatusCreated, status, body)
	user := body["user"].(map[string]any)
	return account{
		ID:      uint(user["id"].(float64)),
		Access:  body["token"].(string),
		Refresh: body["refresh"].(string),
	}
}

func (e *testEnv) createPost(token, title string) uint {
	e.t.Helper()
	status, body := e.do(http.MethodPost, "/api/post", map[string]string{
		"title":   title,
		"content": "content of " + title,
	}, token)
	require.Equal(e.t, http.StatusCreated, status, body)
	return uint(body["id"].(float64))
}

func errorCode(body map[string]any) string {
	code, _ := body["code"].(string)
	return code
}

// cursorPath turns an absolute page URL into a request path.
func cursorPath(t *testing.T, link any) string {
	t.Helper()
	s, ok := link.(string)
	require.True(t, ok, "expected a page link, got %v", link)
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u.RequestURI()
}
