package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hubmedia/internal/config"
	"hubmedia/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testJWTSecret = "test-secret-at-least-32-characters-long"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Stream{}, &models.Message{}))
	require.NoError(t, db.Exec("CREATE UNIQUE INDEX uniq_streams_owner_live ON streams (owner_id) WHERE is_live").Error)
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		Env:                "test",
		JWTSecret:          testJWTSecret,
		ViewerTickInterval: time.Second,
		MessageMaxLength:   500,
		StatusCacheTTL:     0,
	}
}

// setupTestServer builds routes without the global middleware stack.
func setupTestServer(t *testing.T, mutate ...func(*config.Config)) (*Server, *fiber.App) {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	s, err := NewServerWithDeps(cfg, setupTestDB(t), nil)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	s.SetupRoutes(app)
	return s, app
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any, token string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

type startResponse struct {
	StreamID uint          `json:"streamId"`
	Stream   models.Stream `json:"stream"`
}

func startStream(t *testing.T, app *fiber.App, owner string, moderated bool) uint {
	t.Helper()
	status, raw := doRequest(t, app, http.MethodPost, "/api/streams", fiber.Map{
		"ownerId":           owner,
		"title":             "Test Stream",
		"moderationEnabled": moderated,
	}, "")
	require.Equal(t, http.StatusCreated, status, string(raw))
	return decode[startResponse](t, raw).StreamID
}
