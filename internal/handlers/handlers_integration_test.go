package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"raidentrack/internal/handlers"
	"raidentrack/internal/middleware"
	"raidentrack/internal/models"
	"raidentrack/internal/repositories"
	"raidentrack/internal/services"
	"raidentrack/pkg/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeEngine struct{ answer string }

func (e fakeEngine) Generate(context.Context, string) (string, error) { return e.answer, nil }

type testApp struct {
	app     *fiber.App
	auth    *services.AuthService
	users   repositories.UserRepository
	imports repositories.ImportRecordRepository
	tokens  *services.TokenService
	dir     string
	logFile string
}

// setupApp sets up a Fiber app for testing with in-memory SQLite and all handlers/services.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Configure Viper for testing
	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.AutomaticEnv()
	jwtSecret := viper.GetString("JWT_SECRET")

	// One in-memory database per test
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repositories.OpenDatabase("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, repositories.AutoMigrate(db))

	dir := t.TempDir()
	images, err := storage.NewLocalStore(dir)
	require.NoError(t, err)

	userRepo := repositories.NewGORMUserRepository(db)
	importRepo := repositories.NewGORMImportRecordRepository(db)

	hasher := services.NewBcryptHasher(bcrypt.MinCost)
	tokens := services.NewTokenService(jwtSecret, time.Minute, time.Hour)
	guard := services.NewGuard(tokens, userRepo)
	authService := services.NewAuthService(userRepo, tokens, hasher)

	logFile := filepath.Join(dir, "log.txt")

	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	auth := middleware.AuthRequired(guard)

	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1)
	handlers.NewUserHandler(services.NewAccountService(userRepo, importRepo, hasher, images)).RegisterRoutes(apiV1, auth)
	handlers.NewPredictionHandler(services.NewPredictionService(importRepo, fakeEngine{answer: "1. Keep going"}, nil)).RegisterRoutes(apiV1, auth)
	handlers.NewAdminHandler(services.NewAdminService(userRepo, hasher, nil)).RegisterRoutes(apiV1, middleware.AdminRequired(guard))
	handlers.NewLogHandler(logFile).RegisterRoutes(apiV1, auth)

	return &testApp{
		app:     app,
		auth:    authService,
		users:   userRepo,
		imports: importRepo,
		tokens:  tokens,
		dir:     dir,
		logFile: logFile,
	}
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func (a *testApp) do(t *testing.T, req *http.Request, token string, out any) int {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (a *testApp) doJSON(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	jsonBody, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	return a.do(t, req, token, out)
}

func (a *testApp) upload(t *testing.T, path, token, field, filename, contentType string, data []byte, out any) int {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return a.do(t, req, token, out)
}

func (a *testApp) signUp(t *testing.T, username string) map[string]any {
	t.Helper()
	var user map[string]any
	status := a.doJSON(t, http.MethodPost, "/api/v1/auth/sign-up", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	}, &user)
	require.Equal(t, http.StatusCreated, status)
	return user
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	UserID       int64  `json:"userid"`
}

func (a *testApp) login(t *testing.T, username, password string) loginResponse {
	t.Helper()
	var res loginResponse
	status := a.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &res)
	require.Equal(t, http.StatusOK, status)
	return res
}

func TestAuthSignUpAndLogin(t *testing.T) {
	a := setupApp(t)

	user := a.signUp(t, "alice")
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, false, user["is_sudo"])
	assert.Equal(t, models.DefaultAvatarURL, user["profile_pic"])
	assert.NotContains(t, user, "PasswordHash")
	assert.NotContains(t, user, "password")

	// Duplicate username
	var errResp map[string]string
	status := a.doJSON(t, http.MethodPost, "/api/v1/auth/sign-up", "", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "password123",
	}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Username unavailable", errResp["message"])
	assert.Equal(t, middleware.CodeConflict, errResp["error"])

	res := a.login(t, "alice", "password123")
	assert.Equal(t, "bearer", res.TokenType)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.EqualValues(t, user["userid"], res.UserID)

	claims, err := a.tokens.Decode(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.False(t, claims.IsAdmin)

	status = a.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrong",
	}, &errResp)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", errResp["message"])
}

func TestAuthSignUpValidation(t *testing.T) {
	a := setupApp(t)

	var resp map[string]any
	status := a.doJSON(t, http.MethodPost, "/api/v1/auth/sign-up", "", map[string]string{
		"username": "al",
		"email":    "not-an-email",
		"password": "123",
	}, &resp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", resp["message"])
	assert.Len(t, resp["errors"], 3)
}

func TestAuthSignUpMultibytePasswordTooLong(t *testing.T) {
	a := setupApp(t)

	var resp map[string]any
	status := a.doJSON(t, http.MethodPost, "/api/v1/auth/sign-up", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": strings.Repeat("é", 40),
	}, &resp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", resp["error"])
	assert.Equal(t, "Password must be at most 72 bytes.", resp["message"])
}

func TestAuthLoginWithForm(t *testing.T) {
	a := setupApp(t)
	a.signUp(t, "alice")

	form := url.Values{"username": {"alice"}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var res loginResponse
	assert.Equal(t, http.StatusOK, a.do(t, req, "", &res))
	assert.NotEmpty(t, res.AccessToken)
}

func TestAuthRefresh(t *testing.T) {
	a := setupApp(t)
	a.signUp(t, "alice")
	res := a.login(t, "alice", "password123")

	var refreshed map[string]string
	status := a.doJSON(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": res.RefreshToken}, &refreshed)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, refreshed["access_token"])
	assert.Equal(t, "bearer", refreshed["token_type"])

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh?token="+res.RefreshToken, nil)
	assert.Equal(t, http.StatusOK, a.do(t, req, "", &refreshed))

	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh?token=garbage", nil)
	var errResp map[string]string
	assert.Equal(t, http.StatusUnauthorized, a.do(t, req, "", &errResp))
	assert.Equal(t, "Invalid refresh token", errResp["message"])

	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	assert.Equal(t, http.StatusBadRequest, a.do(t, req, "", nil))
}

func TestProfileAndAccountChanges(t *testing.T) {
	a := setupApp(t)
	a.signUp(t, "alice")
	a.signUp(t, "bob")
	token := a.login(t, "alice", "password123").AccessToken

	var profile map[string]any
	assert.Equal(t, http.StatusOK, a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil), token, &profile))
	assert.Equal(t, "alice", profile["username"])
	assert.Equal(t, "Member", profile["role"])
	assert.Contains(t, profile, "joined_date")

	var protected map[string]any
	assert.Equal(t, http.StatusOK, a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/protected", nil), token, &protected))
	assert.Equal(t, "Welcome, alice!", protected["message"])

	// Rename to a taken name leaves the directory unchanged.
	var errResp map[string]string
	status := a.doJSON(t, http.MethodPut, "/api/v1/users/me/username", token, map[string]string{"new_username": "bob"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Username unavailable", errResp["message"])
	_, err := a.users.FindByUsername(context.Background(), "alice")
	assert.NoError(t, err)

	// Wrong old password leaves the hash unchanged.
	before, err := a.users.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	status = a.doJSON(t, http.MethodPost, "/api/v1/users/me/password", token, map[string]string{
		"old_password": "nope",
		"new_password": "brandnew",
	}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Old password is incorrect.", errResp["message"])
	after, err := a.users.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)

	var msg map[string]string
	status = a.doJSON(t, http.MethodPost, "/api/v1/users/me/password", token, map[string]string{
		"old_password": "password123",
		"new_password": "brandnew",
	}, &msg)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Password changed successfully.", msg["message"])
	a.login(t, "alice", "brandnew")

	var renamed map[string]any
	status = a.doJSON(t, http.MethodPut, "/api/v1/users/me/username", token, map[string]string{"new_username": "alicia"}, &renamed)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alicia", renamed["username"])
}

func TestAvatarUpload(t *testing.T) {
	a := setupApp(t)
	user := a.signUp(t, "alice")
	token := a.login(t, "alice", "password123").AccessToken

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 400, 300))))

	var resp map[string]string
	status := a.upload(t, "/api/v1/users/me/avatar", token, "profile_pic", "me.png", "image/png", buf.Bytes(), &resp)
	require.Equal(t, http.StatusOK, status)
	want := fmt.Sprintf("/static/profile_pic_%d.jpg", int64(user["userid"].(float64)))
	assert.Equal(t, want, resp["profile_pic"])
	assert.FileExists(t, filepath.Join(a.dir, filepath.FromSlash(want)))

	var errResp map[string]string
	status = a.upload(t, "/api/v1/users/me/avatar", token, "profile_pic", "notes.txt", "text/plain", []byte("hello"), &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid file type. Only image files are allowed.", errResp["message"])

	status = a.upload(t, "/api/v1/users/me/avatar", token, "profile_pic", "fake.png", "image/png", []byte("hello"), &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Unable to open image.", errResp["message"])
}

const progressCSV = "project_id,progress_percent,materials_used,workforce,days_elapsed,days_remaining\n" +
	"1,10,100,5,10,90\n" +
	"1,25,180,6,30,70\n"

func TestPredictionAndRecentImports(t *testing.T) {
	a := setupApp(t)
	a.signUp(t, "alice")
	token := a.login(t, "alice", "password123").AccessToken

	var res struct {
		Prediction string `json:"prediction"`
		ChartData  []struct {
			DaysElapsed     *float64 `json:"days_elapsed"`
			PlannedProgress *float64 `json:"planned_progress"`
			ActualProgress  *float64 `json:"actual_progress"`
		} `json:"chart_data"`
	}
	status := a.upload(t, "/api/v1/predictions", token, "file", "progress.csv", "text/csv", []byte(progressCSV), &res)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1. Keep going", res.Prediction)
	require.Len(t, res.ChartData, 2)
	assert.InDelta(t, 10.0, *res.ChartData[0].PlannedProgress, 1e-9)
	assert.InDelta(t, 25.0, *res.ChartData[1].ActualProgress, 1e-9)

	var bad map[string]string
	status = a.upload(t, "/api/v1/predictions", token, "file", "bad.csv", "text/csv", []byte("a,b\n1,2\n"), &bad)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing required columns: days_elapsed and/or days_remaining.", bad["message"])

	var imports []map[string]any
	assert.Equal(t, http.StatusOK, a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/users/me/imports", nil), token, &imports))
	require.Len(t, imports, 1)
	assert.Equal(t, "1. Keep going", imports[0]["prediction"])
	assert.Len(t, imports[0]["chart_data"], 2)
}

func TestAdminAccessIsSnapshotAtLogin(t *testing.T) {
	a := setupApp(t)
	ctx := context.Background()

	_, err := a.auth.EnsureAdmin(ctx, "root", "root@example.com", "rootpass")
	require.NoError(t, err)
	alice := a.signUp(t, "alice")
	aliceToken := a.login(t, "alice", "password123").AccessToken
	rootToken := a.login(t, "root", "rootpass").AccessToken

	var errResp map[string]string
	status := a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil), aliceToken, &errResp)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Access denied: Admins only", errResp["message"])

	var users []map[string]any
	assert.Equal(t, http.StatusOK, a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil), rootToken, &users))
	assert.Len(t, users, 2)

	path := fmt.Sprintf("/api/v1/admin/users/%d", int64(alice["userid"].(float64)))
	var updated map[string]any
	status = a.doJSON(t, http.MethodPut, path, rootToken, map[string]any{"is_admin": true}, &updated)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, updated["is_sudo"])

	// The token issued before the promotion still says member.
	status = a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil), aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	freshToken := a.login(t, "alice", "password123").AccessToken
	status = a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil), freshToken, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAdminUpdateAndDelete(t *testing.T) {
	a := setupApp(t)
	ctx := context.Background()

	_, err := a.auth.EnsureAdmin(ctx, "root", "root@example.com", "rootpass")
	require.NoError(t, err)
	rootToken := a.login(t, "root", "rootpass").AccessToken
	alice := a.signUp(t, "alice")
	aliceID := int64(alice["userid"].(float64))
	aliceToken := a.login(t, "alice", "password123").AccessToken

	status := a.upload(t, "/api/v1/predictions", aliceToken, "file", "progress.csv", "text/csv", []byte(progressCSV), nil)
	require.Equal(t, http.StatusOK, status)

	path := fmt.Sprintf("/api/v1/admin/users/%d", aliceID)
	status = a.doJSON(t, http.MethodPut, path, rootToken, map[string]any{"new_password": "reset123"}, nil)
	assert.Equal(t, http.StatusOK, status)
	a.login(t, "alice", "reset123")

	status = a.doJSON(t, http.MethodPut, "/api/v1/admin/users/1", rootToken, map[string]any{"is_admin": true}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = a.doJSON(t, http.MethodPut, "/api/v1/admin/users/abc", rootToken, map[string]any{"is_admin": true}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var deleted map[string]any
	status = a.do(t, httptest.NewRequest(http.MethodDelete, path, nil), rootToken, &deleted)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", deleted["username"])

	records, err := a.imports.ListByUser(ctx, aliceID)
	require.NoError(t, err)
	assert.Empty(t, records)

	// The deleted user's token no longer resolves.
	status = a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil), aliceToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = a.do(t, httptest.NewRequest(http.MethodDelete, path, nil), rootToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdminWelcomeAndPreview(t *testing.T) {
	a := setupApp(t)
	_, err := a.auth.EnsureAdmin(context.Background(), "root", "root@example.com", "rootpass")
	require.NoError(t, err)
	rootToken := a.login(t, "root", "rootpass").AccessToken

	var welcome map[string]string
	assert.Equal(t, http.StatusOK, a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin", nil), rootToken, &welcome))
	assert.Equal(t, "Welcome, root! to admin access.", welcome["message"])

	var preview struct {
		Message string           `json:"message"`
		Rows    int              `json:"rows"`
		Columns []string         `json:"columns"`
		Preview []map[string]any `json:"preview"`
	}
	status := a.upload(t, "/api/v1/admin/imports/preview", rootToken, "file", "progress.csv", "text/csv", []byte(progressCSV), &preview)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "CSV imported successfully", preview.Message)
	assert.Equal(t, 2, preview.Rows)
	assert.Len(t, preview.Columns, 6)
	assert.Len(t, preview.Preview, 2)

	status = a.upload(t, "/api/v1/admin/imports/preview", rootToken, "file", "bad.csv", "text/csv", []byte("a,b\n1,2\n"), nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLogs(t *testing.T) {
	a := setupApp(t)
	a.signUp(t, "alice")
	token := a.login(t, "alice", "password123").AccessToken

	var errResp map[string]string
	assert.Equal(t, http.StatusNotFound, a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil), token, &errResp))
	assert.Equal(t, "Log file not found", errResp["message"])

	require.NoError(t, os.WriteFile(a.logFile, []byte("first\n\n  second  \nthird\n"), 0o644))
	var lines []string
	assert.Equal(t, http.StatusOK, a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil), token, &lines))
	assert.Equal(t, []string{"third", "second", "first"}, lines)

	assert.Equal(t, http.StatusUnauthorized, a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil), "", nil))
}
