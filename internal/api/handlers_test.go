package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sirosfoundation/relay-panel/internal/domain"
	"github.com/sirosfoundation/relay-panel/internal/service"
	"github.com/sirosfoundation/relay-panel/internal/storage/memory"
	"github.com/sirosfoundation/relay-panel/pkg/config"
	"github.com/sirosfoundation/relay-panel/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// chatSender remembers the last message per chat
type chatSender struct {
	mu   sync.Mutex
	last map[string]string
	err  error
}

func (s *chatSender) Send(ctx context.Context, chatID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.last == nil {
		s.last = make(map[string]string)
	}
	s.last[chatID] = text
	return nil
}

func (s *chatSender) code(chatID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.last[chatID]
	return text[strings.LastIndex(text, " ")+1:]
}

type testEnv struct {
	router   *gin.Engine
	store    *memory.Store
	sender   *chatSender
	services *service.Services
	cfg      *config.Config
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Session.Secret = "test-secret"
	cfg.Telegram.AdminChatID = "admin-chat"
	return cfg
}

func setupTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	sender := &chatSender{}
	services := service.NewServices(store, sender, cfg, logger)
	handlers := NewHandlers(services, store, cfg, logger)

	router := gin.New()
	router.GET("/status", handlers.Status)
	router.GET("/health", handlers.Health)
	router.POST("/login", handlers.Login)
	router.POST("/verify-otp", handlers.VerifyOTP)

	auth := middleware.AuthMiddleware(services.Session, cfg.Session.CookieName, logger)
	router.POST("/logout", auth, handlers.Logout)
	router.GET("/me", auth, handlers.Me)
	router.POST("/admin/notify", auth, middleware.RequireAdmin(logger), handlers.AdminNotify)
	router.GET("/admin/login-events", auth, middleware.RequireAdmin(logger), handlers.LoginEvents)

	return &testEnv{router: router, store: store, sender: sender, services: services, cfg: cfg}
}

func (e *testEnv) addUser(t *testing.T, user *domain.User, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	user.PasswordHash = string(hash)
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if err := e.store.Users().Create(context.Background(), user); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	return body
}

// login runs both phases and returns the token
func (e *testEnv) login(t *testing.T, username, password, chatID string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/login", gin.H{"username": username, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	w = e.do(t, http.MethodPost, "/verify-otp", gin.H{"username": username, "otp": e.sender.code(chatID)})
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d: %s", w.Code, w.Body.String())
	}
	return decode(t, w)["token"].(string)
}

func TestHandlers_Status(t *testing.T) {
	env := setupTestEnv(t, testConfig())

	w := env.do(t, http.MethodGet, "/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "ok" || body["service"] != "relay-panel" {
		t.Errorf("unexpected status body: %v", body)
	}
	if body["api_version"] != float64(CurrentAPIVersion) {
		t.Errorf("api_version = %v", body["api_version"])
	}

	w = env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
}

func TestHandlers_AliceScenario(t *testing.T) {
	env := setupTestEnv(t, testConfig())
	instance := "relay-01"
	env.addUser(t, &domain.User{Username: "alice", Active: true, ChatID: "chat123", Credits: 9, InstanceName: &instance}, "secret")

	w := env.do(t, http.MethodPost, "/login", gin.H{"username": "alice", "password": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if decode(t, w)["success"] != true {
		t.Error("login: expected success=true")
	}
	if env.services.Challenges.Len() != 1 {
		t.Fatalf("expected one pending challenge, got %d", env.services.Challenges.Len())
	}

	code := env.sender.code("chat123")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	w = env.do(t, http.MethodPost, "/verify-otp", gin.H{"username": "alice", "otp": wrong})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong code: expected 401, got %d", w.Code)
	}
	ch, ok := env.services.Challenges.Get("alice")
	if !ok || ch.Attempts != 1 {
		t.Fatalf("expected challenge with attempts=1, got %+v (present=%v)", ch, ok)
	}

	w = env.do(t, http.MethodPost, "/verify-otp", gin.H{"username": "alice", "otp": code})
	if w.Code != http.StatusOK {
		t.Fatalf("right code: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["success"] != true || body["token"] == "" {
		t.Errorf("unexpected verify body: %v", body)
	}
	user, _ := body["user"].(map[string]interface{})
	for _, key := range []string{"id", "username", "role", "expires_at", "credits", "instance_name"} {
		if _, ok := user[key]; !ok {
			t.Errorf("user projection missing %q", key)
		}
	}
	if _, ok := user["password_hash"]; ok {
		t.Error("user projection must not contain the password hash")
	}
	if user["username"] != "alice" || user["role"] != "user" || user["instance_name"] != "relay-01" {
		t.Errorf("unexpected user projection: %v", user)
	}
	if env.services.Challenges.Len() != 0 {
		t.Error("challenge should be consumed")
	}

	w = env.do(t, http.MethodPost, "/verify-otp", gin.H{"username": "alice", "otp": code})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("replay: expected 400, got %d", w.Code)
	}
	if decode(t, w)["error"] != "no pending code" {
		t.Errorf("replay error = %v", decode(t, w)["error"])
	}
}

func TestHandlers_VerifyOTPSetsCookie(t *testing.T) {
	env := setupTestEnv(t, testConfig())
	env.addUser(t, &domain.User{Username: "alice", Active: true, ChatID: "c"}, "secret")

	env.do(t, http.MethodPost, "/login", gin.H{"username": "alice", "password": "secret"})
	w := env.do(t, http.MethodPost, "/verify-otp", gin.H{"username": "alice", "otp": env.sender.code("c")})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	cookie := cookies[0]
	if cookie.Name != "auth_token" {
		t.Errorf("cookie name = %q", cookie.Name)
	}
	if cookie.Value != decode(t, w)["token"] {
		t.Error("cookie must carry the issued token")
	}
	if !cookie.HttpOnly {
		t.Error("cookie must be HttpOnly")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("SameSite = %v, want Strict", cookie.SameSite)
	}
	if cookie.Path != "/" {
		t.Errorf("Path = %q, want /", cookie.Path)
	}
	if cookie.MaxAge != 86400 {
		t.Errorf("MaxAge = %d, want 86400", cookie.MaxAge)
	}
	if cookie.Secure {
		t.Error("cookie must not be Secure on a plain HTTP request")
	}
}

func TestHandlers_SecureCookie(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		forwarded  string
		wantSecure bool
	}{
		{"forwarded https trusted", true, "https", true},
		{"forwarded https untrusted", false, "https", false},
		{"forwarded http trusted", true, "http", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Server.TrustForwardedProto = tt.trustProxy
			env := setupTestEnv(t, cfg)
			env.addUser(t, &domain.User{Username: "alice", Active: true, ChatID: "c"}, "secret")

			env.do(t, http.MethodPost, "/login", gin.H{"username": "alice", "password": "secret"})
			w := env.do(t, http.MethodPost, "/verify-otp", gin.H{"username": "alice", "otp": env.sender.code("c")},
				func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", tt.forwarded) })

			cookies := w.Result().Cookies()
			if len(cookies) != 1 {
				t.Fatalf("expected one cookie, got %d", len(cookies))
			}
			if cookies[0].Secure != tt.wantSecure {
				t.Errorf("Secure = %v, want %v", cookies[0].Secure, tt.wantSecure)
			}
		})
	}
}

func TestHandlers_LoginErrors(t *testing.T) {
	env := setupTestEnv(t, testConfig())
	past := time.Now().Add(-time.Hour)
	env.addUser(t, &domain.User{Username: "alice", Active: true, ChatID: "c"}, "secret")
	env.addUser(t, &domain.User{Username: "carol", Active: false, ChatID: "c"}, "secret")
	env.addUser(t, &domain.User{Username: "erin", Active: true, ChatID: "c", ExpiresAt: &past}, "secret")
	env.addUser(t, &domain.User{Username: "dave", Active: true}, "secret")

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantError  string
	}{
		{"missing password", gin.H{"username": "alice"}, http.StatusBadRequest, "username and password are required"},
		{"empty body", nil, http.StatusBadRequest, "username and password are required"},
		{"unknown user", gin.H{"username": "bob", "password": "secret"}, http.StatusUnauthorized, "invalid credentials"},
		{"wrong password", gin.H{"username": "alice", "password": "nope"}, http.StatusUnauthorized, "invalid credentials"},
		{"inactive", gin.H{"username": "carol", "password": "secret"}, http.StatusForbidden, "account is inactive"},
		{"expired", gin.H{"username": "erin", "password": "secret"}, http.StatusForbidden, "account has expired"},
		{"no chat", gin.H{"username": "dave", "password": "secret"}, http.StatusBadRequest, "no chat configured for this account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/login", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := decode(t, w)["error"]; got != tt.wantError {
				t.Errorf("error = %v, want %q", got, tt.wantError)
			}
		})
	}

	if env.services.Challenges.Len() != 0 {
		t.Errorf("failed logins must not create challenges, got %d", env.services.Challenges.Len())
	}
}

func TestHandlers_GenericLoginErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Security.GenericLoginErrors = true
	env := setupTestEnv(t, cfg)
	env.addUser(t, &domain.User{Username: "carol", Active: false, ChatID: "c"}, "secret")

	w := env.do(t, http.MethodPost, "/login", gin.H{"username": "carol", "password": "secret"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if decode(t, w)["error"] != "invalid credentials" {
		t.Errorf("error = %v", decode(t, w)["error"])
	}
}

func TestHandlers_LoginDeliveryFailure(t *testing.T) {
	env := setupTestEnv(t, testConfig())
	env.addUser(t, &domain.User{Username: "alice", Active: true, ChatID: "c"}, "secret")
	env.sender.err = errors.New("telegram down")

	w := env.do(t, http.MethodPost, "/login", gin.H{"username": "alice", "password": "secret"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "telegram down") {
		t.Error("delivery internals must not be exposed")
	}
	if env.services.Challenges.Len() != 0 {
		t.Error("failed delivery must not leave a challenge")
	}
}

func TestHandlers_VerifyOTPErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Challenge.MaxAttempts = 2
	env := setupTestEnv(t, cfg)
	env.addUser(t, &domain.User{Username: "alice", Active: true, ChatID: "c"}, "secret")

	w := env.do(t, http.MethodPost, "/verify-otp", gin.H{"username": "alice"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing code: status = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodPost, "/verify-otp", gin.H{"username": "ghost", "otp": "123456"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown user: status = %d, want 401", w.Code)
	}

	w = env.do(t, http.MethodPost, "/verify-otp", gin.H{"username": "alice", "otp": "123456"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("no challenge: status = %d, want 400", w.Code)
	}

	env.do(t, http.MethodPost, "/login", gin.H{"username": "alice", "password": "secret"})
	wrong := "000000"
	if env.sender.code("c") == wrong {
		wrong = "111111"
	}
	env.do(t, http.MethodPost, "/verify-otp", gin.H{"username": "alice", "otp": wrong})
	w = env.do(t, http.MethodPost, "/verify-otp", gin.H{"username": "alice", "otp": wrong})
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("lockout: status = %d, want 429", w.Code)
	}
}

func TestHandlers_AdminNotify(t *testing.T) {
	env := setupTestEnv(t, testConfig())
	env.addUser(t, &domain.User{Username: "root", Role: domain.RoleAdmin, Active: true}, "adminpw")
	env.addUser(t, &domain.User{Username: "alice", Active: true, ChatID: "chat123", MessageCount: 4, Country: "PT", City: "Porto"}, "secret")

	adminToken := env.login(t, "root", "adminpw", "admin-chat")
	userToken := env.login(t, "alice", "secret", "chat123")

	w := env.do(t, http.MethodPost, "/admin/notify", gin.H{"username": "alice"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	w = env.do(t, http.MethodPost, "/admin/notify", gin.H{"username": "alice"}, bearer("garbage"))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", w.Code)
	}

	w = env.do(t, http.MethodPost, "/admin/notify", gin.H{"username": "alice"}, bearer(userToken))
	if w.Code != http.StatusForbidden {
		t.Errorf("user token: status = %d, want 403", w.Code)
	}

	w = env.do(t, http.MethodPost, "/admin/notify", gin.H{"username": "alice"}, bearer(adminToken))
	if w.Code != http.StatusOK {
		t.Fatalf("admin token: status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := env.sender.last["admin-chat"]; got != "Login: alice\nMessages: 4\nLocation: PT - Porto" {
		t.Errorf("admin message = %q", got)
	}

	w = env.do(t, http.MethodPost, "/admin/notify", gin.H{"username": "ghost"}, bearer(adminToken))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown user: status = %d, want 404", w.Code)
	}

	w = env.do(t, http.MethodPost, "/admin/notify", gin.H{}, bearer(adminToken))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing username: status = %d, want 400", w.Code)
	}
}

func TestHandlers_AdminNotifyNoAdminChat(t *testing.T) {
	cfg := testConfig()
	cfg.Telegram.AdminChatID = ""
	env := setupTestEnv(t, cfg)
	env.addUser(t, &domain.User{Username: "root", Role: domain.RoleAdmin, Active: true, ChatID: "root-chat"}, "adminpw")

	token := env.login(t, "root", "adminpw", "root-chat")

	w := env.do(t, http.MethodPost, "/admin/notify", gin.H{"username": "root"}, bearer(token))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandlers_MeAndLogout(t *testing.T) {
	env := setupTestEnv(t, testConfig())
	env.addUser(t, &domain.User{Username: "alice", Active: true, ChatID: "c", Credits: 2}, "secret")
	token := env.login(t, "alice", "secret", "c")

	w := env.do(t, http.MethodGet, "/me", nil, bearer(token))
	if w.Code != http.StatusOK {
		t.Fatalf("me: status = %d", w.Code)
	}
	user, _ := decode(t, w)["user"].(map[string]interface{})
	if user["username"] != "alice" || user["credits"] != float64(2) {
		t.Errorf("unexpected me body: %v", user)
	}

	// the cookie alone authenticates as well
	w = env.do(t, http.MethodGet, "/me", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	})
	if w.Code != http.StatusOK {
		t.Errorf("me via cookie: status = %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/logout", nil, bearer(token))
	if w.Code != http.StatusOK {
		t.Fatalf("logout: status = %d", w.Code)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("logout must expire the session cookie, got %+v", cookies)
	}

	w = env.do(t, http.MethodGet, "/me", nil, bearer(token))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("revoked token: status = %d, want 401", w.Code)
	}
}

func TestHandlers_VerifyOTPNumericCode(t *testing.T) {
	env := setupTestEnv(t, testConfig())
	env.addUser(t, &domain.User{Username: "alice", Active: true, ChatID: "c"}, "secret")

	w := env.do(t, http.MethodPost, "/login", gin.H{"username": "alice", "password": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}

	code := env.sender.code("c")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	// a wrong numeric code counts as an attempt
	w = env.do(t, http.MethodPost, "/verify-otp", json.RawMessage(`{"username":"alice","otp":`+wrong+`}`))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong numeric code: expected 401, got %d: %s", w.Code, w.Body.String())
	}
	if ch, ok := env.services.Challenges.Get("alice"); !ok || ch.Attempts != 1 {
		t.Fatalf("expected challenge with attempts=1, got %+v (present=%v)", ch, ok)
	}

	w = env.do(t, http.MethodPost, "/verify-otp", json.RawMessage(`{"username":"alice","otp":`+code+`}`))
	if w.Code != http.StatusOK {
		t.Fatalf("numeric code: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if decode(t, w)["token"] == "" {
		t.Error("expected a session token")
	}

	w = env.do(t, http.MethodPost, "/verify-otp", json.RawMessage(`{"username":"alice","otp":true}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("boolean code: expected 400, got %d", w.Code)
	}
}

func TestHandlers_LoginEvents(t *testing.T) {
	env := setupTestEnv(t, testConfig())
	env.addUser(t, &domain.User{Username: "root", Role: domain.RoleAdmin, Active: true}, "adminpw")
	env.addUser(t, &domain.User{Username: "alice", Active: true, ChatID: "chat123"}, "secret")

	adminToken := env.login(t, "root", "adminpw", "admin-chat")
	userToken := env.login(t, "alice", "secret", "chat123")
	env.do(t, http.MethodPost, "/login", gin.H{"username": "alice", "password": "wrong"})

	w := env.do(t, http.MethodGet, "/admin/login-events?username=alice", nil, bearer(userToken))
	if w.Code != http.StatusForbidden {
		t.Errorf("user token: status = %d, want 403", w.Code)
	}

	w = env.do(t, http.MethodGet, "/admin/login-events?username=alice", nil, bearer(adminToken))
	if w.Code != http.StatusOK {
		t.Fatalf("admin token: status = %d: %s", w.Code, w.Body.String())
	}
	events, _ := decode(t, w)["events"].([]interface{})
	if len(events) != 3 {
		t.Fatalf("expected 3 events for alice, got %d", len(events))
	}
	newest, _ := events[0].(map[string]interface{})
	if newest["success"] != false || newest["stage"] != domain.StageCredentials || newest["reason"] == "" {
		t.Errorf("newest event should be the failed password check, got %v", newest)
	}

	w = env.do(t, http.MethodGet, "/admin/login-events?username=alice&limit=1", nil, bearer(adminToken))
	events, _ = decode(t, w)["events"].([]interface{})
	if len(events) != 1 {
		t.Errorf("limit=1 returned %d events", len(events))
	}

	for _, query := range []string{"", "?username=alice&limit=0", "?username=alice&limit=x"} {
		w = env.do(t, http.MethodGet, "/admin/login-events"+query, nil, bearer(adminToken))
		if w.Code != http.StatusBadRequest {
			t.Errorf("query %q: status = %d, want 400", query, w.Code)
		}
	}
}
