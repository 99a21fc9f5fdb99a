package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/goartstore/admin-gateway/internal/idp"
)

// testKeyID — идентификатор ключа для тестов.
const testKeyID = "test-key-ag"

const testIssuer = "https://idp.example.test/auth/v1"

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockResolver — ClaimsResolver с таблицей токенов.
type mockResolver struct {
	tokens map[string]*idp.Claims
	calls  int
}

func (m *mockResolver) ResolveClaims(_ context.Context, token string) (*idp.Claims, error) {
	m.calls++
	c, ok := m.tokens[token]
	if !ok {
		return nil, &idp.APIError{StatusCode: 401, Message: "invalid JWT"}
	}
	return c, nil
}

// mockRoleStore — RoleStore с набором администраторов.
type mockRoleStore struct {
	admins map[string]bool
	err    error
	calls  int
}

func (m *mockRoleStore) HasRole(_ context.Context, userID, role string) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	return role == "admin" && m.admins[userID], nil
}

func newTestAuth() (*AdminAuth, *mockResolver, *mockRoleStore) {
	resolver := &mockResolver{tokens: map[string]*idp.Claims{
		"admin-token":   {Subject: "admin-1", Email: "admin@example.test"},
		"user-token":    {Subject: "user-1"},
		"no-sub-token":  {Subject: ""},
		"broken-lookup": {Subject: "broken"},
	}}
	roles := &mockRoleStore{admins: map[string]bool{"admin-1": true}}
	return NewAdminAuth(resolver, roles, "admin", testLogger()), resolver, roles
}

func TestAdminAuth_Middleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantRoles  int
	}{
		{"нет заголовка", "", http.StatusUnauthorized, 0},
		{"не Bearer", "Basic YWRtaW46cGFzcw==", http.StatusUnauthorized, 0},
		{"пустой токен", "Bearer ", http.StatusUnauthorized, 0},
		{"невалидный токен", "Bearer garbage", http.StatusUnauthorized, 0},
		{"нет sub", "Bearer no-sub-token", http.StatusUnauthorized, 0},
		{"не администратор", "Bearer user-token", http.StatusForbidden, 1},
		{"администратор", "Bearer admin-token", http.StatusOK, 1},
		{"bearer в нижнем регистре", "bearer admin-token", http.StatusOK, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, _, roles := newTestAuth()

			var gotAdmin *AdminContext
			handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAdmin = AdminFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin-users", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, ожидается %d; тело: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if roles.calls != tt.wantRoles {
				t.Errorf("проверок роли %d, ожидается %d", roles.calls, tt.wantRoles)
			}
			if tt.wantStatus == http.StatusOK {
				if gotAdmin == nil || gotAdmin.CallerID != "admin-1" || gotAdmin.Email != "admin@example.test" {
					t.Errorf("AdminContext = %+v", gotAdmin)
				}
			} else {
				var body map[string]string
				_ = json.NewDecoder(rec.Body).Decode(&body)
				if body["error"] == "" {
					t.Error("тело ошибки должно содержать поле error")
				}
			}
		})
	}
}

func TestAdminAuth_RoleLookupFailure(t *testing.T) {
	auth, _, roles := newTestAuth()
	roles.err = errors.New("connection refused")

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("обработчик не должен вызываться")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin-users", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, сбой проверки роли должен давать 500", rec.Code)
	}
	if roles.calls != 1 {
		t.Errorf("проверок роли %d, повторов быть не должно", roles.calls)
	}
}

// --- JWKSResolver ---

// generateTestKey генерирует RSA ключ для тестов.
func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

func newTestJWKSResolver(t *testing.T, key *rsa.PrivateKey) *JWKSResolver {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}
	return NewJWKSResolverWithKeyfunc(kf, testIssuer, "authenticated", 0, testLogger())
}

// signToken подписывает claims ключом key.
func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "admin-1",
		"email": "admin@example.test",
		"iss":   testIssuer,
		"aud":   "authenticated",
		"exp":   jwt.NewNumericDate(time.Now().Add(time.Hour)),
		"iat":   jwt.NewNumericDate(time.Now()),
	}
}

func TestJWKSResolver_Valid(t *testing.T) {
	key := generateTestKey(t)
	resolver := newTestJWKSResolver(t, key)

	claims, err := resolver.ResolveClaims(context.Background(), signToken(t, key, validClaims()))
	if err != nil {
		t.Fatalf("ResolveClaims: %v", err)
	}
	if claims.Subject != "admin-1" || claims.Email != "admin@example.test" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestJWKSResolver_Rejects(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	resolver := newTestJWKSResolver(t, key)

	tests := []struct {
		name  string
		token func() string
	}{
		{"просроченный", func() string {
			c := validClaims()
			c["exp"] = jwt.NewNumericDate(time.Now().Add(-time.Hour))
			return signToken(t, key, c)
		}},
		{"без exp", func() string {
			c := validClaims()
			delete(c, "exp")
			return signToken(t, key, c)
		}},
		{"чужой issuer", func() string {
			c := validClaims()
			c["iss"] = "https://evil.example.test"
			return signToken(t, key, c)
		}},
		{"чужой audience", func() string {
			c := validClaims()
			c["aud"] = "anon"
			return signToken(t, key, c)
		}},
		{"чужая подпись", func() string {
			return signToken(t, otherKey, validClaims())
		}},
		{"HS256", func() string {
			tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
			tok.Header["kid"] = testKeyID
			s, _ := tok.SignedString([]byte("secret"))
			return s
		}},
		{"мусор", func() string { return "not.a.jwt" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := resolver.ResolveClaims(context.Background(), tt.token()); err == nil {
				t.Error("ожидалась ошибка валидации")
			}
		})
	}
}

func TestJWKSResolver_WithAdminAuth(t *testing.T) {
	key := generateTestKey(t)
	auth := NewAdminAuth(newTestJWKSResolver(t, key), &mockRoleStore{admins: map[string]bool{"admin-1": true}}, "admin", testLogger())

	admin, err := auth.Authorize(context.Background(), "Bearer "+signToken(t, key, validClaims()))
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if admin.CallerID != "admin-1" {
		t.Errorf("CallerID = %q", admin.CallerID)
	}
}
