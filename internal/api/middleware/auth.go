// auth.go — middleware авторизации администратора.
//
// Два шага перед любым действием:
//  1. claims вызывающего разрешаются без привилегий: локально по JWKS
//     провайдера (JWKSResolver) или запросом к провайдеру от имени
//     вызывающего (idp.CallerClient);
//  2. наличие роли admin проверяется через RoleStore, который работает
//     с привилегированным ключом сервера.
//
// Ни один шаг не повторяется при ошибке.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/goartstore/admin-gateway/internal/api/errors"
	"github.com/bigkaa/goartstore/admin-gateway/internal/idp"
	"github.com/bigkaa/goartstore/admin-gateway/internal/service"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyAdmin — авторизованный администратор в контексте запроса.
	ContextKeyAdmin contextKey = "admin_context"
)

// AdminContext — вызывающий, прошедший проверку роли администратора.
// Живёт только в пределах запроса.
type AdminContext struct {
	// CallerID — sub вызывающего
	CallerID string
	// Email — email из claims (может быть пустым)
	Email string
}

// ClaimsResolver — разрешение claims по bearer-токену вызывающего.
// Реализуется idp.CallerClient и JWKSResolver.
type ClaimsResolver interface {
	ResolveClaims(ctx context.Context, accessToken string) (*idp.Claims, error)
}

// RoleStore — проверка назначения роли.
// Реализуется idp.AdminClient и repository.UserRoleRepository.
type RoleStore interface {
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

// AdminAuth — middleware-гейт административного endpoint.
type AdminAuth struct {
	resolver ClaimsResolver
	roles    RoleStore
	role     string
	logger   *slog.Logger
}

// NewAdminAuth создаёт гейт. role — требуемая роль (обычно admin).
func NewAdminAuth(resolver ClaimsResolver, roles RoleStore, role string, logger *slog.Logger) *AdminAuth {
	return &AdminAuth{
		resolver: resolver,
		roles:    roles,
		role:     role,
		logger:   logger.With(slog.String("component", "admin_auth")),
	}
}

// Authorize проверяет заголовок Authorization и роль вызывающего.
// Ошибки: service.ErrUnauthorized, service.ErrForbidden или
// нетипизированная (сбой проверки роли).
func (a *AdminAuth) Authorize(ctx context.Context, authHeader string) (*AdminContext, error) {
	if authHeader == "" {
		return nil, service.NewError(service.ErrUnauthorized, "Missing authorization header", nil)
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, service.NewError(service.ErrUnauthorized, "Invalid authorization header, expected Bearer <token>", nil)
	}
	token := strings.TrimSpace(parts[1])

	claims, err := a.resolver.ResolveClaims(ctx, token)
	if err != nil {
		a.logger.Debug("Claims не разрешены", slog.String("error", err.Error()))
		return nil, service.NewError(service.ErrUnauthorized, "Invalid or expired token", err)
	}
	if claims.Subject == "" {
		return nil, service.NewError(service.ErrUnauthorized, "Token has no subject", nil)
	}

	ok, err := a.roles.HasRole(ctx, claims.Subject, a.role)
	if err != nil {
		a.logger.Error("Ошибка проверки роли",
			slog.String("user_id", claims.Subject),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("role lookup failed: %w", err)
	}
	if !ok {
		a.logger.Warn("Вызов без роли администратора",
			slog.String("user_id", claims.Subject),
		)
		return nil, service.NewError(service.ErrForbidden, "Admin role required", nil)
	}

	return &AdminContext{CallerID: claims.Subject, Email: claims.Email}, nil
}

// Middleware возвращает HTTP middleware, пропускающий только администраторов.
// AdminContext помещается в контекст запроса.
func (a *AdminAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin, err := a.Authorize(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				apierrors.FromError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), admin)))
		})
	}
}

// --- JWKSResolver ---

// jwtClaims — claims access token провайдера.
type jwtClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// JWKSResolver — локальная проверка подписи токена по JWKS провайдера.
type JWKSResolver struct {
	jwks     keyfunc.Keyfunc
	issuer   string
	audience string
	leeway   time.Duration
	logger   *slog.Logger
}

// NewJWKSResolver создаёт resolver с JWKS, обновляемым в фоне.
// issuer и audience — ожидаемые значения (пусто — не проверяются).
func NewJWKSResolver(
	jwksURL string,
	issuer, audience string,
	httpClient *http.Client,
	refreshInterval time.Duration,
	leeway time.Duration,
	logger *slog.Logger,
) (*JWKSResolver, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	// NoErrorReturnFirstHTTPReq — стартуем даже если провайдер ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWKSResolverWithKeyfunc(k, issuer, audience, leeway, logger), nil
}

// NewJWKSResolverWithKeyfunc создаёт resolver с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWKSResolverWithKeyfunc(kf keyfunc.Keyfunc, issuer, audience string, leeway time.Duration, logger *slog.Logger) *JWKSResolver {
	return &JWKSResolver{
		jwks:     kf,
		issuer:   issuer,
		audience: audience,
		leeway:   leeway,
		logger:   logger.With(slog.String("component", "jwks_resolver")),
	}
}

// ResolveClaims проверяет подпись (RS256/ES256), срок действия и,
// если заданы, issuer и audience. Возвращает sub и email.
func (j *JWKSResolver) ResolveClaims(ctx context.Context, accessToken string) (*idp.Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.leeway),
	}
	if j.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(j.audience))
	}

	raw := &jwtClaims{}
	token, err := jwt.ParseWithClaims(accessToken, raw, j.jwks.KeyfuncCtx(ctx), parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("валидация JWT: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("невалидный токен")
	}

	return &idp.Claims{Subject: raw.Subject, Email: raw.Email}, nil
}

// --- Context helpers ---

// WithAdmin помещает AdminContext в контекст.
func WithAdmin(ctx context.Context, admin *AdminContext) context.Context {
	return context.WithValue(ctx, ContextKeyAdmin, admin)
}

// AdminFromContext извлекает AdminContext из контекста запроса.
// Возвращает nil, если запрос не прошёл AdminAuth.
func AdminFromContext(ctx context.Context) *AdminContext {
	admin, _ := ctx.Value(ContextKeyAdmin).(*AdminContext)
	return admin
}
