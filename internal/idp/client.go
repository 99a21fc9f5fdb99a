// client.go — HTTP-клиенты к identity provider.
//
// CallerClient действует от имени вызывающего: запросы несут его bearer-токен
// и ключ с минимальными привилегиями (anon key). Используется только для
// определения, кто делает запрос.
//
// AdminClient действует от имени сервера с привилегированным ключом
// (service role key): чтение назначений ролей, чтение и изменение
// пользователей, запуск письма сброса пароля.
//
// Оба клиента не выполняют повторных попыток: каждая ошибка
// возвращается вызывающему сразу.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/admin-gateway/internal/config"
	"github.com/bigkaa/goartstore/admin-gateway/internal/domain/model"
)

// Длительности блокировки в формате auth API.
const (
	// BanDurationPermanent — «бессрочная» блокировка: ~100 лет,
	// конечное значение, которое принимает поле ban_duration.
	BanDurationPermanent = "876000h"
	// BanDurationNone — снятие блокировки.
	BanDurationNone = "none"
)

// maxErrorBody — сколько байт тела ошибки читаем для сообщения.
const maxErrorBody = 64 << 10

// transport — общая часть клиентов: базовый URL и HTTP-клиент.
type transport struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func newTransport(baseURL string, httpClient *http.Client, logger *slog.Logger, component string) transport {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", component)),
	}
}

// do выполняет запрос с заголовками apikey и Authorization.
func (t *transport) do(ctx context.Context, method, path, apiKey, bearer string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация тела запроса: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}

	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос %s %s: %w", method, path, err)
	}
	return resp, nil
}

// decodeResponse декодирует JSON ответ в target.
// Статус вне 2xx превращается в *APIError (404 — в ErrUserNotFound, если notFound).
func decodeResponse(resp *http.Response, target any, notFound error) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp, notFound)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("декодирование ответа провайдера: %w", err)
		}
	}

	return nil
}

// readAPIError читает тело ошибки провайдера.
func readAPIError(resp *http.Response, notFound error) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Message = body.text()
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}

	if resp.StatusCode == http.StatusNotFound && notFound != nil {
		return fmt.Errorf("%w: %w", notFound, apiErr)
	}
	return apiErr
}

// --- CallerClient ---

// CallerClient — клиент, действующий от имени вызывающего пользователя.
type CallerClient struct {
	transport
	anonKey config.AnonKey
}

// NewCallerClient создаёт caller-scoped клиент.
// Принимает только AnonKey: привилегированный ключ сюда передать нельзя.
func NewCallerClient(baseURL string, anonKey config.AnonKey, httpClient *http.Client, logger *slog.Logger) *CallerClient {
	return &CallerClient{
		transport: newTransport(baseURL, httpClient, logger, "idp_caller_client"),
		anonKey:   anonKey,
	}
}

// ResolveClaims обменивает bearer-токен вызывающего на его claims
// через GET /auth/v1/user.
func (c *CallerClient) ResolveClaims(ctx context.Context, accessToken string) (*Claims, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/v1/user", string(c.anonKey), accessToken, nil)
	if err != nil {
		return nil, err
	}

	var user userRepresentation
	if err := decodeResponse(resp, &user, nil); err != nil {
		return nil, fmt.Errorf("ResolveClaims: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("ResolveClaims: в ответе провайдера нет id пользователя")
	}

	return &Claims{Subject: user.ID, Email: user.Email}, nil
}

// CheckReady проверяет доступность auth API провайдера.
// Реализует handlers.ReadinessChecker.
func (c *CallerClient) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/health", http.NoBody)
	if err != nil {
		return "fail", "ошибка создания запроса: " + err.Error()
	}
	req.Header.Set("apikey", string(c.anonKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "fail", fmt.Sprintf("identity provider недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "fail", fmt.Sprintf("identity provider вернул статус %d", resp.StatusCode)
	}
	return "ok", "auth API доступен"
}

// --- AdminClient ---

// AdminClient — привилегированный клиент сервера.
type AdminClient struct {
	transport
	serviceKey config.ServiceRoleKey
	roleTable  string
}

// NewAdminClient создаёт привилегированный клиент.
// roleTable — таблица назначений ролей в data API (например, user_roles).
func NewAdminClient(baseURL string, serviceKey config.ServiceRoleKey, roleTable string, httpClient *http.Client, logger *slog.Logger) *AdminClient {
	return &AdminClient{
		transport:  newTransport(baseURL, httpClient, logger, "idp_admin_client"),
		serviceKey: serviceKey,
		roleTable:  roleTable,
	}
}

// doAdmin выполняет запрос с service role key.
func (c *AdminClient) doAdmin(ctx context.Context, method, path string, body any) (*http.Response, error) {
	key := string(c.serviceKey)
	return c.do(ctx, method, path, key, key, body)
}

// GetUser возвращает пользователя по идентификатору.
// Для отсутствующего пользователя возвращает ошибку, совместимую с ErrUserNotFound.
func (c *AdminClient) GetUser(ctx context.Context, id string) (*model.User, error) {
	resp, err := c.doAdmin(ctx, http.MethodGet, "/auth/v1/admin/users/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var user userRepresentation
	if err := decodeResponse(resp, &user, ErrUserNotFound); err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("GetUser: %w", ErrUserNotFound)
	}

	return user.toModel(), nil
}

// SetBanDuration устанавливает длительность блокировки пользователя.
// duration — BanDurationPermanent, BanDurationNone или Go-длительность ("24h").
func (c *AdminClient) SetBanDuration(ctx context.Context, id, duration string) (*model.User, error) {
	resp, err := c.doAdmin(ctx, http.MethodPut, "/auth/v1/admin/users/"+url.PathEscape(id),
		userUpdateRequest{BanDuration: duration})
	if err != nil {
		return nil, err
	}

	var user userRepresentation
	if err := decodeResponse(resp, &user, ErrUserNotFound); err != nil {
		return nil, fmt.Errorf("SetBanDuration: %w", err)
	}

	c.logger.Debug("Длительность блокировки обновлена",
		slog.String("user_id", id),
		slog.String("ban_duration", duration),
	)

	return user.toModel(), nil
}

// SendPasswordRecovery запускает письмо сброса пароля для email.
// redirectTo — URL возврата после сброса (пусто — по умолчанию провайдера).
func (c *AdminClient) SendPasswordRecovery(ctx context.Context, email, redirectTo string) error {
	path := "/auth/v1/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}

	resp, err := c.doAdmin(ctx, http.MethodPost, path, recoverRequest{Email: email})
	if err != nil {
		return err
	}

	if err := decodeResponse(resp, nil, nil); err != nil {
		return fmt.Errorf("SendPasswordRecovery: %w", err)
	}
	return nil
}

// HasRole проверяет наличие хотя бы одной строки (userID, role)
// в таблице назначений ролей.
func (c *AdminClient) HasRole(ctx context.Context, userID, role string) (bool, error) {
	q := url.Values{}
	q.Set("select", "role")
	q.Set("user_id", "eq."+userID)
	q.Set("role", "eq."+role)
	q.Set("limit", "1")

	resp, err := c.doAdmin(ctx, http.MethodGet, "/rest/v1/"+url.PathEscape(c.roleTable)+"?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}

	var rows []roleRow
	if err := decodeResponse(resp, &rows, nil); err != nil {
		return false, fmt.Errorf("HasRole: %w", err)
	}

	return len(rows) > 0, nil
}

// IsNotFound сообщает, означает ли ошибка отсутствие пользователя.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// ProviderMessage извлекает текст ошибки провайдера, если он есть,
// иначе возвращает err.Error().
func ProviderMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}

// IsAPIError сообщает, что ошибка — ответ провайдера, а не сбой транспорта.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
