// Пакет idp — HTTP-клиенты к identity provider (GoTrue-совместимый auth API
// и PostgREST-совместимый data API).
// models.go — модели данных провайдера.
package idp

import (
	"errors"
	"fmt"
	"time"

	"github.com/bigkaa/goartstore/admin-gateway/internal/domain/model"
)

// ErrUserNotFound — провайдер ответил 404 на запрос пользователя.
var ErrUserNotFound = errors.New("пользователь не найден у провайдера")

// APIError — отказ провайдера (HTTP-статус вне 2xx).
// Message содержит текст ошибки провайдера без изменений.
type APIError struct {
	StatusCode int
	Message    string
}

// Error возвращает сообщение провайдера как есть.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("identity provider вернул статус %d", e.StatusCode)
	}
	return e.Message
}

// Claims — утверждения, извлечённые из bearer-токена вызывающего.
type Claims struct {
	// Subject — идентификатор пользователя (sub)
	Subject string
	// Email — email из токена (может быть пустым)
	Email string
}

// userRepresentation — пользователь в ответах auth API.
type userRepresentation struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	LastSignInAt *time.Time `json:"last_sign_in_at"`
	BannedUntil  *time.Time `json:"banned_until"`
}

// toModel конвертирует ответ провайдера в доменную модель.
func (u *userRepresentation) toModel() *model.User {
	return &model.User{
		ID:           u.ID,
		Email:        u.Email,
		LastSignInAt: u.LastSignInAt,
		BannedUntil:  u.BannedUntil,
	}
}

// userUpdateRequest — тело PUT /auth/v1/admin/users/{id}.
type userUpdateRequest struct {
	BanDuration string `json:"ban_duration"`
}

// recoverRequest — тело POST /auth/v1/recover.
type recoverRequest struct {
	Email string `json:"email"`
}

// roleRow — строка таблицы назначений ролей.
type roleRow struct {
	Role string `json:"role"`
}

// errorBody — возможные форматы ошибок auth API и data API.
type errorBody struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// text выбирает наиболее информативное поле ошибки.
func (b *errorBody) text() string {
	for _, s := range []string{b.Msg, b.Message, b.ErrorDescription, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}
