// errors.go — ошибки бизнес-логики сервисного слоя.
//
// Виды ошибок (ErrUnauthorized, ErrForbidden, ...) — sentinel-значения;
// HTTP-статус выбирается по виду в одном месте (apierrors.FromError).
package service

import (
	"errors"
	"time"
)

var (
	// ErrUnauthorized — нет или невалиден bearer-токен, claims не разрешены.
	ErrUnauthorized = errors.New("требуется аутентификация")
	// ErrForbidden — вызывающий не имеет роли администратора.
	ErrForbidden = errors.New("недостаточно прав")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrNotFound — целевой пользователь или его email не найдены.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrUpstream — провайдер отклонил операцию.
	ErrUpstream = errors.New("провайдер отклонил операцию")
	// ErrRateLimited — превышен лимит сбросов пароля.
	ErrRateLimited = errors.New("превышен лимит запросов")
)

// Error — типизированная ошибка сервисного слоя.
// Message показывается клиенту, Err — внутренняя причина (только в логах).
type Error struct {
	// Kind — один из sentinel-видов выше
	Kind error
	// Message — текст для поля error ответа
	Message string
	// Err — исходная ошибка (может быть nil)
	Err error
	// RetryAfter — через сколько можно повторить (для ErrRateLimited)
	RetryAfter time.Duration
}

// NewError создаёт ошибку указанного вида.
func NewError(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap позволяет errors.Is находить и вид, и исходную ошибку.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}
