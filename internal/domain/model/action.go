package model

import (
	"errors"
	"strings"
)

// Имена действий во входящем запросе.
const (
	ActionGetUsersAuthInfo = "get-users-auth-info"
	ActionToggleBan        = "toggle-ban"
	ActionResetPassword    = "reset-password"
)

// ErrUnknownAction — имя действия не входит в закрытый набор.
var ErrUnknownAction = errors.New("Unknown action") //nolint:staticcheck // текст ответа фиксирован контрактом API

// ActionRequest — тело входящего запроса.
// UserIDs == nil означает, что поле отсутствует (или null),
// пустой срез (не nil) — явно переданный пустой набор.
type ActionRequest struct {
	Action  string   `json:"action"`
	UserID  string   `json:"userId,omitempty"`
	UserIDs []string `json:"userIds,omitempty"`
}

// Action — закрытый набор вариантов запроса. Реализуется только
// типами этого пакета; каждый вариант несёт лишь нужные ему поля.
type Action interface {
	// Name возвращает имя действия из контракта API.
	Name() string
	isAction()
}

// GetUsersAuthInfo — пакетное получение last_sign_in_at и статуса блокировки.
type GetUsersAuthInfo struct {
	// UserIDs — набор идентификаторов; nil — поле не передано.
	UserIDs []string
}

// ToggleBan — переключение блокировки пользователя.
type ToggleBan struct {
	UserID string
}

// ResetPassword — отправка письма для сброса пароля.
type ResetPassword struct {
	UserID string
}

func (GetUsersAuthInfo) Name() string { return ActionGetUsersAuthInfo }
func (ToggleBan) Name() string        { return ActionToggleBan }
func (ResetPassword) Name() string    { return ActionResetPassword }

func (GetUsersAuthInfo) isAction() {}
func (ToggleBan) isAction()        {}
func (ResetPassword) isAction()    {}

// ParseAction сопоставляет запрос с вариантом Action.
// Для неизвестного имени возвращает ErrUnknownAction.
// Проверка обязательных полей выполняется сервисами, а не здесь.
func ParseAction(req ActionRequest) (Action, error) {
	switch req.Action {
	case ActionGetUsersAuthInfo:
		return GetUsersAuthInfo{UserIDs: req.UserIDs}, nil
	case ActionToggleBan:
		return ToggleBan{UserID: strings.TrimSpace(req.UserID)}, nil
	case ActionResetPassword:
		return ResetPassword{UserID: strings.TrimSpace(req.UserID)}, nil
	default:
		return nil, ErrUnknownAction
	}
}
