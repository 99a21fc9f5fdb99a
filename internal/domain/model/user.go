// Пакет model — доменные модели Admin Gateway.
package model

import "time"

// User — учётная запись пользователя у identity provider.
// Не хранится локально — каждое чтение выполняется запросом к провайдеру.
type User struct {
	// ID — идентификатор пользователя у провайдера (sub)
	ID string
	// Email — адрес электронной почты (может быть пустым)
	Email string
	// LastSignInAt — время последнего входа (nil, если пользователь не входил)
	LastSignInAt *time.Time
	// BannedUntil — момент окончания блокировки (nil, если блокировки нет)
	BannedUntil *time.Time
}

// IsBanned сообщает, заблокирован ли пользователь в момент now.
// Блокировка действует, только если BannedUntil строго позже now:
// значение, равное now, блокировкой не считается.
func (u *User) IsBanned(now time.Time) bool {
	return u.BannedUntil != nil && u.BannedUntil.After(now)
}

// AuthInfo — сведения о сессии и блокировке пользователя
// для ответа get-users-auth-info.
type AuthInfo struct {
	LastSignInAt *time.Time `json:"last_sign_in_at"`
	Banned       bool       `json:"banned"`
}
