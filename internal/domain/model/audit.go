package model

import "time"

// Результаты административного действия для аудита и метрик.
const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeRejected    = "rejected"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Действия, записываемые в журнал аудита.
const (
	AuditActionBan           = "ban"
	AuditActionUnban         = "unban"
	AuditActionPasswordReset = "password_reset"
)

// AuditEntry — запись журнала административных действий.
// Хранится в таблице admin_actions.
type AuditEntry struct {
	// ID — UUID записи
	ID string
	// ActorID — идентификатор администратора, выполнившего действие
	ActorID string
	// Action — ban, unban или password_reset
	Action string
	// TargetUserID — идентификатор пользователя, над которым выполнено действие
	TargetUserID string
	// Outcome — результат (success, not_found, rejected, rate_limited, error)
	Outcome string
	// Detail — текст ошибки провайдера (пусто при успехе)
	Detail string
	// CreatedAt — время записи
	CreatedAt time.Time
}
