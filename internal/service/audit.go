// audit.go — запись административных действий в журнал.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/bigkaa/goartstore/admin-gateway/internal/domain/model"
)

// AuditRecorder — журнал административных действий.
// Реализуется repository.AdminActionRepository.
type AuditRecorder interface {
	Record(ctx context.Context, entry *model.AuditEntry) error
}

// auditor — общая часть сервисов, пишущих в журнал.
// Нулевой recorder означает, что аудит выключен.
type auditor struct {
	recorder AuditRecorder
	logger   *slog.Logger
}

// record пишет запись в журнал. Ошибка записи логируется и не влияет
// на ответ: действие у провайдера к этому моменту уже выполнено.
func (a auditor) record(ctx context.Context, actorID, action, targetID, outcome, detail string) {
	if a.recorder == nil {
		return
	}

	entry := &model.AuditEntry{
		ActorID:      actorID,
		Action:       action,
		TargetUserID: targetID,
		Outcome:      outcome,
		Detail:       detail,
		CreatedAt:    time.Now().UTC(),
	}

	// Запись не должна прерываться отменой клиентского запроса
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()

	if err := a.recorder.Record(ctx, entry); err != nil {
		a.logger.Warn("Ошибка записи аудита",
			slog.String("action", action),
			slog.String("target_user_id", targetID),
			slog.String("error", err.Error()),
		)
	}
}
