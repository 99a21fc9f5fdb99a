// ban.go — переключение блокировки пользователя.
//
// Новое состояние вычисляется по текущей записи у провайдера, а не по
// желаемому состоянию от клиента. Чтение и запись не атомарны: два
// параллельных переключения одного пользователя гоняются, побеждает
// последняя запись. Условного обновления у провайдера нет.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/goartstore/admin-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/admin-gateway/internal/idp"
)

// UserBanner — чтение и изменение блокировки пользователя.
// Реализуется idp.AdminClient.
type UserBanner interface {
	UserReader
	SetBanDuration(ctx context.Context, id, duration string) (*model.User, error)
}

// BanService — сервис toggle-ban.
type BanService struct {
	users   UserBanner
	auditor auditor
	now     func() time.Time
	logger  *slog.Logger
}

// NewBanService создаёт сервис блокировки.
// recorder может быть nil (аудит выключен).
func NewBanService(users UserBanner, recorder AuditRecorder, logger *slog.Logger) *BanService {
	l := logger.With(slog.String("component", "ban_service"))
	return &BanService{
		users:   users,
		auditor: auditor{recorder: recorder, logger: l},
		now:     time.Now,
		logger:  l,
	}
}

// ToggleBan блокирует незаблокированного пользователя и разблокирует
// заблокированного. Возвращает новое состояние.
func (s *BanService) ToggleBan(ctx context.Context, actorID, userID string) (bool, error) {
	if userID == "" {
		return false, NewError(ErrValidation, "userId is required", nil)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		actionsTotal.WithLabelValues(model.ActionToggleBan, readOutcome(err)).Inc()
		return false, readError(s.logger, userID, err)
	}

	wasBanned := user.IsBanned(s.now())
	duration, auditAction := idp.BanDurationPermanent, model.AuditActionBan
	if wasBanned {
		duration, auditAction = idp.BanDurationNone, model.AuditActionUnban
	}

	if _, err := s.users.SetBanDuration(ctx, userID, duration); err != nil {
		if !idp.IsAPIError(err) {
			s.logger.Warn("Провайдер недоступен при изменении блокировки",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			s.auditor.record(ctx, actorID, auditAction, userID, model.OutcomeError, err.Error())
			actionsTotal.WithLabelValues(model.ActionToggleBan, model.OutcomeError).Inc()
			return false, fmt.Errorf("изменение блокировки: %w", err)
		}

		msg := idp.ProviderMessage(err)
		s.logger.Warn("Провайдер отклонил изменение блокировки",
			slog.String("user_id", userID),
			slog.String("ban_duration", duration),
			slog.String("error", err.Error()),
		)
		s.auditor.record(ctx, actorID, auditAction, userID, model.OutcomeRejected, msg)
		actionsTotal.WithLabelValues(model.ActionToggleBan, model.OutcomeRejected).Inc()
		return false, NewError(ErrUpstream, msg, err)
	}

	banned := !wasBanned
	s.logger.Info("Блокировка пользователя изменена",
		slog.String("actor_id", actorID),
		slog.String("user_id", userID),
		slog.Bool("banned", banned),
	)
	s.auditor.record(ctx, actorID, auditAction, userID, model.OutcomeSuccess, "")
	actionsTotal.WithLabelValues(model.ActionToggleBan, model.OutcomeSuccess).Inc()

	return banned, nil
}

// readError отображает ошибку чтения целевого пользователя.
// Отказ провайдера (включая 404) — пользователь не найден,
// сбой транспорта — внутренняя ошибка. Отказ с другим статусом
// (401/403 при неверном service key, 5xx) пишется в лог.
func readError(logger *slog.Logger, userID string, err error) error {
	var apiErr *idp.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode != http.StatusNotFound {
		logger.Warn("Провайдер отказал в чтении пользователя",
			slog.String("user_id", userID),
			slog.Int("status", apiErr.StatusCode),
			slog.String("error", apiErr.Error()),
		)
	}
	if idp.IsNotFound(err) || idp.IsAPIError(err) {
		return NewError(ErrNotFound, "User not found", err)
	}
	return fmt.Errorf("чтение пользователя: %w", err)
}

func readOutcome(err error) string {
	if idp.IsNotFound(err) || idp.IsAPIError(err) {
		return model.OutcomeNotFound
	}
	return model.OutcomeError
}
