// password_reset.go — отправка письма для сброса пароля.
// Email берётся из записи провайдера, клиент его не передаёт.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goartstore/admin-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/admin-gateway/internal/idp"
	"github.com/bigkaa/goartstore/admin-gateway/internal/ratelimit"
)

// RecoverySender — запуск письма сброса пароля.
// Реализуется idp.AdminClient.
type RecoverySender interface {
	SendPasswordRecovery(ctx context.Context, email, redirectTo string) error
}

// PasswordResetService — сервис reset-password.
type PasswordResetService struct {
	users      UserReader
	sender     RecoverySender
	limiter    ratelimit.Limiter
	redirectTo string
	auditor    auditor
	logger     *slog.Logger
}

// NewPasswordResetService создаёт сервис сброса пароля.
// limiter и recorder могут быть nil (ограничение и аудит выключены).
// redirectTo — URL возврата после сброса (пусто — по умолчанию провайдера).
func NewPasswordResetService(
	users UserReader,
	sender RecoverySender,
	limiter ratelimit.Limiter,
	redirectTo string,
	recorder AuditRecorder,
	logger *slog.Logger,
) *PasswordResetService {
	l := logger.With(slog.String("component", "password_reset_service"))
	return &PasswordResetService{
		users:      users,
		sender:     sender,
		limiter:    limiter,
		redirectTo: redirectTo,
		auditor:    auditor{recorder: recorder, logger: l},
		logger:     l,
	}
}

// ResetPassword отправляет письмо сброса пароля на email пользователя userID.
func (s *PasswordResetService) ResetPassword(ctx context.Context, actorID, userID string) error {
	if userID == "" {
		return NewError(ErrValidation, "userId is required", nil)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		actionsTotal.WithLabelValues(model.ActionResetPassword, readOutcome(err)).Inc()
		return readError(s.logger, userID, err)
	}
	if user.Email == "" {
		actionsTotal.WithLabelValues(model.ActionResetPassword, model.OutcomeNotFound).Inc()
		return NewError(ErrNotFound, "User email not found", nil)
	}

	if err := s.checkLimit(ctx, actorID, userID); err != nil {
		return err
	}

	if err := s.sender.SendPasswordRecovery(ctx, user.Email, s.redirectTo); err != nil {
		if !idp.IsAPIError(err) {
			s.logger.Warn("Провайдер недоступен при сбросе пароля",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			s.auditor.record(ctx, actorID, model.AuditActionPasswordReset, userID, model.OutcomeError, err.Error())
			actionsTotal.WithLabelValues(model.ActionResetPassword, model.OutcomeError).Inc()
			return fmt.Errorf("отправка письма сброса пароля: %w", err)
		}

		msg := idp.ProviderMessage(err)
		s.logger.Warn("Провайдер отклонил сброс пароля",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		s.auditor.record(ctx, actorID, model.AuditActionPasswordReset, userID, model.OutcomeRejected, msg)
		actionsTotal.WithLabelValues(model.ActionResetPassword, model.OutcomeRejected).Inc()
		return NewError(ErrUpstream, msg, err)
	}

	s.logger.Info("Письмо сброса пароля отправлено",
		slog.String("actor_id", actorID),
		slog.String("user_id", userID),
	)
	s.auditor.record(ctx, actorID, model.AuditActionPasswordReset, userID, model.OutcomeSuccess, "")
	actionsTotal.WithLabelValues(model.ActionResetPassword, model.OutcomeSuccess).Inc()

	return nil
}

// checkLimit расходует единицу лимита сбросов для userID.
// Сбой ограничителя не блокирует сброс.
func (s *PasswordResetService) checkLimit(ctx context.Context, actorID, userID string) error {
	if s.limiter == nil {
		return nil
	}

	res, err := s.limiter.Allow(ctx, userID)
	if err != nil {
		s.logger.Warn("Ограничитель сбросов недоступен, лимит не применён",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if res.Allowed {
		return nil
	}

	s.auditor.record(ctx, actorID, model.AuditActionPasswordReset, userID, model.OutcomeRateLimited, "")
	actionsTotal.WithLabelValues(model.ActionResetPassword, model.OutcomeRateLimited).Inc()

	return &Error{
		Kind:       ErrRateLimited,
		Message:    "Too many password reset requests for this user",
		RetryAfter: res.RetryAfter,
	}
}
