// auth_info.go — пакетное получение last_sign_in_at и статуса блокировки.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/admin-gateway/internal/domain/model"
)

// UserReader — чтение пользователя у провайдера.
// Реализуется idp.AdminClient.
type UserReader interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// AuthInfoService — сервис get-users-auth-info.
type AuthInfoService struct {
	users       UserReader
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

// NewAuthInfoService создаёт сервис пакетного поиска.
// concurrency — максимум одновременных запросов к провайдеру (0 — по числу id).
func NewAuthInfoService(users UserReader, concurrency int, logger *slog.Logger) *AuthInfoService {
	return &AuthInfoService{
		users:       users,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "auth_info_service")),
	}
}

// GetUsersAuthInfo возвращает сведения по каждому найденному id.
// Ошибка поиска отдельного id не прерывает пакет: такой id просто
// отсутствует в результате. nil-набор — ошибка валидации, пустой —
// пустой результат без обращений к провайдеру.
func (s *AuthInfoService) GetUsersAuthInfo(ctx context.Context, userIDs []string) (map[string]model.AuthInfo, error) {
	if userIDs == nil {
		return nil, NewError(ErrValidation, "userIds is required", nil)
	}

	ids := uniqueIDs(userIDs)
	result := make(map[string]model.AuthInfo, len(ids))
	if len(ids) == 0 {
		actionsTotal.WithLabelValues(model.ActionGetUsersAuthInfo, model.OutcomeSuccess).Inc()
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}

	for _, id := range ids {
		g.Go(func() error {
			user, err := s.users.GetUser(gctx, id)
			if err != nil {
				// Задача не возвращает ошибку: остальные поиски продолжаются
				s.logger.Debug("Пользователь пропущен в пакетном запросе",
					slog.String("user_id", id),
					slog.String("error", err.Error()),
				)
				batchLookupsTotal.WithLabelValues("omitted").Inc()
				return nil
			}

			info := model.AuthInfo{
				LastSignInAt: user.LastSignInAt,
				Banned:       user.IsBanned(s.now()),
			}

			mu.Lock()
			result[id] = info
			mu.Unlock()

			batchLookupsTotal.WithLabelValues("ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Debug("Пакетный запрос выполнен",
		slog.Int("requested", len(ids)),
		slog.Int("found", len(result)),
	)
	actionsTotal.WithLabelValues(model.ActionGetUsersAuthInfo, model.OutcomeSuccess).Inc()

	return result, nil
}

// uniqueIDs убирает дубликаты и пустые строки, сохраняя порядок.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
