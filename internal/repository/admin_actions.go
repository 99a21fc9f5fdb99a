package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/admin-gateway/internal/domain/model"
)

// AdminActionRepository — журнал административных действий (таблица admin_actions).
type AdminActionRepository struct {
	db DBTX
}

// NewAdminActionRepository создаёт репозиторий журнала действий.
func NewAdminActionRepository(db DBTX) *AdminActionRepository {
	return &AdminActionRepository{db: db}
}

// Record добавляет запись в журнал. Пустой ID заполняется новым UUID,
// нулевой CreatedAt — временем сервера БД.
// Реализует service.AuditRecorder.
func (r *AdminActionRepository) Record(ctx context.Context, e *model.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	query := `
		INSERT INTO admin_actions (id, actor_id, action, target_user_id, outcome, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
		RETURNING created_at`

	var createdAt *time.Time
	if !e.CreatedAt.IsZero() {
		createdAt = &e.CreatedAt
	}

	err := r.db.QueryRow(ctx, query,
		e.ID, e.ActorID, e.Action, e.TargetUserID, e.Outcome, e.Detail, createdAt,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи действия в журнал: %w", err)
	}
	return nil
}
